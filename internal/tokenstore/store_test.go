package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ikkim/storefront/internal/app/repository"
	"github.com/ikkim/storefront/internal/db"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func setupDatabaseStore(t *testing.T) *DatabaseStore {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return NewDatabaseStore(repository.NewCredentialRepository(testDB), time.Hour)
}

func TestTokenTTL(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  time.Duration
	}{
		{name: "opaque token uses fallback", token: "opaque-token", want: time.Hour},
		{name: "jwt exp in future", token: signedToken(t, now.Add(30*time.Minute)), want: 30 * time.Minute},
		{name: "jwt already expired", token: signedToken(t, now.Add(-time.Minute)), want: minTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenTTL(tt.token, time.Hour, now)
			assert.InDelta(t, tt.want.Seconds(), got.Seconds(), 1)
		})
	}
}

func TestStores_RoundTrip(t *testing.T) {
	redisStore, _ := setupRedisStore(t)

	stores := map[string]Store{
		DriverMemory:   NewMemoryStore(time.Hour),
		DriverRedis:    redisStore,
		DriverDatabase: setupDatabaseStore(t),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			token, err := store.Load(ctx, "visitor-1")
			require.NoError(t, err)
			assert.Empty(t, token)

			require.NoError(t, store.Save(ctx, "visitor-1", "abc"))
			token, err = store.Load(ctx, "visitor-1")
			require.NoError(t, err)
			assert.Equal(t, "abc", token)

			other, err := store.Load(ctx, "visitor-2")
			require.NoError(t, err)
			assert.Empty(t, other)

			require.NoError(t, store.Delete(ctx, "visitor-1"))
			token, err = store.Load(ctx, "visitor-1")
			require.NoError(t, err)
			assert.Empty(t, token)

			assert.ErrorIs(t, store.Save(ctx, "", "abc"), ErrEmptySessionID)
		})
	}
}

func TestRedisStore_TTLFollowsTokenExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)

	token := signedToken(t, time.Now().Add(10*time.Minute))
	require.NoError(t, store.Save(context.Background(), "visitor-1", token))

	ttl := mr.TTL(credentialKey("visitor-1"))
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 2)

	mr.FastForward(11 * time.Minute)
	loaded, err := store.Load(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), "visitor-1", "opaque"))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	token, err := store.Load(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), "visitor-1", "opaque"))

	store.now = func() time.Time { return now.Add(24 * time.Hour) }
	token, err := store.Load(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "opaque", token)
}

func TestDatabaseStore_Purge(t *testing.T) {
	store := setupDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "expired", signedToken(t, time.Now().Add(-time.Hour))))
	require.NoError(t, store.Save(ctx, "live", "opaque"))

	store.now = func() time.Time { return time.Now().UTC().Add(5 * time.Second) }
	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	scoped := For(NewMemoryStore(time.Hour), "visitor-1")

	has, err := scoped.HasToken(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, scoped.SetToken(ctx, "abc"))
	token, _ := scoped.Token(ctx)
	assert.Equal(t, "abc", token)

	require.NoError(t, scoped.SetToken(ctx, ""))
	has, _ = scoped.HasToken(ctx)
	assert.False(t, has)
}

func TestNew_Drivers(t *testing.T) {
	s, err := New(Options{Driver: DriverMemory, DefaultTTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(Options{Driver: DriverRedis})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = New(Options{Driver: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
