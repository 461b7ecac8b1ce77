package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/storefront/internal/auth"
	"github.com/ikkim/storefront/internal/cart"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	sid     string
	kind    string
	payload interface{}
}

type recordingPusher struct {
	mu   sync.Mutex
	msgs []pushed
}

func (r *recordingPusher) Push(sid, kind string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, pushed{sid, kind, payload})
}

func (r *recordingPusher) kinds(sid string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.sid == sid {
			out = append(out, m.kind)
		}
	}
	return out
}

func (r *recordingPusher) last(sid, kind string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].sid == sid && r.msgs[i].kind == kind {
			return r.msgs[i].payload
		}
	}
	return nil
}

// storefrontBackend accepts token "t-<anything>" and serves a one-line cart.
type storefrontBackend struct {
	mu         sync.Mutex
	revoked    bool
	searches   []string
	meRequests int
}

func (b *storefrontBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	authed := r.Header.Get("Authorization") == "Bearer t-1" && !b.revoked
	switch r.URL.Path {
	case "/auth/login":
		w.Write([]byte(`{"token":"t-1"}`))
	case "/auth/me":
		b.meRequests++
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"user":{"_id":"u1","email":"a@b.co"}}`))
	case "/cart":
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"cartItems":[{"productId":"p1","price":100,"quantity":2,"variant":"60ml","packaging":"Can"}],"total":200}`))
	case "/products/search":
		b.searches = append(b.searches, r.URL.Query().Get("query"))
		w.Write([]byte(`{"products":[{"_id":"p9","name":"Mango"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupManagerTest(t *testing.T) (*Manager, *storefrontBackend, *recordingPusher, tokenstore.Store) {
	t.Helper()
	backend := &storefrontBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := apiclient.NewClient(apiclient.Config{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 0,
		RetryUnit:  time.Millisecond,
	})
	require.NoError(t, err)

	store := tokenstore.NewMemoryStore(time.Hour)
	pusher := &recordingPusher{}
	m := NewManager(Options{
		Backend:   client,
		Store:     store,
		Pusher:    pusher,
		Debounce:  20 * time.Millisecond,
		LoginPath: "/login",
	})
	return m, backend, pusher, store
}

func TestManager_GetBuildsOncePerSession(t *testing.T) {
	m, _, _, _ := setupManagerTest(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "sid-a")
	require.NoError(t, err)
	again, err := m.Get(ctx, "sid-a")
	require.NoError(t, err)
	b, err := m.Get(ctx, "sid-b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, auth.StateAnonymous, a.Auth.State())

	_, err = m.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySessionID)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _, _, _ := setupManagerTest(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "sid-a")
	require.NoError(t, err)
	b, err := m.Get(ctx, "sid-b")
	require.NoError(t, err)

	_, err = a.Auth.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)

	assert.True(t, a.Auth.IsAuthenticated())
	assert.False(t, b.Auth.IsAuthenticated())
	assert.Len(t, a.Cart.Snapshot().Items, 1)
	assert.Empty(t, b.Cart.Snapshot().Items)
}

func TestManager_LoginFetchesCartAndPushes(t *testing.T) {
	m, _, pusher, _ := setupManagerTest(t)
	ctx := context.Background()

	sess, err := m.Get(ctx, "sid-a")
	require.NoError(t, err)
	_, err = sess.Auth.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)

	snap := sess.Cart.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "200", snap.Total.String())

	pushedSnap, ok := pusher.last("sid-a", MessageCart).(cart.Snapshot)
	require.True(t, ok)
	assert.Len(t, pushedSnap.Items, 1)
}

func TestManager_RestoresPersistedCredential(t *testing.T) {
	m, backend, _, store := setupManagerTest(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "sid-returning", "t-1"))

	sess, err := m.Get(ctx, "sid-returning")
	require.NoError(t, err)
	assert.True(t, sess.Auth.IsAuthenticated())
	assert.Len(t, sess.Cart.Snapshot().Items, 1)

	backend.mu.Lock()
	assert.Equal(t, 1, backend.meRequests)
	backend.mu.Unlock()
}

func TestManager_UnauthorizedExpiresSessionAndEmptiesCart(t *testing.T) {
	m, backend, pusher, store := setupManagerTest(t)
	ctx := context.Background()

	sess, err := m.Get(ctx, "sid-a")
	require.NoError(t, err)
	_, err = sess.Auth.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.revoked = true
	backend.mu.Unlock()

	_, err = sess.Cart.Fetch(ctx)
	assert.ErrorIs(t, err, cart.ErrSessionExpired)
	assert.Equal(t, auth.StateAnonymous, sess.Auth.State())
	assert.Empty(t, sess.Cart.Snapshot().Items)

	token, err := store.Load(ctx, "sid-a")
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.Contains(t, pusher.kinds("sid-a"), MessageSessionExpired)
	payload, _ := pusher.last("sid-a", MessageSessionExpired).(map[string]string)
	assert.Equal(t, "/login", payload["redirect"])
}

func TestManager_DebouncedSearchPushesResults(t *testing.T) {
	m, backend, pusher, _ := setupManagerTest(t)

	sess, err := m.Get(context.Background(), "sid-a")
	require.NoError(t, err)

	sess.Search.Submit("m")
	sess.Search.Submit("ma")
	sess.Search.Submit("man")

	require.Eventually(t, func() bool {
		return pusher.last("sid-a", MessageSearchResults) != nil
	}, time.Second, 5*time.Millisecond)

	res := pusher.last("sid-a", MessageSearchResults).(SearchResults)
	assert.Equal(t, "man", res.Query)
	require.Len(t, res.Products, 1)

	backend.mu.Lock()
	assert.Equal(t, []string{"man"}, backend.searches)
	backend.mu.Unlock()

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"query":"man"`)
}

func TestManager_SweepDropsIdleSessions(t *testing.T) {
	m, _, _, _ := setupManagerTest(t)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	_, err := m.Get(ctx, "sid-old")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = m.Get(ctx, "sid-new")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Sweep(10*time.Minute))
	_, ok := m.Lookup("sid-old")
	assert.False(t, ok)
	_, ok = m.Lookup("sid-new")
	assert.True(t, ok)
}
