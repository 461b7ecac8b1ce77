package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials under credential:<session id> with a TTL that
// follows the token's own expiry.
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewRedisStore(client *redis.Client, defaultTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

func (r *RedisStore) Load(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	token, err := r.client.Get(ctx, credentialKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return token, nil
}

func (r *RedisStore) Save(ctx context.Context, sessionID, token string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	ttl := TokenTTL(token, r.defaultTTL, time.Now())
	if err := r.client.Set(ctx, credentialKey(sessionID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	logger.Debug("Credential stored", map[string]interface{}{
		"session_id": sessionID,
		"ttl":        ttl.String(),
	})
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if err := r.client.Del(ctx, credentialKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func credentialKey(sessionID string) string {
	return fmt.Sprintf("credential:%s", sessionID)
}
