// Package tokenstore persists the bearer credential of each visitor session.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/storefront/internal/app/repository"
	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverDatabase = "database"
)

var (
	ErrEmptySessionID = errors.New("session id is required")
	ErrUnknownDriver  = errors.New("unknown token store driver")
)

// Store keeps one credential string per visitor session id. Load returns ""
// when nothing is stored.
type Store interface {
	Load(ctx context.Context, sessionID string) (string, error)
	Save(ctx context.Context, sessionID, token string) error
	Delete(ctx context.Context, sessionID string) error
}

// Options carries the backends a driver may need.
type Options struct {
	Driver     string
	DefaultTTL time.Duration
	Redis      *redis.Client
	Repository repository.CredentialRepository
}

// New builds the store selected by opts.Driver.
func New(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(opts.DefaultTTL), nil
	case DriverRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("%w: redis driver requires a redis client", ErrUnknownDriver)
		}
		return NewRedisStore(opts.Redis, opts.DefaultTTL), nil
	case DriverDatabase:
		if opts.Repository == nil {
			return nil, fmt.Errorf("%w: database driver requires a repository", ErrUnknownDriver)
		}
		return NewDatabaseStore(opts.Repository, opts.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// Scoped binds a Store to one session id. It satisfies apiclient.Credentials.
type Scoped struct {
	store     Store
	sessionID string
}

// For returns the credential accessor of sessionID.
func For(store Store, sessionID string) *Scoped {
	return &Scoped{store: store, sessionID: sessionID}
}

func (s *Scoped) Token(ctx context.Context) (string, error) {
	return s.store.Load(ctx, s.sessionID)
}

func (s *Scoped) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.store.Delete(ctx, s.sessionID)
	}
	return s.store.Save(ctx, s.sessionID, token)
}

func (s *Scoped) ClearToken(ctx context.Context) error {
	return s.store.Delete(ctx, s.sessionID)
}

// HasToken reports whether a credential is currently stored.
func (s *Scoped) HasToken(ctx context.Context) (bool, error) {
	token, err := s.Token(ctx)
	return token != "", err
}
