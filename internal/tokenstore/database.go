package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/repository"
	"gorm.io/gorm"
)

// DatabaseStore persists credentials in the visitor_credentials table.
type DatabaseStore struct {
	repo       repository.CredentialRepository
	defaultTTL time.Duration
	now        func() time.Time
}

func NewDatabaseStore(repo repository.CredentialRepository, defaultTTL time.Duration) *DatabaseStore {
	return &DatabaseStore{
		repo:       repo,
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (d *DatabaseStore) Load(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	credential, err := d.repo.FindBySessionID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if credential.Expired(d.now()) {
		return "", d.repo.DeleteBySessionID(sessionID)
	}
	return credential.Token, nil
}

func (d *DatabaseStore) Save(_ context.Context, sessionID, token string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	now := d.now()
	return d.repo.Upsert(&model.StoredCredential{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: now.Add(TokenTTL(token, d.defaultTTL, now)),
	})
}

func (d *DatabaseStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return d.repo.DeleteBySessionID(sessionID)
}

// Purge drops expired rows. Called from the scheduler.
func (d *DatabaseStore) Purge(_ context.Context) (int64, error) {
	return d.repo.DeleteExpired(d.now())
}
