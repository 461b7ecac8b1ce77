package repository

import (
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepository interface {
	FindBySessionID(sessionID string) (*model.StoredCredential, error)
	Upsert(credential *model.StoredCredential) error
	DeleteBySessionID(sessionID string) error
	DeleteExpired(now time.Time) (int64, error)
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) FindBySessionID(sessionID string) (*model.StoredCredential, error) {
	var credential model.StoredCredential
	err := r.db.Where("session_id = ?", sessionID).First(&credential).Error
	if err != nil {
		return nil, err
	}
	return &credential, nil
}

func (r *credentialRepository) Upsert(credential *model.StoredCredential) error {
	logger.Debug("Upserting visitor credential", map[string]interface{}{
		"session_id": credential.SessionID,
		"expires_at": credential.ExpiresAt,
	})

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(credential).Error
	if err != nil {
		logger.Error("Failed to upsert visitor credential", err, map[string]interface{}{
			"session_id": credential.SessionID,
		})
		return err
	}
	return nil
}

func (r *credentialRepository) DeleteBySessionID(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.StoredCredential{}).Error; err != nil {
		logger.Error("Failed to delete visitor credential", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}
	return nil
}

func (r *credentialRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&model.StoredCredential{})
	if result.Error != nil {
		logger.Error("Failed to purge expired credentials", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		logger.Info("Purged expired visitor credentials", map[string]interface{}{
			"count": result.RowsAffected,
		})
	}
	return result.RowsAffected, nil
}
