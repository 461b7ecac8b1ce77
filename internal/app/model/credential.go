package model

import "time"

// StoredCredential is the bearer token persisted for one visitor session.
type StoredCredential struct {
	SessionID string    `gorm:"primaryKey;size:64" json:"session_id"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StoredCredential) TableName() string {
	return "visitor_credentials"
}

// Expired reports whether the credential is past its expiry at now.
func (c *StoredCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
