package models

import (
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// TokenRecordModel is one row of the append-only token history. Tokens are
// stored as produced by the field cipher.
type TokenRecordModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Marketplace  string    `gorm:"type:varchar(32);not null;index:idx_token_records_current,priority:1"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text;not null;default:''"`
	ExpiresIn    int       `gorm:"not null;default:0"`
	IssuedAt     time.Time `gorm:"not null;index:idx_token_records_current,priority:2"`
}

// TableName returns the table name for GORM
func (TokenRecordModel) TableName() string {
	return "token_records"
}

// ToDomain converts the model; token fields are returned as stored
func (m *TokenRecordModel) ToDomain() *marketplace.TokenRecord {
	return &marketplace.TokenRecord{
		ID:               m.ID,
		Marketplace:      marketplace.Code(m.Marketplace),
		AccessToken:      m.AccessToken,
		RefreshToken:     m.RefreshToken,
		ExpiresInSeconds: m.ExpiresIn,
		IssuedAt:         m.IssuedAt.UTC(),
	}
}

// FromDomain populates the model from a domain record
func (m *TokenRecordModel) FromDomain(rec *marketplace.TokenRecord) {
	m.ID = rec.ID
	m.Marketplace = rec.Marketplace.String()
	m.AccessToken = rec.AccessToken
	m.RefreshToken = rec.RefreshToken
	m.ExpiresIn = rec.ExpiresInSeconds
	m.IssuedAt = rec.IssuedAt
}
