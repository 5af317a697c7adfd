package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/fiscal"
)

// FiscalJobModel is one entry of the fiscal emission queue
type FiscalJobModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Processed      bool       `gorm:"not null;default:false;index:idx_fiscal_jobs_pending,priority:1"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_fiscal_jobs_pending,priority:3"`
	ProcessedAt    *time.Time `gorm:""`
	Attempts       int        `gorm:"not null;default:0;index:idx_fiscal_jobs_pending,priority:2"`
	LastError      string     `gorm:"type:text"`
	DocumentNumber string     `gorm:"type:varchar(64)"`
}

// TableName returns the table name for GORM
func (FiscalJobModel) TableName() string {
	return "fiscal_jobs"
}

// ToDomain converts the model to a domain job
func (m *FiscalJobModel) ToDomain() *fiscal.Job {
	return &fiscal.Job{
		ID:             m.ID,
		OrderID:        m.OrderID,
		Processed:      m.Processed,
		CreatedAt:      m.CreatedAt.UTC(),
		ProcessedAt:    m.ProcessedAt,
		Attempts:       m.Attempts,
		LastError:      m.LastError,
		DocumentNumber: m.DocumentNumber,
	}
}

// FromDomain populates the model from a domain job
func (m *FiscalJobModel) FromDomain(j *fiscal.Job) {
	m.ID = j.ID
	m.OrderID = j.OrderID
	m.Processed = j.Processed
	m.CreatedAt = j.CreatedAt
	m.ProcessedAt = j.ProcessedAt
	m.Attempts = j.Attempts
	m.LastError = j.LastError
	m.DocumentNumber = j.DocumentNumber
}

// FiscalCredentialModel stores fiscal API credentials. The API key column
// holds ciphertext.
type FiscalCredentialModel struct {
	UserID          string    `gorm:"type:varchar(64);primaryKey"`
	APIKeyEncrypted string    `gorm:"type:text;not null"`
	Environment     string    `gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (FiscalCredentialModel) TableName() string {
	return "fiscal_credentials"
}
