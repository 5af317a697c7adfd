package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides the common persistence fields for uuid-keyed tables
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&TokenRecordModel{},
		&OrderModel{},
		&OrderItemModel{},
		&FiscalJobModel{},
		&FiscalCredentialModel{},
	}
}
