package order

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows order listings
type Filter struct {
	Marketplace string
	// Emitted filters on fiscal status when set
	Emitted  *bool
	Page     int
	PageSize int
}

// Repository is the order store
type Repository interface {
	Exists(ctx context.Context, marketplace, externalID string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByExternalID(ctx context.Context, marketplace, externalID string) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, int64, error)
}
