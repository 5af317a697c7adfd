package handler

import (
	"context"

	"github.com/google/uuid"

	fiscalapp "github.com/erp/marketsync/internal/application/fiscal"
	"github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
)

// MarketplaceAuthenticator runs the OAuth flows of a marketplace
type MarketplaceAuthenticator interface {
	BeginAuthorization(ctx context.Context, code marketplace.Code) (*integration.AuthorizationStart, error)
	CompleteAuthorization(ctx context.Context, code marketplace.Code, state, authCode string) (*marketplace.TokenRecord, error)
	Authenticate(ctx context.Context, code marketplace.Code, authCode string) (*marketplace.TokenRecord, error)
	Refresh(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error)
	History(ctx context.Context, code marketplace.Code, limit int) ([]*marketplace.TokenRecord, error)
}

// OrderSyncer pulls recent marketplace orders
type OrderSyncer interface {
	SyncRecentOrders(ctx context.Context, code marketplace.Code) (*integration.SyncResult, error)
}

// FulfillmentUpdater forwards stock and tracking to a marketplace
type FulfillmentUpdater interface {
	UpdateStock(ctx context.Context, code marketplace.Code, itemID string, quantity int) error
	SendTracking(ctx context.Context, code marketplace.Code, orderID string, info marketplace.TrackingInfo) error
}

// QueueDrainer processes the fiscal job queue
type QueueDrainer interface {
	Drain(ctx context.Context, batchSize int) (*integration.DrainResult, error)
	Stats(ctx context.Context) (fiscal.QueueStats, error)
}

// DocumentBundler packs the artifacts of an emitted document
type DocumentBundler interface {
	Bundle(ctx context.Context, documentNumber string) (*fiscalapp.Bundle, error)
}

// CredentialStore manages fiscal API credentials
type CredentialStore interface {
	Save(ctx context.Context, userID, apiKey, environment string) (*fiscal.Credential, error)
	Get(ctx context.Context, userID string) (*fiscal.Credential, error)
}

// OrderReader lists stored orders
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	List(ctx context.Context, filter order.Filter) ([]*order.Order, int64, error)
}

// JobScheduler exposes the pipeline scheduler
type JobScheduler interface {
	Status() []scheduler.JobStatus
	History(limit int) []*scheduler.Run
	TriggerNow(ctx context.Context, name string) (*scheduler.Run, error)
}

var (
	_ MarketplaceAuthenticator = (*integration.TokenManager)(nil)
	_ OrderSyncer              = (*integration.OrderSynchronizer)(nil)
	_ FulfillmentUpdater       = (*integration.FulfillmentService)(nil)
	_ QueueDrainer             = (*integration.QueueProcessor)(nil)
	_ DocumentBundler          = (*fiscalapp.ArtifactService)(nil)
	_ CredentialStore          = (*integration.CredentialService)(nil)
	_ JobScheduler             = (*scheduler.PipelineScheduler)(nil)
)
