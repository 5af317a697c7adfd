package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TokenSource hands out a usable access token for a marketplace
type TokenSource interface {
	ValidToken(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error)
}

// SyncResult summarises one sync pass
type SyncResult struct {
	Marketplace marketplace.Code `json:"marketplace"`
	Fetched     int              `json:"fetched"`
	Stored      int              `json:"stored"`
	Skipped     int              `json:"skipped"`
	Failed      int              `json:"failed"`
	Duration    time.Duration    `json:"duration"`
}

// OrderSynchronizer pulls recent orders from a marketplace and stores the
// unseen ones together with their fiscal job.
type OrderSynchronizer struct {
	registry *marketplace.Registry
	tokens   TokenSource
	intake   fiscal.OrderIntake
	logger   *zap.Logger
	metrics  *telemetry.PipelineMetrics
	now      func() time.Time
}

// NewOrderSynchronizer creates an OrderSynchronizer
func NewOrderSynchronizer(
	registry *marketplace.Registry,
	tokens TokenSource,
	intake fiscal.OrderIntake,
	logger *zap.Logger,
) *OrderSynchronizer {
	return &OrderSynchronizer{
		registry: registry,
		tokens:   tokens,
		intake:   intake,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPipelineMetrics sets the metrics collector
func (s *OrderSynchronizer) SetPipelineMetrics(pm *telemetry.PipelineMetrics) {
	s.metrics = pm
}

// SetClock overrides the clock used for sync and job timestamps
func (s *OrderSynchronizer) SetClock(now func() time.Time) {
	s.now = now
}

// SyncRecentOrders runs one sync pass. Token and fetch failures abort the
// pass; a failure on a single order is logged and counted, and the pass
// moves on to the next order in API order.
func (s *OrderSynchronizer) SyncRecentOrders(ctx context.Context, code marketplace.Code) (*SyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "order_sync", "sync_recent", telemetry.AttrMarketplace.String(code.String()))
	result, err := s.syncRecentOrders(ctx, code)
	telemetry.EndSpan(span, err)
	return result, err
}

func (s *OrderSynchronizer) syncRecentOrders(ctx context.Context, code marketplace.Code) (*SyncResult, error) {
	started := time.Now()
	mp, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.ValidToken(ctx, code)
	if err != nil {
		return nil, err
	}

	remote, err := mp.FetchRecentOrders(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch recent %s orders: %w", code, err)
	}

	result := &SyncResult{Marketplace: code, Fetched: len(remote)}
	log := s.logger.With(zap.String("marketplace", code.String()))

	for _, r := range remote {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, result, started), err
		}

		stored, err := s.storeOrder(ctx, mp, r)
		switch {
		case err != nil:
			result.Failed++
			var mappingErr *order.MappingError
			if errors.As(err, &mappingErr) {
				log.Warn("Skipping order that could not be mapped",
					zap.String("external_id", r.ExternalID),
					zap.Error(err),
				)
			} else {
				log.Error("Failed to store order",
					zap.String("external_id", r.ExternalID),
					zap.Error(err),
				)
			}
		case stored:
			result.Stored++
		default:
			result.Skipped++
		}
	}

	s.finish(ctx, result, started)
	log.Info("Order sync completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("stored", result.Stored),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// storeOrder reports whether r was new. The existence check only avoids
// needless mapping; the unique key in Insert is what prevents duplicates.
func (s *OrderSynchronizer) storeOrder(ctx context.Context, mp marketplace.Marketplace, r marketplace.RemoteOrder) (bool, error) {
	code := mp.Code().String()
	exists, err := s.intake.Exists(ctx, code, r.ExternalID)
	if err != nil {
		return false, fmt.Errorf("check order %s: %w", r.ExternalID, err)
	}
	if exists {
		return false, nil
	}

	o, err := mp.MapOrder(r)
	if err != nil {
		var mappingErr *order.MappingError
		if !errors.As(err, &mappingErr) {
			err = &order.MappingError{Marketplace: code, ExternalID: r.ExternalID, Err: err}
		}
		return false, err
	}

	now := s.now().UTC()
	o.SyncedAt = now
	return s.intake.Insert(ctx, o, fiscal.NewJob(o.ID, now))
}

func (s *OrderSynchronizer) finish(ctx context.Context, result *SyncResult, started time.Time) *SyncResult {
	result.Duration = time.Since(started)
	if s.metrics != nil {
		s.metrics.RecordSync(ctx, result.Marketplace.String(), result.Fetched, result.Stored, result.Skipped, result.Failed)
	}
	return result
}
