package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
)

// Scheduler job names
const (
	JobSyncOrders       = "sync_orders"
	JobDrainFiscalQueue = "drain_fiscal_queue"
)

// SyncTask pulls recent orders from every enabled marketplace. A failing
// marketplace does not stop the others; their errors are joined.
func SyncTask(s *OrderSynchronizer, registry *marketplace.Registry, interval time.Duration) scheduler.Task {
	return scheduler.Task{
		Name:     JobSyncOrders,
		Interval: interval,
		Run: func(ctx context.Context) (any, error) {
			var (
				results []*SyncResult
				errs    []error
			)
			for _, mp := range registry.Enabled() {
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					break
				}
				res, err := s.SyncRecentOrders(ctx, mp.Code())
				if res != nil {
					results = append(results, res)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", mp.Code(), err))
				}
			}
			return results, errors.Join(errs...)
		},
	}
}

// DrainTask processes one batch of the fiscal job queue
func DrainTask(p *QueueProcessor, batchSize int, interval time.Duration) scheduler.Task {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return scheduler.Task{
		Name:     JobDrainFiscalQueue,
		Interval: interval,
		Run: func(ctx context.Context) (any, error) {
			return p.Drain(ctx, batchSize)
		},
	}
}
