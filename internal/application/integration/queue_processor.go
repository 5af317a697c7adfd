package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultBatchSize is used when a drain is requested without a size
const DefaultBatchSize = 5

// MaxBatchSize caps a single drain
const MaxBatchSize = 100

// OrderFinder resolves the order a job references
type OrderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// DrainResult summarises one drain. Skipped jobs reference an order that
// no longer exists; they stay unprocessed with the attempt recorded and are
// not counted as failed.
type DrainResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// QueueProcessor drains the fiscal job queue in bounded batches
type QueueProcessor struct {
	jobs    fiscal.JobRepository
	orders  OrderFinder
	emitter fiscal.Emitter
	logger  *zap.Logger
	metrics *telemetry.PipelineMetrics
	now     func() time.Time
}

// NewQueueProcessor creates a QueueProcessor
func NewQueueProcessor(jobs fiscal.JobRepository, orders OrderFinder, emitter fiscal.Emitter, logger *zap.Logger) *QueueProcessor {
	return &QueueProcessor{
		jobs:    jobs,
		orders:  orders,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// SetPipelineMetrics sets the metrics collector
func (p *QueueProcessor) SetPipelineMetrics(pm *telemetry.PipelineMetrics) {
	p.metrics = pm
}

// SetClock overrides the clock used for emission timestamps
func (p *QueueProcessor) SetClock(now func() time.Time) {
	p.now = now
}

// Drain processes up to batchSize unprocessed jobs, least attempted and
// oldest first. A job is
// marked processed only after its document was emitted and attached to the
// order; every other outcome leaves it for the next drain. A non-positive
// batchSize means DefaultBatchSize and larger sizes are capped at
// MaxBatchSize.
//
// Cancelling ctx stops the drain between jobs. A job that has started runs
// to completion, so an accepted document is always recorded.
func (p *QueueProcessor) Drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	batchSize = clampBatchSize(batchSize)

	ctx, span := telemetry.StartSpan(ctx, "fiscal_queue", "drain")
	result, err := p.drain(ctx, batchSize)
	telemetry.EndSpan(span, err)
	return result, err
}

func clampBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	}
	return n
}

func (p *QueueProcessor) drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	started := time.Now()
	jobs, err := p.jobs.FindUnprocessed(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load fiscal jobs: %w", err)
	}

	result := &DrainResult{}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Fiscal queue drain interrupted",
				zap.Int("remaining", len(jobs)-i), zap.Error(err))
			p.finish(context.WithoutCancel(ctx), result, started)
			return result, err
		}

		switch p.processJob(context.WithoutCancel(ctx), job) {
		case jobSucceeded:
			result.Succeeded++
		case jobFailed:
			result.Failed++
		case jobSkipped:
			result.Skipped++
		}
	}

	p.finish(ctx, result, started)
	if len(jobs) > 0 {
		p.logger.Info("Fiscal queue drained",
			zap.Int("jobs", len(jobs)),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

type jobOutcome int

const (
	jobSucceeded jobOutcome = iota
	jobFailed
	jobSkipped
)

// processJob runs one job to completion; ctx must not be cancellable
func (p *QueueProcessor) processJob(ctx context.Context, job *fiscal.Job) jobOutcome {
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.String("order_id", job.OrderID.String()))

	o, err := p.orders.FindByID(ctx, job.OrderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		// The attempt is recorded so the job sorts behind fresh work.
		log.Warn("Fiscal job references a missing order, leaving it for inspection")
		p.recordFailure(ctx, log, job, err)
		return jobSkipped
	}
	if err != nil {
		return p.fail(ctx, log, job, fmt.Errorf("load order: %w", err))
	}

	if o.HasFiscalResult() {
		if err := p.jobs.MarkProcessed(ctx, job); err != nil {
			log.Error("Failed to close job for already emitted order", zap.Error(err))
			return jobFailed
		}
		log.Info("Order already emitted, job closed",
			zap.String("document_number", o.FiscalResult.DocumentNumber))
		return jobSucceeded
	}

	artifact, err := p.emit(ctx, log, job, o)
	if err != nil {
		var incomplete *fiscal.IncompleteEmissionError
		if errors.As(err, &incomplete) {
			job.DocumentNumber = incomplete.DocumentNumber
		}
		return p.fail(ctx, log, job, err)
	}

	err = p.jobs.Complete(ctx, job, artifact.Result(p.now()))
	if errors.Is(err, order.ErrFiscalResultAlreadyAttached) {
		log.Warn("Order received a fiscal result concurrently",
			zap.String("document_number", artifact.DocumentNumber))
		if err := p.jobs.MarkProcessed(ctx, job); err != nil {
			log.Error("Failed to close job", zap.Error(err))
			return jobFailed
		}
		return jobSucceeded
	}
	if err != nil {
		// The document exists upstream; the next drain must not submit again.
		job.DocumentNumber = artifact.DocumentNumber
		return p.fail(ctx, log, job, fmt.Errorf("attach fiscal result %s: %w", artifact.DocumentNumber, err))
	}

	log.Info("Fiscal document emitted",
		zap.String("external_id", o.ExternalID),
		zap.String("document_number", artifact.DocumentNumber),
	)
	return jobSucceeded
}

// emit submits the order, or finishes an earlier attempt whose document
// number is already known
func (p *QueueProcessor) emit(ctx context.Context, log *zap.Logger, job *fiscal.Job, o *order.Order) (*fiscal.Artifact, error) {
	if job.DocumentNumber == "" {
		return p.emitter.Emit(ctx, o)
	}
	log.Info("Resuming fiscal emission", zap.String("document_number", job.DocumentNumber))
	return p.emitter.Resume(ctx, o, job.DocumentNumber)
}

func (p *QueueProcessor) fail(ctx context.Context, log *zap.Logger, job *fiscal.Job, cause error) jobOutcome {
	p.recordFailure(ctx, log, job, cause)
	return jobFailed
}

func (p *QueueProcessor) recordFailure(ctx context.Context, log *zap.Logger, job *fiscal.Job, cause error) {
	job.RecordFailure(cause)
	log.Warn("Fiscal job failed", zap.Int("attempts", job.Attempts), zap.Error(cause))
	if err := p.jobs.RecordFailure(ctx, job); err != nil {
		log.Error("Failed to record job failure", zap.Error(err))
	}
}

func (p *QueueProcessor) finish(ctx context.Context, result *DrainResult, started time.Time) {
	result.Duration = time.Since(started)
	if p.metrics == nil {
		return
	}
	p.metrics.RecordDrain(ctx, result.Succeeded, result.Failed, result.Skipped)
	if stats, err := p.jobs.Stats(ctx); err == nil {
		p.metrics.RecordQueueDepth(ctx, stats.Pending)
	}
}

// Stats returns the queue counters
func (p *QueueProcessor) Stats(ctx context.Context) (fiscal.QueueStats, error) {
	return p.jobs.Stats(ctx)
}
