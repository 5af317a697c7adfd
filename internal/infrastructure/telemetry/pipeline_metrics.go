package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the pipeline meters.
const MeterName = "marketsync"

// Outcome attribute values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeStored  = "stored"
)

// PipelineMetrics records the sync and emission pipeline counters.
type PipelineMetrics struct {
	tokenRefreshes *Counter
	ordersFetched  *Counter
	orders         *Counter
	fiscalJobs     *Counter
	runDuration    *Histogram
	queuePending   *Gauge
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewPipelineMetrics: meter cannot be nil")
	}

	var (
		pm  PipelineMetrics
		err error
	)
	if pm.tokenRefreshes, err = NewCounter(meter, "marketsync_token_refreshes_total",
		"Marketplace access token refresh attempts", "{refresh}"); err != nil {
		return nil, err
	}
	if pm.ordersFetched, err = NewCounter(meter, "marketsync_orders_fetched_total",
		"Orders returned by marketplace polling", "{order}"); err != nil {
		return nil, err
	}
	if pm.orders, err = NewCounter(meter, "marketsync_orders_total",
		"Fetched orders by intake outcome", "{order}"); err != nil {
		return nil, err
	}
	if pm.fiscalJobs, err = NewCounter(meter, "marketsync_fiscal_jobs_total",
		"Fiscal jobs handled by the queue processor", "{job}"); err != nil {
		return nil, err
	}
	if pm.runDuration, err = NewHistogram(meter, "marketsync_run_duration_seconds",
		"Duration of scheduled pipeline runs", "s", DurationBuckets); err != nil {
		return nil, err
	}
	if pm.queuePending, err = NewGauge(meter, "marketsync_fiscal_queue_pending",
		"Unprocessed fiscal jobs", "{job}"); err != nil {
		return nil, err
	}
	return &pm, nil
}

// RecordTokenRefresh counts one refresh attempt.
func (m *PipelineMetrics) RecordTokenRefresh(ctx context.Context, marketplace string, err error) {
	m.tokenRefreshes.Inc(ctx, AttrMarketplace.String(marketplace), outcomeOf(err))
}

// RecordSync counts one polling pass.
func (m *PipelineMetrics) RecordSync(ctx context.Context, marketplace string, fetched, stored, skipped, failed int) {
	mp := AttrMarketplace.String(marketplace)
	m.ordersFetched.Add(ctx, int64(fetched), mp)
	m.orders.Add(ctx, int64(stored), mp, AttrOutcome.String(OutcomeStored))
	m.orders.Add(ctx, int64(skipped), mp, AttrOutcome.String(OutcomeSkipped))
	m.orders.Add(ctx, int64(failed), mp, AttrOutcome.String(OutcomeFailure))
}

// RecordDrain counts one queue drain.
func (m *PipelineMetrics) RecordDrain(ctx context.Context, succeeded, failed, skipped int) {
	m.fiscalJobs.Add(ctx, int64(succeeded), AttrOutcome.String(OutcomeSuccess))
	m.fiscalJobs.Add(ctx, int64(failed), AttrOutcome.String(OutcomeFailure))
	m.fiscalJobs.Add(ctx, int64(skipped), AttrOutcome.String(OutcomeSkipped))
}

// RecordRun records the duration of a scheduled job run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, job string, d time.Duration, err error) {
	m.runDuration.RecordDuration(ctx, d, AttrJob.String(job), outcomeOf(err))
}

// RecordQueueDepth sets the pending fiscal job gauge.
func (m *PipelineMetrics) RecordQueueDepth(ctx context.Context, pending int64) {
	m.queuePending.Record(ctx, pending)
}

func outcomeOf(err error) attribute.KeyValue {
	if err != nil {
		return AttrOutcome.String(OutcomeFailure)
	}
	return AttrOutcome.String(OutcomeSuccess)
}
