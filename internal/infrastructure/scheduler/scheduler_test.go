package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/cache"
	"github.com/erp/marketsync/internal/infrastructure/logger"
)

func testConfig() Config {
	return Config{Enabled: true, RunTimeout: time.Second, HistorySize: 10}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", testConfig(), false},
		{"zero timeout", Config{RunTimeout: 0, HistorySize: 1}, true},
		{"zero history", Config{RunTimeout: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewPipelineScheduler_RejectsBadTasks(t *testing.T) {
	noop := func(context.Context) (any, error) { return nil, nil }

	_, err := NewPipelineScheduler(testConfig(), nil, zap.NewNop(), Task{Name: "a", Interval: 0, Run: noop})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPipelineScheduler(testConfig(), nil, zap.NewNop(),
		Task{Name: "a", Interval: time.Minute, Run: noop},
		Task{Name: "a", Interval: time.Minute, Run: noop},
	)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPipelineScheduler_RunsOnInterval(t *testing.T) {
	var calls atomic.Int32
	s, err := NewPipelineScheduler(testConfig(), cache.NewInMemoryRunGuard(), zap.NewNop(), Task{
		Name:     "sync_orders",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) (any, error) {
			calls.Add(1)
			return map[string]int{"stored": 1}, nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(ctx))

	history := s.History(0)
	require.NotEmpty(t, history)
	assert.Equal(t, RunStatusSuccess, history[0].Status)
	assert.Equal(t, TriggerSchedule, history[0].Trigger)
	assert.Equal(t, map[string]int{"stored": 1}, history[0].Result)

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "sync_orders", status[0].Name)
	require.NotNil(t, status[0].LastRun)
	assert.Nil(t, status[0].NextRunAt, "a stopped scheduler has no next run")
}

func TestPipelineScheduler_DisabledDoesNotStart(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s, err := NewPipelineScheduler(cfg, nil, zap.NewNop(), Task{
		Name: "drain_fiscal_queue", Interval: time.Millisecond,
		Run: func(context.Context) (any, error) { return nil, nil },
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())

	_, err = s.TriggerNow(context.Background(), "drain_fiscal_queue")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestPipelineScheduler_TriggerNow(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s, err := NewPipelineScheduler(testConfig(), cache.NewInMemoryRunGuard(), zap.NewNop(), Task{
		Name:     "drain_fiscal_queue",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			calls.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return nil, errors.New("bling unavailable")
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	run, err := s.TriggerNow(ctx, "drain_fiscal_queue")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, TriggerManual, run.Trigger)

	t.Run("overlapping trigger is refused", func(t *testing.T) {
		_, err := s.TriggerNow(ctx, "drain_fiscal_queue")
		assert.ErrorIs(t, err, ErrRunInProgress)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := s.TriggerNow(ctx, "rebuild_index")
		assert.ErrorIs(t, err, ErrUnknownJob)
	})

	close(release)
	assert.Eventually(t, func() bool {
		h := s.History(1)
		return len(h) == 1 && h[0].Status == RunStatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	last := s.History(1)[0]
	assert.Equal(t, run.ID, last.ID)
	assert.Equal(t, "bling unavailable", last.Error)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Status()[0].Running)
}

func TestPipelineScheduler_SkipsTickWhileRunning(t *testing.T) {
	guard := cache.NewInMemoryRunGuard()
	release, ok, err := guard.Acquire(context.Background(), "sync_orders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	var calls atomic.Int32
	s, err := NewPipelineScheduler(testConfig(), guard, zap.NewNop(), Task{
		Name:     "sync_orders",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Eventually(t, func() bool {
		h := s.History(1)
		return len(h) == 1 && h[0].Status == RunStatusSkipped
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(ctx))

	assert.Zero(t, calls.Load())
	assert.Nil(t, s.Status()[0].LastRun)
}

func TestPipelineScheduler_RunOnce(t *testing.T) {
	s, err := NewPipelineScheduler(testConfig(), nil, zap.NewNop(), Task{
		Name:     "sync_orders",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			panic("nil registry")
		},
	})
	require.NoError(t, err)

	run, err := s.RunOnce(context.Background(), "sync_orders")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "panicked")
}

func TestPipelineScheduler_RunContext(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var seenRunID string
	s, err := NewPipelineScheduler(testConfig(), nil, zap.NewNop(), Task{
		Name:     "drain_fiscal_queue",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			seenRunID = logger.GetRunID(ctx)
			return nil, errors.New("bling down")
		},
	})
	require.NoError(t, err)

	run, err := s.RunOnce(context.Background(), "drain_fiscal_queue")
	require.NoError(t, err)
	assert.Equal(t, run.ID.String(), seenRunID)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "scheduler.drain_fiscal_queue", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestPipelineScheduler_RunTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RunTimeout = 20 * time.Millisecond
	s, err := NewPipelineScheduler(cfg, nil, zap.NewNop(), Task{
		Name:     "sync_orders",
		Interval: time.Hour,
		Run: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err)

	run, err := s.RunOnce(context.Background(), "sync_orders")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "run exceeded")
}

func TestPipelineScheduler_HistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistorySize = 3
	s, err := NewPipelineScheduler(cfg, nil, zap.NewNop(), Task{
		Name: "sync_orders", Interval: time.Hour,
		Run: func(context.Context) (any, error) { return nil, nil },
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.RunOnce(context.Background(), "sync_orders")
		require.NoError(t, err)
	}
	assert.Len(t, s.History(0), 3)
	assert.Len(t, s.History(2), 2)
}
