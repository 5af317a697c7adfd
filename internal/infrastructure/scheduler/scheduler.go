package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/cache"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

// RunStatus represents the outcome of a job run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// Trigger says what started a run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Run records one execution of a job
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Job         string     `json:"job"`
	Trigger     Trigger    `json:"trigger"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Result      any        `json:"result,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newRun(job string, trigger Trigger, now time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		Job:       job,
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: now,
	}
}

func (r *Run) finish(result any, err error, now time.Time) {
	r.CompletedAt = &now
	r.Result = result
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusSuccess
}

// Duration is zero while the run is in progress
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TaskFunc performs one run of a job. The returned value is kept in the
// run history and must be JSON serialisable.
type TaskFunc func(ctx context.Context) (any, error)

// Task is a job executed on a fixed interval
type Task struct {
	Name     string
	Interval time.Duration
	Run      TaskFunc
}

// JobStatus is the externally visible state of one job
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Running   bool          `json:"running"`
	NextRunAt *time.Time    `json:"next_run_at,omitempty"`
	LastRun   *Run          `json:"last_run,omitempty"`
}

// Config holds pipeline scheduler settings
type Config struct {
	Enabled     bool
	RunTimeout  time.Duration
	HistorySize int
}

// ConfigFrom adapts the application configuration
func ConfigFrom(cfg config.SchedulerConfig) Config {
	return Config{
		Enabled:     cfg.Enabled,
		RunTimeout:  cfg.RunTimeout,
		HistorySize: cfg.HistorySize,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history size must be positive", ErrInvalidConfig)
	}
	return nil
}

type jobState struct {
	task      Task
	running   bool
	nextRunAt *time.Time
	lastRun   *Run
}

// PipelineScheduler runs each registered task on its own ticker. A run is
// skipped while the previous run of the same task still holds the guard,
// so overlapping ticks never execute a task twice.
type PipelineScheduler struct {
	config  Config
	guard   cache.RunGuard
	logger  *zap.Logger
	metrics *telemetry.PipelineMetrics
	now     func() time.Time

	mu        sync.Mutex
	jobs      map[string]*jobState
	order     []string
	history   []*Run
	cancel    context.CancelFunc
	runCtx    context.Context
	wg        sync.WaitGroup
	isRunning bool
}

// NewPipelineScheduler creates a scheduler for the given tasks
func NewPipelineScheduler(cfg Config, guard cache.RunGuard, logger *zap.Logger, tasks ...Task) (*PipelineScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if guard == nil {
		guard = cache.NewInMemoryRunGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &PipelineScheduler{
		config: cfg,
		guard:  guard,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*jobState, len(tasks)),
	}
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil || t.Interval <= 0 {
			return nil, fmt.Errorf("%w: task %q needs a name, a run function and a positive interval", ErrInvalidConfig, t.Name)
		}
		if _, dup := s.jobs[t.Name]; dup {
			return nil, fmt.Errorf("%w: task %q registered twice", ErrInvalidConfig, t.Name)
		}
		s.jobs[t.Name] = &jobState{task: t}
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// SetPipelineMetrics sets the metrics collector
func (s *PipelineScheduler) SetPipelineMetrics(pm *telemetry.PipelineMetrics) {
	s.metrics = pm
}

// Start starts one loop per task. It is a no-op when the scheduler is
// disabled or already running.
func (s *PipelineScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Pipeline scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runCtx = ctx
	for _, name := range s.order {
		state := s.jobs[name]
		next := s.now().Add(state.task.Interval)
		state.nextRunAt = &next
		s.wg.Add(1)
		go s.loop(ctx, state.task)
	}
	s.mu.Unlock()

	s.logger.Info("Pipeline scheduler started",
		zap.Strings("jobs", s.order),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop cancels all loops and in-flight runs and waits for them to return
func (s *PipelineScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Pipeline scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Pipeline scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *PipelineScheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.setNextRun(task.Name, s.now().Add(task.Interval))
			release, ok, err := s.acquire(ctx, task.Name)
			if err != nil {
				s.logger.Error("Failed to acquire run guard", zap.String("job", task.Name), zap.Error(err))
				continue
			}
			if !ok {
				s.logger.Info("Previous run still in progress, skipping tick", zap.String("job", task.Name))
				s.record(&Run{
					ID: uuid.New(), Job: task.Name, Trigger: TriggerSchedule,
					Status: RunStatusSkipped, StartedAt: s.now(),
				})
				continue
			}
			s.execute(ctx, task, TriggerSchedule, release)
		}
	}
}

// TriggerNow starts a run of the named job outside its schedule. It
// returns once the run has started; the run itself continues in the
// background.
func (s *PipelineScheduler) TriggerNow(ctx context.Context, name string) (*Run, error) {
	s.mu.Lock()
	state, ok := s.jobs[name]
	running := s.isRunning
	runCtx := s.runCtx
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !running {
		return nil, ErrSchedulerNotRunning
	}

	release, acquired, err := s.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, name)
	}

	run := newRun(name, TriggerManual, s.now())
	started := *run
	s.markRunning(name, true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeRun(runCtx, state.task, run, release)
	}()
	return &started, nil
}

// RunOnce executes the named job synchronously in the caller's goroutine.
// It is used by command line tools that run without the background loops.
func (s *PipelineScheduler) RunOnce(ctx context.Context, name string) (*Run, error) {
	s.mu.Lock()
	state, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	release, acquired, err := s.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, name)
	}

	run := newRun(name, TriggerManual, s.now())
	s.markRunning(name, true)
	s.executeRun(ctx, state.task, run, release)
	return run, nil
}

func (s *PipelineScheduler) acquire(ctx context.Context, name string) (func(), bool, error) {
	// The guard outlives the run timeout slightly so that a run that is
	// being cancelled still holds it.
	return s.guard.Acquire(ctx, name, s.config.RunTimeout+30*time.Second)
}

func (s *PipelineScheduler) execute(ctx context.Context, task Task, trigger Trigger, release func()) {
	run := newRun(task.Name, trigger, s.now())
	s.markRunning(task.Name, true)
	s.executeRun(ctx, task, run, release)
}

func (s *PipelineScheduler) executeRun(ctx context.Context, task Task, run *Run, release func()) {
	defer release()
	defer s.markRunning(task.Name, false)

	runCtx, log := logger.WithRunID(ctx, s.logger.With(
		zap.String("job", task.Name),
		zap.String("trigger", string(run.Trigger)),
	), run.ID.String())
	log.Info("Job run started")

	runCtx, cancel := context.WithTimeout(runCtx, s.config.RunTimeout)
	defer cancel()
	runCtx, span := telemetry.StartSpan(runCtx, "scheduler", task.Name,
		telemetry.AttrJob.String(task.Name),
		attribute.String("trigger", string(run.Trigger)),
	)

	result, err := s.safeRun(runCtx, task)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("run exceeded %s: %w", s.config.RunTimeout, err)
	}
	telemetry.EndSpan(span, err)
	run.finish(result, err, s.now())
	s.record(run)

	if s.metrics != nil {
		s.metrics.RecordRun(ctx, task.Name, run.Duration(), err)
	}
	if err != nil {
		log.Error("Job run failed", zap.Duration("duration", run.Duration()), zap.Error(err))
		return
	}
	log.Info("Job run completed", zap.Duration("duration", run.Duration()))
}

// safeRun keeps a panicking task from taking the scheduler down
func (s *PipelineScheduler) safeRun(ctx context.Context, task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", task.Name, r)
		}
	}()
	return task.Run(ctx)
}

func (s *PipelineScheduler) markRunning(name string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.jobs[name]; ok {
		state.running = running
	}
}

func (s *PipelineScheduler) setNextRun(name string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.jobs[name]; ok {
		state.nextRunAt = &next
	}
}

func (s *PipelineScheduler) record(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.jobs[run.Job]; ok && run.Status != RunStatusSkipped {
		state.lastRun = run
	}
	s.history = append([]*Run{run}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns the most recent runs, newest first
func (s *PipelineScheduler) History(limit int) []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]*Run, limit)
	copy(out, s.history[:limit])
	return out
}

// Status reports every registered job, sorted by name
func (s *PipelineScheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, state := range s.jobs {
		st := JobStatus{
			Name:     name,
			Interval: state.task.Interval,
			Running:  state.running,
			LastRun:  state.lastRun,
		}
		if s.isRunning && state.nextRunAt != nil {
			next := *state.nextRunAt
			st.NextRunAt = &next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsRunning reports whether the background loops are active
func (s *PipelineScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
