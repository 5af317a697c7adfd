package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/order"
)

// Job is a pending fiscal emission for one order. Jobs are created together
// with their order and are never deleted.
type Job struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Processed   bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
	LastError   string
	// DocumentNumber is set when the fiscal API accepted the document but
	// the emission did not finish; later attempts resume instead of
	// submitting again
	DocumentNumber string
}

// NewJob creates an unprocessed job for orderID
func NewJob(orderID uuid.UUID, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		OrderID:   orderID,
		CreatedAt: now.UTC(),
	}
}

// MarkProcessed flags the job as done
func (j *Job) MarkProcessed(at time.Time) {
	t := at.UTC()
	j.Processed = true
	j.ProcessedAt = &t
	j.LastError = ""
}

// RecordFailure notes a failed attempt; the job stays unprocessed
func (j *Job) RecordFailure(err error) {
	j.Attempts++
	if err != nil {
		j.LastError = err.Error()
	}
}

// QueueStats summarises the job queue
type QueueStats struct {
	Pending   int64 `json:"pending"`
	Failing   int64 `json:"failing"`
	Processed int64 `json:"processed"`
}

// JobRepository is the fiscal job queue
type JobRepository interface {
	// FindUnprocessed returns up to limit unprocessed jobs ordered by
	// attempts, then age, then id
	FindUnprocessed(ctx context.Context, limit int) ([]*Job, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// Complete attaches result to the job's order and marks the job
	// processed in one transaction
	Complete(ctx context.Context, job *Job, result order.FiscalResult) error
	// MarkProcessed flags a job whose order already carries a fiscal result
	MarkProcessed(ctx context.Context, job *Job) error
	RecordFailure(ctx context.Context, job *Job) error
	Stats(ctx context.Context) (QueueStats, error)
}

// OrderIntake persists a newly seen order together with its job.
// Insert reports false, and writes nothing, when the order already exists.
type OrderIntake interface {
	Exists(ctx context.Context, marketplace, externalID string) (bool, error)
	Insert(ctx context.Context, o *order.Order, job *Job) (bool, error)
}
