package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
)

// GormFiscalJobRepository implements fiscal.JobRepository using GORM
type GormFiscalJobRepository struct {
	db *gorm.DB
}

// NewGormFiscalJobRepository creates a new GormFiscalJobRepository
func NewGormFiscalJobRepository(db *gorm.DB) *GormFiscalJobRepository {
	return &GormFiscalJobRepository{db: db}
}

// FindUnprocessed returns up to limit pending jobs. Jobs with fewer failed
// attempts come first so a stuck job cannot starve newer ones.
func (r *GormFiscalJobRepository) FindUnprocessed(ctx context.Context, limit int) ([]*fiscal.Job, error) {
	if limit <= 0 {
		return []*fiscal.Job{}, nil
	}
	var rows []models.FiscalJobModel
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("attempts ASC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find unprocessed jobs: %w", err)
	}

	jobs := make([]*fiscal.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].ToDomain())
	}
	return jobs, nil
}

// FindByID finds a job by id
func (r *GormFiscalJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Job, error) {
	var model models.FiscalJobModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiscal.ErrJobNotFound
		}
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// Complete stores the fiscal result on the order and marks the job processed.
// Both writes commit together; an order that already carries a result is
// left untouched and the call fails with order.ErrFiscalResultAlreadyAttached.
func (r *GormFiscalJobRepository) Complete(ctx context.Context, job *fiscal.Job, result order.FiscalResult) error {
	processedAt := time.Now().UTC()
	if !result.EmittedAt.IsZero() {
		processedAt = result.EmittedAt.UTC()
	}

	var patch models.OrderModel
	patch.SetFiscalResult(result)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderModel{}).
			Where("id = ? AND fiscal_document_number IS NULL", job.OrderID).
			Updates(map[string]any{
				"fiscal_document_number": patch.FiscalDocumentNumber,
				"fiscal_xml_path":        patch.FiscalXMLPath,
				"fiscal_document_path":   patch.FiscalDocumentPath,
				"fiscal_emitted_at":      patch.FiscalEmittedAt,
				"updated_at":             processedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return order.ErrFiscalResultAlreadyAttached
		}
		return markProcessed(tx, job.ID, processedAt)
	})
	if err != nil {
		if errors.Is(err, order.ErrFiscalResultAlreadyAttached) || errors.Is(err, fiscal.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	job.MarkProcessed(processedAt)
	return nil
}

// MarkProcessed flags the job as done without touching its order
func (r *GormFiscalJobRepository) MarkProcessed(ctx context.Context, job *fiscal.Job) error {
	now := time.Now().UTC()
	if err := markProcessed(r.db.WithContext(ctx), job.ID, now); err != nil {
		if errors.Is(err, fiscal.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("mark job %s processed: %w", job.ID, err)
	}
	job.MarkProcessed(now)
	return nil
}

// RecordFailure persists the attempt count, last error and any accepted
// document number of a failed job
func (r *GormFiscalJobRepository) RecordFailure(ctx context.Context, job *fiscal.Job) error {
	err := r.db.WithContext(ctx).
		Model(&models.FiscalJobModel{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"attempts":        job.Attempts,
			"last_error":      job.LastError,
			"document_number": job.DocumentNumber,
		}).Error
	if err != nil {
		return fmt.Errorf("record failure for job %s: %w", job.ID, err)
	}
	return nil
}

// Stats counts jobs by state
func (r *GormFiscalJobRepository) Stats(ctx context.Context) (fiscal.QueueStats, error) {
	var stats fiscal.QueueStats
	db := r.db.WithContext(ctx).Model(&models.FiscalJobModel{})

	if err := db.Session(&gorm.Session{}).Where("processed = ?", false).Count(&stats.Pending).Error; err != nil {
		return stats, fmt.Errorf("count pending jobs: %w", err)
	}
	if err := db.Session(&gorm.Session{}).Where("processed = ? AND attempts > 0", false).Count(&stats.Failing).Error; err != nil {
		return stats, fmt.Errorf("count failing jobs: %w", err)
	}
	if err := db.Session(&gorm.Session{}).Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return stats, fmt.Errorf("count processed jobs: %w", err)
	}
	return stats, nil
}

func markProcessed(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	res := tx.Model(&models.FiscalJobModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": at,
			"last_error":   "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiscal.ErrJobNotFound
	}
	return nil
}

var _ fiscal.JobRepository = (*GormFiscalJobRepository)(nil)
