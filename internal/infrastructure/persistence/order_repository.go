package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository and fiscal.OrderIntake using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Exists checks whether an order with this marketplace id was already captured
func (r *GormOrderRepository) Exists(ctx context.Context, marketplace, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("marketplace = ? AND external_id = ?", marketplace, externalID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check order existence: %w", err)
	}
	return count > 0, nil
}

// Insert writes the order, its items and its fiscal job in one transaction.
// A conflicting (marketplace, external_id) row makes it return false without
// writing anything, so concurrent passes cannot create duplicates.
func (r *GormOrderRepository) Insert(ctx context.Context, o *order.Order, job *fiscal.Job) (bool, error) {
	if job == nil || job.OrderID != o.ID {
		return false, fmt.Errorf("%w: fiscal job does not belong to order %s", order.ErrInvalidOrder, o.ExternalID)
	}

	now := o.SyncedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	model := &models.OrderModel{}
	model.FromDomain(o, now)
	items := model.Items

	jobModel := &models.FiscalJobModel{}
	jobModel.FromDomain(job)

	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "marketplace"}, {Name: "external_id"}},
				DoNothing: true,
			}).
			Create(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(jobModel).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert order %s/%s: %w", o.Marketplace, o.ExternalID, err)
	}
	if inserted {
		o.SyncedAt = now
	}
	return inserted, nil
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	err := r.preload(r.db.WithContext(ctx)).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds an order by its marketplace id
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, marketplace, externalID string) (*order.Order, error) {
	var model models.OrderModel
	err := r.preload(r.db.WithContext(ctx)).
		Where("marketplace = ? AND external_id = ?", marketplace, externalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order %s/%s: %w", marketplace, externalID, err)
	}
	return model.ToDomain(), nil
}

// List returns a page of orders, newest first, and the total match count
func (r *GormOrderRepository) List(ctx context.Context, filter order.Filter) ([]*order.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if filter.Marketplace != "" {
		query = query.Where("marketplace = ?", filter.Marketplace)
	}
	if filter.Emitted != nil {
		if *filter.Emitted {
			query = query.Where("fiscal_document_number IS NOT NULL")
		} else {
			query = query.Where("fiscal_document_number IS NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var rows []models.OrderModel
	err := r.preload(query).
		Order("placed_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, total, nil
}

func (r *GormOrderRepository) preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	})
}

var (
	_ order.Repository   = (*GormOrderRepository)(nil)
	_ fiscal.OrderIntake = (*GormOrderRepository)(nil)
)
