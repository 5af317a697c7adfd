package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/erp/marketsync/internal/infrastructure/secrets"
)

// GormTokenRepository implements marketplace.TokenRepository using GORM.
// Token values are encrypted with the field cipher before they are written.
type GormTokenRepository struct {
	db     *gorm.DB
	cipher secrets.FieldCipher
}

// NewGormTokenRepository creates a new GormTokenRepository
func NewGormTokenRepository(db *gorm.DB, cipher secrets.FieldCipher) *GormTokenRepository {
	if cipher == nil {
		cipher = secrets.PlainCipher{}
	}
	return &GormTokenRepository{db: db, cipher: cipher}
}

// Append inserts a new token record and assigns its ID
func (r *GormTokenRepository) Append(ctx context.Context, rec *marketplace.TokenRecord) error {
	model := &models.TokenRecordModel{}
	model.FromDomain(rec)
	model.ID = 0

	var err error
	if model.AccessToken, err = r.cipher.Encrypt(rec.AccessToken); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if rec.RefreshToken != "" {
		if model.RefreshToken, err = r.cipher.Encrypt(rec.RefreshToken); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("append token record: %w", err)
	}
	rec.ID = model.ID
	return nil
}

// Latest returns the current record: latest issued_at, ties broken by id
func (r *GormTokenRepository) Latest(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error) {
	var model models.TokenRecordModel
	err := r.db.WithContext(ctx).
		Where("marketplace = ?", code.String()).
		Order("issued_at DESC").
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrNoCredential
		}
		return nil, fmt.Errorf("load latest token: %w", err)
	}
	return r.decrypt(&model)
}

// History returns up to limit records, newest first
func (r *GormTokenRepository) History(ctx context.Context, code marketplace.Code, limit int) ([]*marketplace.TokenRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.TokenRecordModel
	err := r.db.WithContext(ctx).
		Where("marketplace = ?", code.String()).
		Order("issued_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load token history: %w", err)
	}

	records := make([]*marketplace.TokenRecord, 0, len(rows))
	for i := range rows {
		rec, err := r.decrypt(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *GormTokenRepository) decrypt(model *models.TokenRecordModel) (*marketplace.TokenRecord, error) {
	rec := model.ToDomain()
	var err error
	if rec.AccessToken, err = r.cipher.Decrypt(model.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token %d: %w", model.ID, err)
	}
	if model.RefreshToken != "" {
		if rec.RefreshToken, err = r.cipher.Decrypt(model.RefreshToken); err != nil {
			return nil, fmt.Errorf("decrypt refresh token %d: %w", model.ID, err)
		}
	}
	return rec, nil
}

var _ marketplace.TokenRepository = (*GormTokenRepository)(nil)
