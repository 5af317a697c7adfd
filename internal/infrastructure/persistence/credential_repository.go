package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/erp/marketsync/internal/infrastructure/secrets"
)

// GormCredentialRepository implements fiscal.CredentialRepository using GORM
type GormCredentialRepository struct {
	db     *gorm.DB
	cipher secrets.FieldCipher
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB, cipher secrets.FieldCipher) *GormCredentialRepository {
	if cipher == nil {
		cipher = secrets.PlainCipher{}
	}
	return &GormCredentialRepository{db: db, cipher: cipher}
}

// Save creates or replaces the credential for c.UserID
func (r *GormCredentialRepository) Save(ctx context.Context, c *fiscal.Credential) error {
	sealed, err := r.cipher.Encrypt(c.APIKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	model := &models.FiscalCredentialModel{
		UserID:          c.UserID,
		APIKeyEncrypted: sealed,
		Environment:     c.Environment,
		CreatedAt:       c.UpdatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"api_key_encrypted", "environment", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("save credential for %s: %w", c.UserID, err)
	}
	return nil
}

// Get returns the credential for userID
func (r *GormCredentialRepository) Get(ctx context.Context, userID string) (*fiscal.Credential, error) {
	var model models.FiscalCredentialModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiscal.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("load credential for %s: %w", userID, err)
	}
	return r.toDomain(&model)
}

// Latest returns the most recently updated credential
func (r *GormCredentialRepository) Latest(ctx context.Context) (*fiscal.Credential, error) {
	var model models.FiscalCredentialModel
	if err := r.db.WithContext(ctx).Order("updated_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiscal.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("load latest credential: %w", err)
	}
	return r.toDomain(&model)
}

func (r *GormCredentialRepository) toDomain(model *models.FiscalCredentialModel) (*fiscal.Credential, error) {
	key, err := r.cipher.Decrypt(model.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key for %s: %w", model.UserID, err)
	}
	return &fiscal.Credential{
		UserID:      model.UserID,
		APIKey:      key,
		Environment: model.Environment,
		UpdatedAt:   model.UpdatedAt.UTC(),
	}, nil
}

var _ fiscal.CredentialRepository = (*GormCredentialRepository)(nil)
