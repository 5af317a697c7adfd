package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"go.uber.org/zap"
)

// CredentialService manages the fiscal API credentials and supplies the
// key used for emission.
type CredentialService struct {
	repo        fiscal.CredentialRepository
	fallbackKey string
	logger      *zap.Logger
	now         func() time.Time
}

// NewCredentialService creates a CredentialService. fallbackKey is used
// while no credential has been stored.
func NewCredentialService(repo fiscal.CredentialRepository, fallbackKey string, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		repo:        repo,
		fallbackKey: fallbackKey,
		logger:      logger,
		now:         time.Now,
	}
}

// Save validates and stores a credential, replacing the user's previous one
func (s *CredentialService) Save(ctx context.Context, userID, apiKey, environment string) (*fiscal.Credential, error) {
	cred, err := fiscal.NewCredential(userID, apiKey, environment, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save fiscal credential: %w", err)
	}
	s.logger.Info("Fiscal credential saved",
		zap.String("user_id", cred.UserID),
		zap.String("environment", cred.Environment),
	)
	return cred, nil
}

// Get returns the decrypted credential of userID
func (s *CredentialService) Get(ctx context.Context, userID string) (*fiscal.Credential, error) {
	return s.repo.Get(ctx, userID)
}

// APIKey returns the key of the most recently saved credential, falling
// back to the configured key.
func (s *CredentialService) APIKey(ctx context.Context) (string, error) {
	cred, err := s.repo.Latest(ctx)
	switch {
	case err == nil:
		return cred.APIKey, nil
	case errors.Is(err, fiscal.ErrCredentialNotFound) && s.fallbackKey != "":
		return s.fallbackKey, nil
	default:
		return "", err
	}
}
