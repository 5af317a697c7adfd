package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Environments accepted for fiscal credentials
const (
	EnvironmentProduction   = "production"
	EnvironmentHomologation = "homologation"
)

// Credential is the account used to talk to the fiscal emission API.
// APIKey is held in plain text only in memory; stores encrypt it.
type Credential struct {
	UserID      string
	APIKey      string
	Environment string
	UpdatedAt   time.Time
}

// NewCredential validates and builds a credential
func NewCredential(userID, apiKey, environment string, now time.Time) (*Credential, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidCredential)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidCredential)
	}
	if environment == "" {
		environment = EnvironmentProduction
	}
	if environment != EnvironmentProduction && environment != EnvironmentHomologation {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrInvalidCredential, environment)
	}
	return &Credential{
		UserID:      userID,
		APIKey:      apiKey,
		Environment: environment,
		UpdatedAt:   now.UTC(),
	}, nil
}

// MaskedAPIKey returns the key with all but the last four characters hidden
func (c *Credential) MaskedAPIKey() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// CredentialRepository stores fiscal credentials, one per user
type CredentialRepository interface {
	Save(ctx context.Context, c *Credential) error
	Get(ctx context.Context, userID string) (*Credential, error)
	// Latest returns the most recently updated credential
	Latest(ctx context.Context) (*Credential, error)
}
