package marketplace

import (
	"context"
	"errors"
	"time"
)

// TokenGrant is the raw result of an OAuth token exchange
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// TokenRecord is one issued credential pair. Records are never updated:
// refreshing appends a new record, and the record with the latest IssuedAt
// is the current one.
type TokenRecord struct {
	ID               int64
	Marketplace      Code
	AccessToken      string
	RefreshToken     string
	ExpiresInSeconds int
	IssuedAt         time.Time
}

// NewTokenRecord builds a record from a grant. A grant without an access
// token is not usable and is rejected.
func NewTokenRecord(code Code, grant *TokenGrant, issuedAt time.Time) (*TokenRecord, error) {
	if grant == nil || grant.AccessToken == "" {
		return nil, errors.New("marketplace: token response has no access token")
	}
	if grant.ExpiresIn < 0 {
		return nil, errors.New("marketplace: token response has negative expiry")
	}
	return &TokenRecord{
		Marketplace:      code,
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		ExpiresInSeconds: grant.ExpiresIn,
		IssuedAt:         issuedAt.UTC(),
	}, nil
}

// ExpiresAt returns the instant the access token stops being valid.
// A zero ExpiresInSeconds means the marketplace did not report an expiry.
func (t *TokenRecord) ExpiresAt() time.Time {
	if t.ExpiresInSeconds == 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresInSeconds) * time.Second)
}

// IsExpired reports whether the token expires within skew of now
func (t *TokenRecord) IsExpired(now time.Time, skew time.Duration) bool {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !now.Add(skew).Before(exp)
}

// CanRefresh reports whether the record carries a refresh token
func (t *TokenRecord) CanRefresh() bool {
	return t.RefreshToken != ""
}

// TokenRepository is the append-only credential store
type TokenRepository interface {
	// Append persists rec and assigns its ID
	Append(ctx context.Context, rec *TokenRecord) error
	// Latest returns the record with the latest IssuedAt, or ErrNoCredential
	Latest(ctx context.Context, code Code) (*TokenRecord, error)
	// History returns up to limit records, newest first
	History(ctx context.Context, code Code, limit int) ([]*TokenRecord, error)
}
