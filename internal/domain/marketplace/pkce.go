package marketplace

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// AuthSession is a pending authorization started with PKCE. It is created
// when the login redirect is issued and consumed exactly once by the callback.
type AuthSession struct {
	State       string
	Verifier    string
	Marketplace Code
	CreatedAt   time.Time
}

// SessionStore keeps pending authorization sessions keyed by state
type SessionStore interface {
	Save(ctx context.Context, session *AuthSession, ttl time.Duration) error
	// Take returns and deletes the session, or ErrInvalidState
	Take(ctx context.Context, state string) (*AuthSession, error)
}

// NewAuthSession creates a session with a random state and verifier
func NewAuthSession(code Code, now time.Time) (*AuthSession, error) {
	state, err := randomToken(16)
	if err != nil {
		return nil, err
	}
	verifier, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	return &AuthSession{
		State:       state,
		Verifier:    verifier,
		Marketplace: code,
		CreatedAt:   now,
	}, nil
}

// Challenge returns the S256 code challenge for the session's verifier
func (s *AuthSession) Challenge() string {
	return ChallengeS256(s.Verifier)
}

// ChallengeS256 derives the RFC 7636 S256 code challenge
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("marketplace: generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
