package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// RedisSessionStore keeps PKCE sessions in Redis. Take uses GETDEL so a
// state value can be redeemed once across all instances.
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
}

type sessionPayload struct {
	State       string    `json:"state"`
	Verifier    string    `json:"verifier"`
	Marketplace string    `json:"marketplace"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRedisSessionStore creates a store on an existing client
func NewRedisSessionStore(client *redis.Client, keyPrefix string) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "marketsync:pkce:"
	}
	return &RedisSessionStore{client: client, keyPrefix: keyPrefix}
}

// Save stores the session until ttl elapses
func (s *RedisSessionStore) Save(ctx context.Context, session *marketplace.AuthSession, ttl time.Duration) error {
	data, err := json.Marshal(sessionPayload{
		State:       session.State,
		Verifier:    session.Verifier,
		Marketplace: session.Marketplace.String(),
		CreatedAt:   session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode auth session: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+session.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save auth session: %w", err)
	}
	return nil
}

// Take returns and removes the session for state
func (s *RedisSessionStore) Take(ctx context.Context, state string) (*marketplace.AuthSession, error) {
	data, err := s.client.GetDel(ctx, s.keyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, marketplace.ErrInvalidState
		}
		return nil, fmt.Errorf("failed to load auth session: %w", err)
	}

	var p sessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode auth session: %w", err)
	}
	return &marketplace.AuthSession{
		State:       p.State,
		Verifier:    p.Verifier,
		Marketplace: marketplace.Code(p.Marketplace),
		CreatedAt:   p.CreatedAt,
	}, nil
}

// InMemorySessionStore keeps PKCE sessions in process memory
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	session   marketplace.AuthSession
	expiresAt time.Time
}

// NewInMemorySessionStore creates an empty store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

// Save stores the session until ttl elapses. Expired sessions are pruned on write.
func (s *InMemorySessionStore) Save(_ context.Context, session *marketplace.AuthSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, state)
		}
	}
	s.sessions[session.State] = sessionEntry{session: *session, expiresAt: now.Add(ttl)}
	return nil
}

// Take returns and removes the session for state
func (s *InMemorySessionStore) Take(_ context.Context, state string) (*marketplace.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[state]
	if !ok {
		return nil, marketplace.ErrInvalidState
	}
	delete(s.sessions, state)
	if !s.now().Before(e.expiresAt) {
		return nil, marketplace.ErrInvalidState
	}
	session := e.session
	return &session, nil
}

var (
	_ marketplace.SessionStore = (*RedisSessionStore)(nil)
	_ marketplace.SessionStore = (*InMemorySessionStore)(nil)
)
