// Package session maps opaque bearer tokens to rider ids. Tokens are
// minted at login and destroyed at logout; an absent or expired token means
// the request is unauthenticated.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Store is the identity context consumed by the HTTP layer.
type Store interface {
	// Create mints a token for the user, valid for the store's TTL.
	Create(ctx context.Context, userID string) (string, error)
	// UserID resolves a token; ok is false for unknown or expired tokens.
	UserID(ctx context.Context, token string) (string, bool, error)
	// Destroy invalidates a token. Destroying an unknown token is a no-op.
	Destroy(ctx context.Context, token string) error
}

func newToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type memEntry struct {
	userID  string
	expires time.Time
}

// MemoryStore keeps sessions in-process. Used when Redis is not configured,
// and by tests.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memEntry

	now func() time.Time // test hook
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, m: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := newToken()
	s.m[tok] = memEntry{userID: userID, expires: s.now().Add(s.ttl)}
	return tok, nil
}

func (s *MemoryStore) UserID(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[token]
	if !ok {
		return "", false, nil
	}
	if s.now().After(e.expires) {
		delete(s.m, token)
		return "", false, nil
	}
	return e.userID, true, nil
}

func (s *MemoryStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, token)
	return nil
}
