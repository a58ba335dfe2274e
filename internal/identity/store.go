package identity

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// PendingOAuth is the state kept between starting a redirect sign-in and its callback.
type PendingOAuth struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	Provider     string    `json:"provider"`
	RedirectTo   string    `json:"redirect_to,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionStore persists provider sessions and in-flight OAuth state per client.
// Loads return (nil, nil) when nothing is stored.
type SessionStore interface {
	LoadSession(ctx context.Context, clientID string) (*Session, error)
	SaveSession(ctx context.Context, clientID string, s *Session) error
	DeleteSession(ctx context.Context, clientID string) error
	SavePendingOAuth(ctx context.Context, clientID string, p PendingOAuth) error
	// TakePendingOAuth returns and removes the pending state matching state.
	TakePendingOAuth(ctx context.Context, clientID, state string) (*PendingOAuth, error)
}

// MemoryStore keeps sessions in process memory. Suitable for a single instance.
type MemoryStore struct {
	mu    sync.Mutex // makes take-and-delete atomic
	cache *cache.Cache
}

// NewMemoryStore creates an empty in-memory store that purges expired entries
// every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func sessionKey(clientID string) string { return "session:" + clientID }

func pendingKey(clientID, state string) string { return "oauth:" + clientID + ":" + state }

// ttlUntil converts an absolute expiry into a cache duration. ok is false when
// the moment has already passed.
func ttlUntil(at time.Time) (d time.Duration, ok bool) {
	if at.IsZero() {
		return cache.NoExpiration, true
	}
	d = time.Until(at)
	return d, d > 0
}

func (m *MemoryStore) LoadSession(_ context.Context, clientID string) (*Session, error) {
	v, found := m.cache.Get(sessionKey(clientID))
	if !found {
		return nil, nil
	}
	s := v.(Session)
	return &s, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, clientID string, s *Session) error {
	ttl, ok := ttlUntil(s.ExpiresAt)
	if !ok {
		m.cache.Delete(sessionKey(clientID))
		return nil
	}
	m.cache.Set(sessionKey(clientID), *s, ttl)
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, clientID string) error {
	m.cache.Delete(sessionKey(clientID))
	return nil
}

func (m *MemoryStore) SavePendingOAuth(_ context.Context, clientID string, p PendingOAuth) error {
	ttl, ok := ttlUntil(p.ExpiresAt)
	if !ok {
		return nil
	}
	m.cache.Set(pendingKey(clientID, p.State), p, ttl)
	return nil
}

func (m *MemoryStore) TakePendingOAuth(_ context.Context, clientID, state string) (*PendingOAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pendingKey(clientID, state)
	v, found := m.cache.Get(key)
	if !found {
		return nil, nil
	}
	m.cache.Delete(key)
	p := v.(PendingOAuth)
	return &p, nil
}
