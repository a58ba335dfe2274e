package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/profile"

	"go.uber.org/zap"
)

// ProviderFactory returns the identity provider scoped to one client session.
type ProviderFactory func(clientID string) identity.Provider

// Client is a browser session: its provider and the synchronizer that watches it.
type Client struct {
	ID           string
	Synchronizer *Synchronizer
	Provider     identity.Provider

	startOnce sync.Once
	startErr  error
	lastUsed  time.Time
}

// Registry owns one Synchronizer per client id and tears them down when the
// client goes idle or the server stops.
type Registry struct {
	mu          sync.Mutex
	clients     map[string]*Client
	newProvider ProviderFactory
	profiles    profile.Repository
	redirectTo  string
	logger      *zap.Logger
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(newProvider ProviderFactory, profiles profile.Repository, redirectTo string, logger *zap.Logger) *Registry {
	return &Registry{
		clients:     make(map[string]*Client),
		newProvider: newProvider,
		profiles:    profiles,
		redirectTo:  redirectTo,
		logger:      logger.Named("session_registry"),
		now:         time.Now,
	}
}

// Get returns the started client for clientID, creating it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("session: empty client id")
	}

	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		provider := r.newProvider(clientID)
		c = &Client{
			ID:           clientID,
			Provider:     provider,
			Synchronizer: NewSynchronizer(provider, r.profiles, r.redirectTo, r.logger.With(zap.String("clientID", clientID))),
		}
		r.clients[clientID] = c
	}
	c.lastUsed = r.now()
	r.mu.Unlock()

	// Concurrent first requests for the same client all wait for one start.
	c.startOnce.Do(func() {
		c.startErr = c.Synchronizer.Start(ctx)
	})
	if c.startErr != nil {
		r.remove(c)
		return nil, fmt.Errorf("session: failed to start client: %w", c.startErr)
	}
	return c, nil
}

// Evict tears down the client with the given id, if any.
func (r *Registry) Evict(clientID string) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()
	if ok {
		c.Synchronizer.Close()
	}
}

// EvictIdle tears down every client unused for longer than maxIdle and
// returns how many were removed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Client
	for id, c := range r.clients {
		if c.lastUsed.Before(cutoff) {
			idle = append(idle, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Synchronizer.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("Evicted idle clients", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close tears down every client.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		all = append(all, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range all {
		c.Synchronizer.Close()
	}
	r.logger.Info("Session registry closed", zap.Int("clients", len(all)))
}

func (r *Registry) remove(c *Client) {
	r.mu.Lock()
	if r.clients[c.ID] == c {
		delete(r.clients, c.ID)
	}
	r.mu.Unlock()
	c.Synchronizer.Close()
}
