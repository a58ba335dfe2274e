package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a SessionStore backed by Redis, so sessions survive restarts
// and can be shared between instances.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "dm:",
		now:    time.Now,
	}
}

func (r *RedisStore) sessionKey(clientID string) string {
	return r.prefix + sessionKey(clientID)
}

func (r *RedisStore) pendingKey(clientID, state string) string {
	return r.prefix + pendingKey(clientID, state)
}

// ttlUntil returns the expiry to use for a key; zero means no expiry. ok is
// false when the moment has already passed.
func (r *RedisStore) ttlUntil(at time.Time) (ttl time.Duration, ok bool) {
	if at.IsZero() {
		return 0, true
	}
	ttl = at.Sub(r.now())
	return ttl, ttl > 0
}

func (r *RedisStore) LoadSession(ctx context.Context, clientID string) (*Session, error) {
	val, err := r.client.Get(ctx, r.sessionKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session store: failed to unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) SaveSession(ctx context.Context, clientID string, s *Session) error {
	ttl, ok := r.ttlUntil(s.ExpiresAt)
	if !ok {
		return r.DeleteSession(ctx, clientID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session store: failed to marshal: %w", err)
	}
	return r.client.Set(ctx, r.sessionKey(clientID), data, ttl).Err()
}

func (r *RedisStore) DeleteSession(ctx context.Context, clientID string) error {
	return r.client.Del(ctx, r.sessionKey(clientID)).Err()
}

func (r *RedisStore) SavePendingOAuth(ctx context.Context, clientID string, p PendingOAuth) error {
	ttl, ok := r.ttlUntil(p.ExpiresAt)
	if !ok {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session store: failed to marshal: %w", err)
	}
	return r.client.Set(ctx, r.pendingKey(clientID, p.State), data, ttl).Err()
}

func (r *RedisStore) TakePendingOAuth(ctx context.Context, clientID, state string) (*PendingOAuth, error) {
	val, err := r.client.GetDel(ctx, r.pendingKey(clientID, state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	var p PendingOAuth
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("session store: failed to unmarshal: %w", err)
	}
	return &p, nil
}
