package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type registryFixture struct {
	registry  *Registry
	mu        sync.Mutex
	providers map[string]*fakeProvider
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	repo := profile.NewGORMRepository(setupTestDB(t))
	f := &registryFixture{providers: make(map[string]*fakeProvider)}
	f.registry = NewRegistry(func(clientID string) identity.Provider {
		f.mu.Lock()
		defer f.mu.Unlock()
		p := newFakeProvider()
		f.providers[clientID] = p
		return p
	}, repo, landingURL, zap.NewNop())
	t.Cleanup(f.registry.Close)
	return f
}

func TestRegistry_GetCreatesAndReuses(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	c1, err := f.registry.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, c1.Synchronizer.Loading(), "client is bootstrapped before it is returned")

	again, err := f.registry.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Same(t, c1, again)

	c2, err := f.registry.Get(ctx, "client-2")
	require.NoError(t, err)
	assert.NotSame(t, c1.Synchronizer, c2.Synchronizer)
	assert.Equal(t, 2, f.registry.Len())

	_, err = f.registry.Get(ctx, "")
	assert.Error(t, err)
}

func TestRegistry_ConcurrentGetStartsOnce(t *testing.T) {
	f := newRegistryFixture(t)

	var wg sync.WaitGroup
	clients := make([]*Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.registry.Get(context.Background(), "shared")
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
	assert.Equal(t, 1, f.providers["shared"].events.Len(), "exactly one subscription")
}

func TestRegistry_StartFailureIsNotCached(t *testing.T) {
	repo := profile.NewGORMRepository(setupTestDB(t))
	attempts := 0
	r := NewRegistry(func(string) identity.Provider {
		attempts++
		p := newFakeProvider()
		if attempts == 1 {
			p.subscribeErr = errors.New("events unavailable")
		}
		return p
	}, repo, landingURL, zap.NewNop())
	defer r.Close()

	_, err := r.Get(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())

	_, err = r.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRegistry_EvictIdle(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	base := time.Now()
	f.registry.now = func() time.Time { return base }

	_, err := f.registry.Get(ctx, "old")
	require.NoError(t, err)

	f.registry.now = func() time.Time { return base.Add(20 * time.Minute) }
	_, err = f.registry.Get(ctx, "fresh")
	require.NoError(t, err)

	f.registry.now = func() time.Time { return base.Add(25 * time.Minute) }
	removed := f.registry.EvictIdle(15 * time.Minute)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 0, f.providers["old"].events.Len(), "evicted synchronizer released its subscription")
	assert.Equal(t, 1, f.providers["fresh"].events.Len())
}

func TestRegistry_EvictAndClose(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.registry.Get(ctx, id)
		require.NoError(t, err)
	}

	f.registry.Evict("a")
	f.registry.Evict("missing")
	assert.Equal(t, 2, f.registry.Len())
	assert.Equal(t, 0, f.providers["a"].events.Len())

	f.registry.Close()
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.providers["b"].events.Len())
	assert.Equal(t, 0, f.providers["c"].events.Len())
}
