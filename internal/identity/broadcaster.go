package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// subscriptionBuffer bounds how many undelivered events a slow subscriber may hold.
const subscriptionBuffer = 32

// Subscription is a handle on a stream of session events. The owner must call
// Close when done; Close is idempotent and closes the Events channel.
type Subscription struct {
	events chan Event
	closed chan struct{}
	once   sync.Once
	cancel func()
}

// Events returns the channel on which events are delivered.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close releases the subscription.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Broadcaster fans session events out to every live subscription.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	logger *zap.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscription. If ctx is cancelled the subscription
// is closed automatically.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		events: make(chan Event, subscriptionBuffer),
		closed: make(chan struct{}),
	}
	sub.cancel = func() {
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.events)
		b.mu.Unlock()
		close(sub.closed)
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.closed:
			}
		}()
	}
	return sub
}

// Publish delivers ev to every subscription without blocking. A subscriber
// whose buffer is full misses the event; that is logged.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.events <- ev:
		default:
			b.logger.Warn("Dropping session event for slow subscriber", zap.String("event", string(ev.Type)))
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
