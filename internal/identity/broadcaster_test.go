package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcaster_PublishFansOut(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	s1 := b.Subscribe(context.Background())
	s2 := b.Subscribe(context.Background())
	defer s1.Close()
	defer s2.Close()

	sess := &Session{AccessToken: "tok", Identity: Identity{ID: "u1"}}
	b.Publish(Event{Type: SignedIn, Session: sess})

	for _, sub := range []*Subscription{s1, s2} {
		ev := receive(t, sub)
		assert.Equal(t, SignedIn, ev.Type)
		require.NotNil(t, ev.Session)
		assert.Equal(t, "u1", ev.Session.Identity.ID)
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	sub := b.Subscribe(context.Background())
	assert.Equal(t, 1, b.Len())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Len())
	_, ok := <-sub.Events()
	assert.False(t, ok, "events channel should be closed")

	// Publishing after close must not panic on the closed channel.
	assert.NotPanics(t, func() { b.Publish(Event{Type: SignedOut}) })
}

func TestSubscription_ClosedWhenContextCancelled(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	sub := b.Subscribe(context.Background())
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer+10; i++ {
			b.Publish(Event{Type: SignedOut})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Events(), subscriptionBuffer)
}
