package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "orders:team-7", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "orders:team-7", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "orders:other", 3, time.Minute)
	assert.True(t, ok)
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()

	ok, _ := rl.Allow(ctx, "k", 1, 20*time.Millisecond)
	require.True(t, ok)
	ok, _ = rl.Allow(ctx, "k", 1, 20*time.Millisecond)
	require.False(t, ok)

	assert.Eventually(t, func() bool {
		ok, _ := rl.Allow(ctx, "k", 1, 20*time.Millisecond)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestRateLimiter_InvalidLimit(t *testing.T) {
	ok, err := NewRateLimiter().Allow(context.Background(), "k", 0, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignalBus_FanOut(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx, "orders")
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, "orders")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "portfolio")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "orders", []byte("hello")))

	assert.Equal(t, []byte("hello"), <-a)
	assert.Equal(t, []byte("hello"), <-b)
	select {
	case msg := <-other:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestSignalBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "orders")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.NoError(t, bus.Publish(context.Background(), "orders", []byte("x")))
}

func TestSignalBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.Subscribe(ctx, "orders")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = bus.Publish(ctx, "orders", []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestSignalBus_Close(t *testing.T) {
	bus := NewSignalBus()
	ch, err := bus.Subscribe(context.Background(), "orders")
	require.NoError(t, err)

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}
