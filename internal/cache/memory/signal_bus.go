package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

const subscriberBuffer = 128

// SignalBus implements domain.SignalBus by fanning payloads out to
// in-process subscribers. A subscriber whose buffer is full misses the
// message; Publish never blocks.
type SignalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string]map[chan []byte]struct{})}
}

// Publish delivers a copy of payload to every subscriber of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[channel] {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber on channel until ctx is done, at which
// point the returned channel is closed.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, ch)
	}()
	return ch, nil
}

func (b *SignalBus) remove(channel string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[channel][ch]; !ok {
		return
	}
	delete(b.subs[channel], ch)
	close(ch)
}

// Close closes every subscriber channel.
func (b *SignalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, channel)
	}
	b.closed = true
}

var _ domain.SignalBus = (*SignalBus)(nil)
