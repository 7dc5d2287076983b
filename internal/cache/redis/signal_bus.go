package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// defaultHistoryLen is the approximate cap of each channel's history stream.
const defaultHistoryLen int64 = 10000

// SignalBus implements domain.SignalBus with Redis Pub/Sub. Every published
// payload is also appended to a capped stream so recent events survive
// restarts of subscribers.
type SignalBus struct {
	c          *Client
	historyLen int64
}

// NewSignalBus creates a SignalBus backed by c.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c, historyLen: defaultHistoryLen}
}

// WithHistoryLen sets the stream cap; zero disables the history stream.
func (sb *SignalBus) WithHistoryLen(n int64) *SignalBus {
	sb.historyLen = n
	return sb
}

// Publish sends payload to the channel and, if enabled, its history stream,
// in one MULTI/EXEC round trip.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	rdb := sb.c.Underlying()
	if sb.historyLen <= 0 {
		if err := rdb.Publish(ctx, sb.c.Key(channel), payload).Err(); err != nil {
			return fmt.Errorf("redis: publish %s: %w", channel, err)
		}
		return nil
	}

	pipe := rdb.TxPipeline()
	pipe.Publish(ctx, sb.c.Key(channel), payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.c.Key("stream", channel),
		MaxLen: sb.historyLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. The
// subscription and the returned channel are closed when ctx is done.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := sb.c.Underlying().Subscribe(ctx, sb.c.Key(channel))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// History returns up to count of the most recent payloads on channel,
// oldest first.
func (sb *SignalBus) History(ctx context.Context, channel string, count int64) ([][]byte, error) {
	msgs, err := sb.c.Underlying().XRevRangeN(ctx, sb.c.Key("stream", channel), "+", "-", count).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: history %s: %w", channel, err)
	}

	out := make([][]byte, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		switch v := msgs[i].Values["payload"].(type) {
		case string:
			out = append(out, []byte(v))
		case []byte:
			out = append(out, v)
		}
	}
	return out, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
