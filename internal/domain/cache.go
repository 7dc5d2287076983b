package domain

import (
	"context"
	"time"
)

// Bus channel names.
const (
	ChannelOrders    = "orders"
	ChannelPortfolio = "portfolio"
	ChannelDecisions = "decisions"
)

// RateLimiter provides request rate limiting keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides fire-and-forget pub/sub for bot events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Locker provides a TTL-bounded exclusive lock. unlock is safe to call more
// than once; refresh extends the TTL while the lock is still owned.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), refresh func(context.Context) error, err error)
}
