package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// unlockLua deletes the lock only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua extends the TTL only if the lock still holds the caller's token.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.Locker with SET NX PX and token-checked
// release. The trade mode uses it so only one process trades per team.
type LockManager struct {
	c         *Client
	unlockSc  *redis.Script
	refreshSc *redis.Script
}

// NewLockManager creates a LockManager backed by c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		c:         c,
		unlockSc:  redis.NewScript(unlockLua),
		refreshSc: redis.NewScript(refreshLua),
	}
}

// Acquire takes the lock for key. It returns domain.ErrLockHeld if another
// holder owns it.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), func(context.Context) error, error) {
	token := uuid.NewString()
	lk := lm.c.Key("lock", key)
	rdb := lm.c.Underlying()

	ok, err := rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("redis: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, rdb, []string{lk}, token).Err()
		})
	}

	refresh := func(ctx context.Context) error {
		n, err := lm.refreshSc.Run(ctx, rdb, []string{lk}, token, ttl.Milliseconds()).Int64()
		if err != nil {
			return fmt.Errorf("redis: refresh lock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("redis: refresh lock %s: %w", key, domain.ErrLockHeld)
		}
		return nil
	}

	return unlock, refresh, nil
}

var _ domain.Locker = (*LockManager)(nil)
