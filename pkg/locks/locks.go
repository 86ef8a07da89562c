// Package locks provides keyed mutual exclusion used by the XP ledger to
// serialise read-modify-write access to characters, spend requests and award
// events ahead of the database row locks.
package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/redis"
)

// ErrTimeout is returned when a key could not be acquired within the wait bound.
var ErrTimeout = errors.New("lock wait timed out")

// Release frees a previously acquired key. It is safe to call more than once.
type Release func()

// Locker acquires exclusive ownership of a key, blocking up to its wait bound.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Key joins the parts of a lock key, e.g. Key("character", id).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// AcquireAll takes every key in the order given. On failure the keys already
// held are released in reverse order and the error is returned.
func AcquireAll(ctx context.Context, locker Locker, keys ...string) (Release, error) {
	held := make([]Release, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
		held = held[:0]
	}
	for _, key := range keys {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		held = append(held, release)
	}
	return releaseAll, nil
}

// New builds the locker selected by the ledger configuration. The redis
// backend requires a store.
func New(cfg config.LedgerConfig, store redis.LockStore) (Locker, error) {
	switch strings.ToLower(cfg.LockBackend) {
	case "", config.LockBackendMemory:
		return NewMemoryLocker(cfg.LockTimeout), nil
	case config.LockBackendRedis:
		if store == nil {
			return nil, errors.New("redis lock backend requires a redis client")
		}
		return NewRedisLocker(store, RedisOptions{Timeout: cfg.LockTimeout, TTL: cfg.LockTTL})
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

func waitBound(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

const defaultTimeout = 5 * time.Second
