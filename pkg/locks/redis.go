package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/chronicle/pkg/redis"
	"github.com/google/uuid"
)

const (
	defaultLockTTL       = 30 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
)

// RedisOptions tunes the distributed locker.
type RedisOptions struct {
	Timeout       time.Duration
	TTL           time.Duration
	RetryInterval time.Duration
}

// RedisLocker implements Locker with SET NX PX and an owner token, so only the
// holder can release a key. The TTL bounds how long a crashed holder blocks others.
type RedisLocker struct {
	store   redis.LockStore
	timeout time.Duration
	ttl     time.Duration
	retry   time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(store redis.LockStore, opts RedisOptions) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for locker")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	retry := opts.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	return &RedisLocker{
		store:   store,
		timeout: waitBound(opts.Timeout),
		ttl:     ttl,
		retry:   retry,
	}, nil
}

// Acquire polls SETNX until it owns key or the wait bound elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := l.store.LockKey(key)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.store.SetNX(ctx, redisKey, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		wait := l.retry
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// an expired or stolen key is not ours to delete; the result is ignored
			_, _ = l.store.CompareAndDelete(releaseCtx, redisKey, owner)
		})
	}, nil
}
