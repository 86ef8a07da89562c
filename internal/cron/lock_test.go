package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRedisStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeRedisStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "chronicle:cron-worker:lock:test", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "chronicle:cron-worker:lock:test", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, defaultLockTTL, store.ttls["chronicle:cron-worker:lock:test"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a lock that never acquired must not delete the owner's key
	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, "chronicle:cron-worker:lock:test")

	require.NoError(t, first.Release(ctx))
	require.Empty(t, store.values)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "key", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newFakeRedisStore(), "", 0)
	require.Error(t, err)

	store := newFakeRedisStore()
	store.err = errors.New("connection refused")
	lock, err := NewRedisLock(store, "key", 0)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	require.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lock.Release(ctx))
	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
