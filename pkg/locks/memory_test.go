package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerialisesSameKey(t *testing.T) {
	locker := NewMemoryLocker(2 * time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "character:a")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Zero(t, locker.size(), "entries are dropped once released")
}

func TestMemoryLockerDistinctKeysDoNotBlock(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "character:a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locker.Acquire(ctx, "character:b")
	require.NoError(t, err)
	releaseB()
}

func TestMemoryLockerTimesOut(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "spend_request:1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "spend_request:1")
	require.ErrorIs(t, err, ErrTimeout)

	release()
	release()

	again, err := locker.Acquire(ctx, "spend_request:1")
	require.NoError(t, err)
	again()
	require.Zero(t, locker.size())
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	locker := NewMemoryLocker(time.Minute)
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAcquireAllReleasesHeldKeysOnFailure(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	blocker, err := locker.Acquire(ctx, "character:c")
	require.NoError(t, err)

	_, err = AcquireAll(ctx, locker, "award_event:1", "character:a", "character:c")
	require.ErrorIs(t, err, ErrTimeout)

	// award_event:1 and character:a were rolled back
	release, err := AcquireAll(ctx, locker, "award_event:1", "character:a")
	require.NoError(t, err)
	release()
	blocker()
	require.Zero(t, locker.size())
}

func TestKey(t *testing.T) {
	require.Equal(t, "character:42", Key("character", "42"))
}
