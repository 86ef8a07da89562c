package locks

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process keyed mutex. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	timeout time.Duration
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker builds a keyed mutex whose Acquire waits at most timeout.
func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]*memoryEntry),
		timeout: waitBound(timeout),
	}
}

// Acquire blocks until key is free, the wait bound elapses or ctx ends.
func (m *MemoryLocker) Acquire(ctx context.Context, key string) (Release, error) {
	entry := m.ref(key)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
	case <-timer.C:
		m.unref(key)
		return nil, ErrTimeout
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.unref(key)
		})
	}, nil
}

func (m *MemoryLocker) ref(key string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &memoryEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (m *MemoryLocker) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.entries, key)
	}
}

func (m *MemoryLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
