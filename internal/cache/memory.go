package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is a bounded-size, LRU-evicting Provider with per-entry
// expiration, used both standalone (CacheBackend: memory) and as the
// Redis provider's disconnected-state fallback.
type Memory struct {
	mu      sync.Mutex
	entries *lru.Cache[string, memoryEntry]
	locks   map[string]struct{}
}

// NewMemory builds a Memory provider holding at most maxEntries keys.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	entries, _ := lru.New[string, memoryEntry](maxEntries)
	return &Memory{entries: entries, locks: map[string]struct{}{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	m.entries.Add(key, memoryEntry{value: stored, expires: expires})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	m.entries.Remove(key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) RemovePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.entries.Remove(key)
		}
	}
	return nil
}

// AcquireLock implements acquire-or-skip in-process: there's no cross-host
// contention to arbitrate, so a single mutex-guarded set stands in for the
// Redis SETNX dance.
func (m *Memory) AcquireLock(ctx context.Context, key string, expiry, wait, retry time.Duration) (Lock, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		m.mu.Lock()
		if _, held := m.locks[key]; !held {
			m.locks[key] = struct{}{}
			m.mu.Unlock()
			lock := &memoryLock{m: m, key: key}
			if expiry > 0 {
				lock.timer = time.AfterFunc(expiry, func() { _ = lock.Release(context.Background()) })
			}
			return lock, true, nil
		}
		m.mu.Unlock()

		if wait <= 0 || time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(retry):
		}
	}
}

type memoryLock struct {
	m     *Memory
	key   string
	timer *time.Timer
	once  sync.Once
}

func (l *memoryLock) Release(_ context.Context) error {
	l.once.Do(func() {
		if l.timer != nil {
			l.timer.Stop()
		}
		l.m.mu.Lock()
		delete(l.m.locks, l.key)
		l.m.mu.Unlock()
	})
	return nil
}
