package cache

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Loading puts a Cache in front of a loader. Concurrent misses for the same
// key share a single load; only successful loads are cached.
//
// When replaces is set, a value only overwrites a cached one if
// replaces(cached, value) is true. A slow load can then never clobber a
// newer value stored by Set in the meantime.
type Loading[T any] struct {
	cache    Cache[T]
	group    singleflight.Group
	mu       sync.Mutex
	replaces func(cached, value T) bool
}

func NewLoading[T any](c Cache[T], replaces func(cached, value T) bool) *Loading[T] {
	return &Loading[T]{cache: c, replaces: replaces}
}

// Get returns the cached value for key, calling load on a miss. hit reports
// whether the value came from the cache.
func (l *Loading[T]) Get(key string, load func() (T, error)) (value T, hit bool, err error) {
	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		loaded, err := load()
		if err != nil {
			return loaded, err
		}
		l.Set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Set stores value under key, subject to the replaces rule.
func (l *Loading[T]) Set(key string, value T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replaces != nil {
		if cached, ok := l.cache.Get(key); ok && !l.replaces(cached, value) {
			return
		}
	}
	l.cache.Set(key, value)
}

// Forget drops key from the cache.
func (l *Loading[T]) Forget(key string) {
	l.cache.Delete(key)
	l.group.Forget(key)
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			totalCleaned := 0
			for _, cache := range m.caches {
				totalCleaned += cache.CleanExpired()
			}
			if totalCleaned > 0 {
				slog.Debug("Expired cache entries removed", "component", "cache", "count", totalCleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine. It must only be called after
// StartCleanup.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
		m.stopCleanup = nil
	}
}
