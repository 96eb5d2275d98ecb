package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a to survive, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired early")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](0, 0)
	c.now = func() time.Time { return now }
	c.Set("k", 1)
	now = now.Add(24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("zero ttl entry expired")
	}
}

func TestLoadingCoalescesMisses(t *testing.T) {
	l := NewLoading[int](NewLRUCache[int](10, time.Minute), nil)
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := l.Get("k", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("got %d, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n < 1 || n > 10 {
		t.Fatalf("unexpected load count %d", n)
	}
	v, hit, err := l.Get("k", func() (int, error) { return 0, errors.New("should not load") })
	if err != nil || !hit || v != 42 {
		t.Fatalf("expected cached hit, got %d %v %v", v, hit, err)
	}
}

func TestLoadingDoesNotCacheErrors(t *testing.T) {
	l := NewLoading[int](NewLRUCache[int](10, time.Minute), nil)
	boom := errors.New("boom")
	if _, _, err := l.Get("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, hit, err := l.Get("k", func() (int, error) { return 7, nil })
	if err != nil || hit || v != 7 {
		t.Fatalf("expected fresh load, got %d %v %v", v, hit, err)
	}
}

func TestLoadingReplaces(t *testing.T) {
	newer := func(cached, value int) bool { return value >= cached }
	l := NewLoading[int](NewLRUCache[int](10, time.Minute), newer)

	l.Set("k", 5)
	l.Set("k", 3)
	v, hit, _ := l.Get("k", func() (int, error) { return 0, nil })
	if !hit || v != 5 {
		t.Fatalf("older value replaced newer: %d", v)
	}
	l.Set("k", 6)
	if v, _, _ := l.Get("k", nil); v != 6 {
		t.Fatalf("newer value not stored: %d", v)
	}

	l.Forget("k")
	if v, hit, _ := l.Get("k", func() (int, error) { return 1, nil }); hit || v != 1 {
		t.Fatalf("forgotten key still cached: %d %v", v, hit)
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("k", 1)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	if c.Size() != 0 {
		t.Fatalf("expired entry not cleaned")
	}
}
