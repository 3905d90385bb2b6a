package cache

import (
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache[V any](ttl time.Duration) (*Cache[V], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[V](ttl)
	c.now = clk.now
	return c, clk
}

func TestSetGet(t *testing.T) {
	c, clk := newTestCache[string](time.Minute)

	c.Set("a", "alpha")
	if v, ok := c.Get("a"); !ok || v != "alpha" {
		t.Errorf("Expected alpha, got %q (ok=%v)", v, ok)
	}

	clk.advance(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected entry to expire")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be evicted, got %d", c.Len())
	}
}

func TestEmptyKeyIgnored(t *testing.T) {
	c, _ := newTestCache[int](time.Minute)
	c.Set("", 1)
	if c.Len() != 0 {
		t.Errorf("Expected empty key to be ignored, got %d entries", c.Len())
	}
}

func TestTake(t *testing.T) {
	c, clk := newTestCache[int](time.Minute)
	c.Set("reset:Zezima", 7)

	if v, ok := c.Take("reset:Zezima"); !ok || v != 7 {
		t.Errorf("Expected 7, got %d (ok=%v)", v, ok)
	}
	if _, ok := c.Take("reset:Zezima"); ok {
		t.Error("Expected second Take to miss")
	}

	c.Set("reset:Woox", 1)
	clk.advance(time.Hour)
	if _, ok := c.Take("reset:Woox"); ok {
		t.Error("Expected expired entry not to be taken")
	}
}

func TestAdd(t *testing.T) {
	c, clk := newTestCache[string](time.Minute)

	if !c.Add("msg-1", "Mod Ash") {
		t.Fatal("Expected first Add to succeed")
	}
	if c.Add("msg-1", "Mod Mat K") {
		t.Error("Expected second Add to be refused")
	}
	if v, _ := c.Get("msg-1"); v != "Mod Ash" {
		t.Errorf("Expected first value kept, got %q", v)
	}

	clk.advance(2 * time.Minute)
	if !c.Add("msg-1", "Mod Mat K") {
		t.Error("Expected Add over an expired entry to succeed")
	}
}

func TestAddConcurrent(t *testing.T) {
	c, _ := newTestCache[int](time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.Add("same", i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one Add to win, got %d", wins)
	}
}

func TestPurgeExpired(t *testing.T) {
	c, clk := newTestCache[int](time.Minute)
	c.Set("old", 1)
	clk.advance(30 * time.Second)
	c.Set("new", 2)
	clk.advance(45 * time.Second)

	c.PurgeExpired()
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry after purge, got %d", c.Len())
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("Expected newer entry to survive")
	}
}

func TestDefaultTTL(t *testing.T) {
	c := New[int](0)
	if c.TTL() != DefaultTTL {
		t.Errorf("Expected %v, got %v", DefaultTTL, c.TTL())
	}
}

func TestJanitorStops(t *testing.T) {
	c, _ := newTestCache[int](time.Millisecond)
	stop := c.StartJanitor(time.Millisecond)
	c.Set("a", 1)
	stop()
	stop()
}

func TestNilCache(t *testing.T) {
	var c *Cache[int]
	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected nil cache to miss")
	}
	if c.Len() != 0 {
		t.Error("Expected nil cache to be empty")
	}
	c.StartJanitor(time.Second)()
}
