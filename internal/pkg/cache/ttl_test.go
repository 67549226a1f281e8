package cache_test

import (
	"testing"
	"time"

	"prospect-service/internal/pkg/cache"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestTTL_GetSet(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.NewTTL[int64, []int64](30*time.Second, clock)

	if _, ok := c.Get(1); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(1, []int64{10, 20})

	got, ok := c.Get(1)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestTTL_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.NewTTL[int64, string](30*time.Second, clock)

	c.Set(7, "cached")

	clock.Advance(29 * time.Second)
	if _, ok := c.Get(7); !ok {
		t.Error("entry expired before its TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(7); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestTTL_Invalidate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.NewTTL[int64, string](time.Minute, clock)

	c.Set(1, "a")
	c.Set(2, "b")

	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Error("invalidated key still present")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("unrelated key dropped")
	}

	c.Purge()
	if _, ok := c.Get(2); ok {
		t.Error("purged key still present")
	}
}
