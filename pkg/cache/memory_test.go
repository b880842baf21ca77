package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "answer", "BTC looks bullish", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var s string
	if err := mc.Get(ctx, "answer", &s); err != nil || s != "BTC looks bullish" {
		t.Fatalf("get string: %q, %v", s, err)
	}

	type summary struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	if err := mc.Set(ctx, "summary", summary{Symbol: "ETHUSDT", Price: 3150.5}, time.Minute); err != nil {
		t.Fatalf("set struct: %v", err)
	}
	var got summary
	if err := mc.Get(ctx, "summary", &got); err != nil {
		t.Fatalf("get struct: %v", err)
	}
	if got.Symbol != "ETHUSDT" || got.Price != 3150.5 {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	now := time.Now()
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "k", "v", time.Second)
	now = now.Add(2 * time.Second)

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("expired entry not removed")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	now := time.Now()
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "a", "1", 0)
	now = now.Add(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", 0)
	now = now.Add(time.Millisecond)

	var s string
	_ = mc.Get(ctx, "a", &s)
	now = now.Add(time.Millisecond)
	_ = mc.Set(ctx, "c", "3", 0)

	if err := mc.Get(ctx, "b", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &s); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "digest:2024-01-01", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first lock: %v %v", ok, err)
	}
	if ok, _ := mc.TryLock(ctx, "digest:2024-01-01", time.Hour); ok {
		t.Fatal("second lock must fail while held")
	}
	if err := mc.Unlock(ctx, "digest:2024-01-01"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if ok, _ := mc.TryLock(ctx, "digest:2024-01-01", time.Hour); !ok {
		t.Fatal("lock should be free after unlock")
	}
}

func TestMemoryCacheCloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache()
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
}
