package cache

import (
	"testing"
	"time"
)

func TestTTLCacheStoresAndReturnsValues(t *testing.T) {
	c := NewTTLCache[string, int]()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	c.Set("a", 42, 0)
	got, ok := c.Get("a")
	if !ok || got != 42 {
		t.Fatalf("Get(a) = %d, %v; want 42, true", got, ok)
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("k", "v", 0)

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero-TTL entry expired")
	}
}

func TestTTLCacheExpiresEntries(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("k", 1, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestTTLCacheOverwriteRefreshesValue(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("k", 1, time.Hour)
	c.Set("k", 2, time.Hour)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("Get(k) = %d, %v; want 2, true", got, ok)
	}
}

func TestTTLCacheNilReceiverIsSafe(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("k", 1, time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Fatal("nil cache returned a value")
	}
}
