package cache

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestInMemoryCache_GetSet(t *testing.T) {
	c := NewInMemoryCache(time.Hour)

	err := c.Set("key1", "value1")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok := c.Get("key1")
	if !ok {
		t.Error("Get should return true for existing key")
	}
	if val != "value1" {
		t.Errorf("Get returned %q, want %q", val, "value1")
	}

	val, ok = c.Get("nonexistent")
	if ok {
		t.Error("Get should return false for missing key")
	}
	if val != "" {
		t.Errorf("Get should return empty string for missing key, got %q", val)
	}
}

func TestInMemoryCache_TTL(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("key1", "value1")

	if val, ok := c.Get("key1"); !ok || val != "value1" {
		t.Error("Value should be available immediately after set")
	}

	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("key1"); ok {
		t.Error("Value should be expired after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be removed on Get, len = %d", c.Len())
	}
}

func TestInMemoryCache_NoTTL(t *testing.T) {
	c := NewInMemoryCache(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("key1", "value1")
	now = now.Add(1000 * time.Hour)

	if val, ok := c.Get("key1"); !ok || val != "value1" {
		t.Error("Value should be available with no TTL")
	}
}

func TestInMemoryCache_Overwrite(t *testing.T) {
	c := NewInMemoryCache(time.Hour)

	c.Set("key1", "value1")
	c.Set("key1", "value2")

	val, ok := c.Get("key1")
	if !ok {
		t.Error("Key should exist")
	}
	if val != "value2" {
		t.Errorf("Value should be overwritten, got %q, want %q", val, "value2")
	}
}

func TestInMemoryCache_KeysAndEntries(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("b", "2")
	c.Set("a", "1")
	now = now.Add(2 * time.Minute)
	c.Set("c", "3")

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Keys() = %v, want [c]", got)
	}
	if got := c.Entries(); !reflect.DeepEqual(got, map[string]string{"c": "3"}) {
		t.Errorf("Entries() = %v", got)
	}
	if c.Len() != 3 {
		t.Errorf("Len should count expired entries, got %d", c.Len())
	}
}

func TestInMemoryCache_Clear(t *testing.T) {
	c := NewInMemoryCache(time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Cleared cache should have length 0, got %d", c.Len())
	}

	_, ok := c.Get("key1")
	if ok {
		t.Error("Cleared cache should not contain any keys")
	}
}

func TestInMemoryCache_Concurrent(t *testing.T) {
	c := NewInMemoryCache(time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(string(rune('a'+i%26)), "value")
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(string(rune('a' + i%26)))
		}(i)
	}

	wg.Wait()
	if c.Len() != 26 {
		t.Errorf("expected 26 keys, got %d", c.Len())
	}
}
