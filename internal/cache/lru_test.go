package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Fatal("empty cache should miss")
	}

	c.Set("a", 1)
	if v, found := c.Get("a"); !found || v != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", v, found)
	}

	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("Set should overwrite, got %d", v)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // refresh a so b becomes oldest
	c.Set("c", "3")

	if _, found := c.Get("b"); found {
		t.Error("least recently used entry should be evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("recently used entry should survive eviction")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("a"); found {
		t.Error("expired entry should miss")
	}
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("deleted entry should miss")
	}
	c.Delete("never-existed")
}
