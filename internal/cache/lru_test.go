package cache

import "testing"

func TestLRU_PutGet(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d,%v; want 1,true", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("Get(b) = %d,%v; want 2,true", v, ok)
	}
}

func TestLRU_EvictsOldest(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to survive")
	}
}

func TestLRU_GetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive after refresh")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestLRU_PutExistingUpdates(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("a", 9)

	if v, _ := c.Get("a"); v != 9 {
		t.Errorf("Get(a) = %d, want 9", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := New[string, int](0)

	c.Put("a", 1)
	c.Put("b", 2)

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected most recent entry to remain")
	}
}
