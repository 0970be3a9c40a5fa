package cache

import (
	"errors"
	"testing"
)

func TestCache_Basic(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("d"); ok {
		t.Error("Get(d) should return false for missing key")
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) after update = %d; want 10", v)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2", c.Len())
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)

	// 'a' becomes the most recently used, so 'b' goes first
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("'b' should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d; want 1", got)
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int](2)

	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("a", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v; want 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times; want 1", calls)
	}
}

func TestCache_GetOrLoadErrorIsNotCached(t *testing.T) {
	c := New[string, int](2)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad("a", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d; want 0", c.Len())
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string, int](2)

	if c.Stats().HitRate() != 0 {
		t.Error("HitRate before lookups should be 0")
	}

	c.Set("a", 1)
	c.Get("a") // hit
	c.Get("a") // hit
	c.Get("c") // miss

	stats := c.Stats()
	if stats.Size != 1 || stats.Capacity != 2 {
		t.Errorf("Size, Capacity = %d, %d; want 1, 2", stats.Size, stats.Capacity)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Hits, Misses = %d, %d; want 2, 1", stats.Hits, stats.Misses)
	}
	want := 2.0 / 3.0
	if r := stats.HitRate(); r < want-0.01 || r > want+0.01 {
		t.Errorf("HitRate = %f; want ~%f", r, want)
	}
}

func TestCache_ZeroCapacity(t *testing.T) {
	c := New[int, int](0)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Set(i, i)
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("Len() = %d; want %d", c.Len(), DefaultCapacity)
	}
}

func BenchmarkCache_GetOrLoad(b *testing.B) {
	c := New[int, int](1000)
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrLoad(i%1000, func() (int, error) { return i, nil })
	}
}
