package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

type connID string

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{8, 8},
		{64, 64},
		{0, DefaultShardCount},
		{-4, DefaultShardCount},
		{12, DefaultShardCount},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			m := NewWithShards[string, int](tt.n)
			if got := len(m.shards); got != tt.want {
				t.Errorf("len(shards) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMap_SetGetDelete(t *testing.T) {
	m := New[connID, string]()

	if _, ok := m.Get("a"); ok {
		t.Error("Get() on empty map found a value")
	}

	m.Set("a", "node-1")
	m.Set("b", "node-2")
	m.Set("a", "node-3")

	if v, ok := m.Get("a"); !ok || v != "node-3" {
		t.Errorf("Get(a) = %q, %v, want node-3, true", v, ok)
	}
	if !m.Has("b") || m.Has("c") {
		t.Error("Has() mismatch")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") || m.Count() != 1 {
		t.Errorf("after Delete: Has(a) = %v, Count() = %d", m.Has("a"), m.Count())
	}
}

func TestMap_SetIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.SetIfAbsent("k", 1) {
		t.Error("SetIfAbsent() on empty key = false")
	}
	if m.SetIfAbsent("k", 2) {
		t.Error("SetIfAbsent() on existing key = true")
	}
	if v, _ := m.Get("k"); v != 1 {
		t.Errorf("Get(k) = %d, want 1", v)
	}
}

func TestMap_Pop(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 7)

	if v, ok := m.Pop("k"); !ok || v != 7 {
		t.Errorf("Pop(k) = %d, %v, want 7, true", v, ok)
	}
	if _, ok := m.Pop("k"); ok {
		t.Error("second Pop(k) found a value")
	}
}

func TestMap_RangeAndValues(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("conn-%d", i), i)
	}

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 4950 {
		t.Errorf("Range sum = %d, want 4950", sum)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Errorf("Range stopped after %d, want 5", visited)
	}

	values := m.Values()
	sort.Ints(values)
	if len(values) != 100 || values[0] != 0 || values[99] != 99 {
		t.Errorf("Values() = %d entries, first %d last %d", len(values), values[0], values[99])
	}
}

func TestMap_Clear(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Clear()

	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", m.Count())
	}
}

func TestMap_Concurrent(t *testing.T) {
	m := New[string, int]()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				m.Set(key, i)
				m.Get(key)
				m.Count()
				if i%2 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if got := m.Count(); got != 8*100 {
		t.Errorf("Count() = %d, want %d", got, 8*100)
	}
}

func BenchmarkMap_Get(b *testing.B) {
	m := New[string, int]()
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("conn-%d", i)
		m.Set(keys[i], i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Get(keys[i%len(keys)])
			i++
		}
	})
}
