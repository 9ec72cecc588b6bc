package embedding

import "testing"

func TestEmbeddingCache_KeyedByFeatureText(t *testing.T) {
	c := NewEmbeddingCache(2)
	naruto := "A young ninja fights for his village. Action, Adventure"
	c.Set(naruto, []float32{0.6, 0.8})
	c.Set("A pirate sails for treasure. Comedy", []float32{1, 0})

	v, ok := c.Get(naruto)
	if !ok || len(v) != 2 || v[1] != 0.8 {
		t.Errorf("Get = %v, %v", v, ok)
	}
	c.Set("A teenager becomes a soul reaper. Action", []float32{0, 1})
	if _, ok := c.Get("A pirate sails for treasure. Comedy"); ok {
		t.Error("least recently used text should be evicted")
	}
}

func TestEmbeddingCache_Disabled(t *testing.T) {
	c := NewEmbeddingCache(0)
	c.Set("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("zero-capacity cache should store nothing")
	}
}
