package testutil

import (
	"fmt"
	"sync"
)

// ItemGenerator produces deterministic item metadata for a category.
//
// The first call to Next() returns id 1. Thread-safety: all methods are safe
// for concurrent use via internal mutex.
type ItemGenerator struct {
	mu       sync.Mutex
	category string
	seq      int64
}

// NewItemGenerator creates a generator for category. If category is empty,
// "test" is used.
func NewItemGenerator(category string) *ItemGenerator {
	if category == "" {
		category = "test"
	}
	return &ItemGenerator{category: category}
}

// Next returns metadata for the next item:
//
//	{"category": "<category>", "id": <seq>, "num": 0, "title": "item-<seq>"}
func (g *ItemGenerator) Next() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return map[string]any{
		"category": g.category,
		"id":       g.seq,
		"num":      0,
		"title":    fmt.Sprintf("item-%d", g.seq),
	}
}

// Take returns the next n items.
func (g *ItemGenerator) Take(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Reset restarts the sequence so the next call to Next() returns id 1.
func (g *ItemGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
