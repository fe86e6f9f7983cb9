package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator returns "run-0001", "run-0002", ... so stored run IDs
// are stable across test runs.
//
// Thread-safety: safe for concurrent use.
type FixedRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedRunIDGenerator creates a generator. An empty prefix means "run".
func NewFixedRunIDGenerator(prefix string) *FixedRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &FixedRunIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *FixedRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
