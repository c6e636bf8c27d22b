package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator produces readable, deterministic node identifiers:
// "<prefix>-00000001", "<prefix>-00000002", ...
//
// The same scenario run twice with a fresh SequentialGenerator assigns the
// same identifier to the same node, so golden snapshots containing
// identifiers stay byte-identical.
//
// Unlike jcr.FixedGenerator it never runs out.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix means "node".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "node"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%08d", g.prefix, g.n)
}

// Reset restarts the sequence so the next identifier ends in 00000001.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
