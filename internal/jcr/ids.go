package jcr

import (
	"sync"

	"github.com/google/uuid"
)

// IdentifierGenerator generates node identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IdentifierGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 node identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so identifiers
// of nodes created later sort later. Uses github.com/google/uuid.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Format: "0190a5c2-7b1e-7c3d-9f00-446655440000" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("root", "artifact-a")
//	gen.Generate() // "root"
//	gen.Generate() // "artifact-a"
//	gen.Generate() // panic: all identifiers exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined identifier.
//
// Panics if all identifiers have been consumed, so a test that creates more
// nodes than it planned for fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all identifiers exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
