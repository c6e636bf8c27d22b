package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialGenerator_Sequence(t *testing.T) {
	gen := NewSequentialGenerator("artifact")

	assert.Equal(t, "artifact-00000001", gen.Generate())
	assert.Equal(t, "artifact-00000002", gen.Generate())
	assert.Equal(t, "artifact-00000003", gen.Generate())
}

func TestSequentialGenerator_DefaultPrefix(t *testing.T) {
	gen := NewSequentialGenerator("")
	assert.Equal(t, "node-00000001", gen.Generate())
}

func TestSequentialGenerator_Reset(t *testing.T) {
	gen := NewSequentialGenerator("n")
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, "n-00000001", gen.Generate())
}

func TestSequentialGenerator_Deterministic(t *testing.T) {
	a := NewSequentialGenerator("node")
	b := NewSequentialGenerator("node")

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("node")
	const goroutines = 50
	const calls = 20

	var wg sync.WaitGroup
	ids := make(chan string, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				ids <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*calls)
}
