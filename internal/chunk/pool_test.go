package chunk

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testSizing() Sizing {
	return DefaultSizing(64, 96)
}

func TestPoolGetPutConservesCount(t *testing.T) {
	p := NewPool(8, testSizing())
	assert.Equal(t, 0, p.Outstanding())

	c, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, 1, p.Outstanding())

	p.Put(c)
	assert.Equal(t, 0, p.Outstanding())
}

func TestPoolResetsMetadataOnGet(t *testing.T) {
	p := NewPool(2, testSizing())
	c, _ := p.Get()
	c.FramesRead = 10
	c.IsLastChunk = true
	p.Put(c)

	c2, _ := p.Get()
	assert.Equal(t, 0, c2.FramesRead)
	assert.False(t, c2.IsLastChunk)
}

func TestPoolTryGetEmpty(t *testing.T) {
	p := NewPool(1, testSizing())
	c, ok := p.Get()
	require.True(t, ok)

	_, ok = p.TryGet()
	assert.False(t, ok, "pool is fully checked out; TryGet must not block or fabricate a chunk")

	p.Put(c)
	_, ok = p.TryGet()
	assert.True(t, ok)
}

// TestPoolPropertyOwnershipConservation exercises spec.md §8 invariant 1:
// the pool's count plus the number of chunks "in flight" always equals
// the pool's total, across a random sequence of gets and puts.
func TestPoolPropertyOwnershipConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		const total = 16
		p := NewPool(total, testSizing())

		held := make([]*Chunk, 0, total)
		var mu sync.Mutex

		ops := rapid.IntRange(1, 200).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			getOrPut := rapid.Boolean().Draw(rt, "getOrPut")
			mu.Lock()
			if getOrPut || len(held) == 0 {
				c, ok := p.TryGet()
				if ok {
					held = append(held, c)
				}
			} else {
				c := held[len(held)-1]
				held = held[:len(held)-1]
				p.Put(c)
			}
			if p.Outstanding()+p.Len() != total {
				mu.Unlock()
				rt.Fatalf("ownership conservation violated: outstanding=%d pooled=%d total=%d",
					p.Outstanding(), p.Len(), total)
			}
			mu.Unlock()
		}
	})
}
