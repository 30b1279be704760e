package chunk

// PipelineNumChunks is PIPELINE_NUM_CHUNKS (spec.md §6.5): the fixed number
// of chunk handles that exist for the lifetime of a run.
const PipelineNumChunks = 512

// Pool is the FreeChunkPool (spec.md §4.1): a bounded FIFO of chunk handles
// and the sole allocator of pipeline working memory. It is itself just a
// Queue[*Chunk] pre-filled at construction — the pool and every inter-stage
// queue share one abstraction, per spec.md §4.1.
type Pool struct {
	*Queue[*Chunk]
	sizing Sizing
	all    []*Chunk
}

// NewPool allocates numChunks chunks sized per s and fills the pool.
func NewPool(numChunks int, s Sizing) *Pool {
	q := NewQueue[*Chunk](numChunks)
	p := &Pool{Queue: q, sizing: s, all: make([]*Chunk, 0, numChunks)}
	for i := 0; i < numChunks; i++ {
		c := New(s)
		p.all = append(p.all, c)
		if !q.Enqueue(c) {
			panic("chunk: pool enqueue failed during construction")
		}
	}
	return p
}

// Sizing returns the sizing every chunk in the pool was constructed with.
func (p *Pool) Sizing() Sizing {
	return p.sizing
}

// Get blocks until a chunk is available and resets its metadata before
// returning it. Returns (nil, false) only if the pool has been shut down
// and drained — which should never happen in practice, since the pool is
// never shut down before every chunk has been returned (spec.md §8
// invariant 1).
func (p *Pool) Get() (*Chunk, bool) {
	c, ok := p.Dequeue()
	if !ok {
		return nil, false
	}
	c.Reset()
	return c, true
}

// TryGet is the non-blocking counterpart, used by the PreProcessor's
// training-copy path (spec.md §4.5): "Silently drop if no free chunk is
// available."
func (p *Pool) TryGet() (*Chunk, bool) {
	c, ok := p.TryDequeue()
	if !ok {
		return nil, false
	}
	c.Reset()
	return c, true
}

// Put returns a chunk to the pool. Called by the terminal stage that
// consumed it (Writer, or whichever stage consumes a sentinel), per
// spec.md §3.
func (p *Pool) Put(c *Chunk) {
	if !p.Enqueue(c) {
		// The pool only shuts down at teardown, after every chunk has
		// already been returned; reaching this would mean a chunk leaked
		// past teardown. There is nowhere safe to route it, so it is
		// simply dropped rather than panicking mid-shutdown.
		return
	}
}

// Outstanding returns the number of chunks not currently sitting in the
// pool (in flight, in some stage, or queued between stages). Used only by
// tests asserting spec.md §8 invariant 1 (ownership conservation).
func (p *Pool) Outstanding() int {
	return len(p.all) - p.Len()
}
