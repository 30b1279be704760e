package pipeline

import (
	"errors"
	"time"

	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/ringbuf"
)

// Reader implements spec.md §4.4. Exactly one of fileSource/ring is set,
// fixed at startup by the configured InputKind: file mode reads a
// driver.FileSource directly in its own loop; soundcard and realtime-SDR
// inputs both drain a ringbuf.FramedRingBuffer a Capture goroutine fills
// (the "buffered SDR mode" path serves both, per DESIGN.md's
// Capture/FramedRingBuffer simplification — neither front-end fills chunks
// directly in its own callback in this implementation).
type Reader struct {
	fileSource driver.FileSource
	ring       *ringbuf.FramedRingBuffer

	rawPassthrough bool

	pool *chunk.Pool
	out  *chunk.Queue[*chunk.Chunk]

	// writerQueue is polled for its fill ratio by the file-mode fast path
	// (spec.md §4.1 backpressure) whenever writerRing is nil — i.e. in
	// raw_passthrough, where the Writer has no byte ring of its own and the
	// inter-stage queue to it is the only thing to poll.
	writerQueue *chunk.Queue[*chunk.Chunk]

	// writerRing is the Writer's coarse-grained byte ring (spec.md §4.1:
	// "poll the Writer's ring-buffer fill ratio"); nil in raw_passthrough
	// mode, where writerQueue is polled instead.
	writerRing *ringbuf.ByteRingBuffer

	ctx *Context
}

// NewFileReader builds a Reader over a file-backed source. writerRing is
// nil in raw_passthrough mode.
func NewFileReader(src driver.FileSource, rawPassthrough bool, pool *chunk.Pool, out, writerQueue *chunk.Queue[*chunk.Chunk], writerRing *ringbuf.ByteRingBuffer, ctx *Context) *Reader {
	return &Reader{fileSource: src, rawPassthrough: rawPassthrough, pool: pool, out: out, writerQueue: writerQueue, writerRing: writerRing, ctx: ctx}
}

// NewRingReader builds a Reader draining a FramedRingBuffer fed by Capture.
// SDR-mode reading is driver-paced, not reader-paced, so it never calls
// pollBackpressure; writerQueue/writerRing are left unset.
func NewRingReader(ring *ringbuf.FramedRingBuffer, pool *chunk.Pool, out *chunk.Queue[*chunk.Chunk], ctx *Context) *Reader {
	return &Reader{ring: ring, pool: pool, out: out, ctx: ctx}
}

// Run drives the Reader's loop to completion: at end of input or on a read
// error, a final is_last_chunk token is the last message enqueued on out
// (spec.md §4.4 "Contract"); once shutdown has been requested the loop
// returns without one.
func (r *Reader) Run() {
	defer r.ctx.Log.Debug("reader: exiting")

	if r.fileSource != nil {
		r.runFile()
		return
	}
	r.runRing()
}

func (r *Reader) runFile() {
	for {
		if r.ctx.ShuttingDown() {
			return
		}
		r.pollBackpressure()

		c, ok := r.pool.Get()
		if !ok {
			return
		}

		frames, format, eof, err := r.fileSource.ReadInto(c.RawInput)
		if err != nil {
			r.pool.Put(c)
			r.ctx.RequestShutdown(err)
			r.emitLast()
			return
		}

		bpp := format.BytesPerSamplePair()
		c.FramesRead = frames
		c.PacketSampleFormat = format
		c.InputBytesPerSamplePair = bpp

		if r.rawPassthrough {
			n := frames * bpp
			copy(c.FinalOutput[:n], c.RawInput[:n])
			c.FramesToWrite = frames
		}

		if frames > 0 {
			r.ctx.AddFramesRead(int64(frames))
			if !r.out.Enqueue(c) {
				return
			}
		} else {
			r.pool.Put(c)
		}

		if eof {
			r.emitLast()
			return
		}
	}
}

func (r *Reader) runRing() {
	for {
		if r.ctx.ShuttingDown() {
			return
		}

		c, ok := r.pool.Get()
		if !ok {
			return
		}

		pkt, err := r.ring.ReadPacket(c.RawInput)
		if err != nil {
			r.pool.Put(c)
			if errors.Is(err, ringbuf.ErrEndOfStream) {
				r.emitLast()
				return
			}
			r.ctx.RequestShutdown(err)
			r.emitLast()
			return
		}

		if pkt.Tag == ringbuf.Reset {
			c.StreamDiscontinuityEvent = true
			if !r.out.Enqueue(c) {
				return
			}
			continue
		}

		bpp := pkt.Format.BytesPerSamplePair()
		c.FramesRead = len(pkt.Payload) / bpp
		c.PacketSampleFormat = pkt.Format
		c.InputBytesPerSamplePair = bpp

		if c.FramesRead > 0 {
			r.ctx.AddFramesRead(int64(c.FramesRead))
			if !r.out.Enqueue(c) {
				return
			}
		} else {
			r.pool.Put(c)
		}
	}
}

// pollBackpressure implements spec.md §4.1's fast-path file-reader
// backpressure check: pause while the Writer's ring-buffer fill ratio
// exceeds WriterHighWaterMark, so the Reader never enqueues in that state.
// raw_passthrough has no Writer ring, so it falls back to the one queue
// standing between Reader and Writer.
func (r *Reader) pollBackpressure() {
	fillRatio := r.writerQueue.FillRatio
	if r.writerRing != nil {
		fillRatio = r.writerRing.FillRatio
	}
	for fillRatio() > WriterHighWaterMark {
		if r.ctx.ShuttingDown() {
			return
		}
		time.Sleep(BackpressurePause)
	}
}

func (r *Reader) emitLast() {
	c, ok := r.pool.Get()
	if !ok {
		return
	}
	c.IsLastChunk = true
	r.out.Enqueue(c)
}
