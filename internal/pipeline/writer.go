package pipeline

import (
	"sync"
	"time"

	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/containerwriter"
	"github.com/pclov3r/iqtool/internal/progress"
	"github.com/pclov3r/iqtool/internal/ringbuf"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// Writer implements the Writer side of spec.md §6.2. It has two modes:
//
//   - raw_passthrough: no ring is present (ring == nil). Run drains in
//     directly and calls write_chunk synchronously per chunk, exactly the
//     "pass-through paths that bypass the byte ring" the contract names.
//   - normal: a feeder goroutine drains in and copies each chunk's
//     final_output bytes into ring, signalling end-of-stream on ring once
//     is_last_chunk is observed; Run itself is the run_writer drain loop,
//     reading ring in FileWriterChunkSize blocks and calling write_chunk.
//
// Either way a chunk is returned to the pool the moment its bytes have been
// copied out of it, not once they've actually reached disk.
type Writer struct {
	in   *chunk.Queue[*chunk.Chunk]
	pool *chunk.Pool
	cw   containerwriter.Writer

	ring *ringbuf.ByteRingBuffer

	outputFormat sampleformat.Format

	reporter       *progress.Reporter
	expectedFrames int64
	startedAt      time.Time

	// sdrRing is the SDR input's FramedRingBuffer, consulted only for its
	// overrun counter in progress snapshots; nil in file mode.
	sdrRing *ringbuf.FramedRingBuffer

	ctx *Context
}

// NewWriter builds a Writer. expectedFrames is 0 for unknown-length runs.
// ring is the Writer's own coarse-grained byte ring (nil for
// raw_passthrough, where the Writer writes synchronously instead).
func NewWriter(in *chunk.Queue[*chunk.Chunk], pool *chunk.Pool, cw containerwriter.Writer, outputFormat sampleformat.Format, reporter *progress.Reporter, expectedFrames int64, ring *ringbuf.ByteRingBuffer, sdrRing *ringbuf.FramedRingBuffer, ctx *Context) *Writer {
	return &Writer{in: in, pool: pool, cw: cw, outputFormat: outputFormat, reporter: reporter, expectedFrames: expectedFrames, ring: ring, sdrRing: sdrRing, ctx: ctx}
}

// Run blocks until in reports end-of-stream or shutdown, finalizing the
// container writer exactly once either way (spec.md §8 invariant 3: every
// run that reaches is_last_chunk terminates with the Writer finalized).
func (w *Writer) Run() error {
	defer w.ctx.Log.Debug("writer: exiting")
	w.startedAt = time.Now()

	if w.ring == nil {
		return w.runPassthrough()
	}
	return w.runRing()
}

// runPassthrough is the raw_passthrough write_chunk path: no byte ring,
// chunks are written synchronously as they're dequeued.
func (w *Writer) runPassthrough() error {
	for {
		c, ok := w.in.Dequeue()
		if !ok {
			// Forced shutdown (fatal error or external cancel) drained the
			// queue without ever seeing is_last_chunk. Per spec.md §7 the
			// writer still finalizes whatever it already has rather than
			// leaving a half-written container.
			if err := w.cw.Finalize(); err != nil {
				w.ctx.Log.Error("writer: finalize after shutdown failed", "error", err)
			}
			return w.ctx.Err()
		}

		if c.IsLastChunk {
			w.pool.Put(c)
			return w.finishClean()
		}

		if c.StreamDiscontinuityEvent {
			w.ctx.Log.Info("writer: discontinuity observed")
			w.pool.Put(c)
			continue
		}

		bpp := w.outputFormat.BytesPerSamplePair()
		n := c.FramesToWrite * bpp
		if _, err := w.cw.WriteChunk(c.FinalOutput[:n]); err != nil {
			w.pool.Put(c)
			w.ctx.RequestShutdown(err)
			return err
		}

		w.ctx.AddOutputFrames(int64(c.FramesToWrite))
		w.pool.Put(c)
		w.reportProgress()
	}
}

// runRing is the run_writer path (spec.md §6.2): a feeder goroutine copies
// chunk bytes into w.ring as they arrive; Run itself drains w.ring in
// FileWriterChunkSize blocks and performs the actual container-writer I/O.
func (w *Writer) runRing() error {
	var feederWG sync.WaitGroup
	feederWG.Add(1)
	go func() {
		defer feederWG.Done()
		w.feed()
	}()

	err := w.drain()

	feederWG.Wait()
	return err
}

// feed drains in, copying every data chunk's final_output bytes into
// w.ring, logs and drops discontinuity tokens (the byte ring carries no
// tags), and signals end-of-stream on the ring (spec.md
// §4.7: "On is_last_chunk: forward and signal end-of-stream to the
// Writer's byte buffer").
func (w *Writer) feed() {
	bpp := w.outputFormat.BytesPerSamplePair()

	for {
		c, ok := w.in.Dequeue()
		if !ok {
			w.ring.SignalShutdown()
			return
		}

		if c.IsLastChunk {
			w.pool.Put(c)
			w.ring.SignalEndOfStream()
			return
		}

		if c.StreamDiscontinuityEvent {
			w.ctx.Log.Info("writer: discontinuity observed")
			w.pool.Put(c)
			continue
		}

		n := c.FramesToWrite * bpp
		ok = w.ring.Write(c.FinalOutput[:n])
		w.pool.Put(c)
		if !ok {
			return
		}
	}
}

// drain reads w.ring in FileWriterChunkSize blocks, writes each through the
// container writer, and reports progress by running byte count rather than
// by chunk boundaries, since a ring read need not land on a sample-pair
// boundary.
func (w *Writer) drain() error {
	buf := make([]byte, containerwriter.FileWriterChunkSize)
	bpp := int64(w.outputFormat.BytesPerSamplePair())
	var bytesWritten, framesReported int64

	for {
		n, ok := w.ring.Read(buf)
		if !ok {
			break
		}

		if _, err := w.cw.WriteChunk(buf[:n]); err != nil {
			w.ring.SignalShutdown()
			w.ctx.RequestShutdown(err)
			return err
		}

		bytesWritten += int64(n)
		framesNow := bytesWritten / bpp
		if delta := framesNow - framesReported; delta > 0 {
			w.ctx.AddOutputFrames(delta)
			framesReported = framesNow
		}
		w.reportProgress()
	}

	if w.ctx.ShuttingDown() {
		if err := w.cw.Finalize(); err != nil {
			w.ctx.Log.Error("writer: finalize after shutdown failed", "error", err)
		}
		return w.ctx.Err()
	}
	return w.finishClean()
}

func (w *Writer) finishClean() error {
	if err := w.cw.Finalize(); err != nil {
		w.ctx.RequestShutdown(err)
		return err
	}
	if w.reporter != nil {
		framesRead, outFrames := w.ctx.Progress()
		w.reporter.Finish(w.snapshot(framesRead, outFrames))
	}
	return nil
}

func (w *Writer) reportProgress() {
	if w.reporter == nil {
		return
	}
	framesRead, outFrames := w.ctx.Progress()
	w.reporter.Report(w.snapshot(framesRead, outFrames), false)
}

func (w *Writer) snapshot(framesRead, outFrames int64) progress.Snapshot {
	var overruns uint64
	if w.sdrRing != nil {
		overruns = w.sdrRing.OverrunCount()
	}
	return progress.Snapshot{
		TotalFramesRead:   framesRead,
		TotalOutputFrames: outFrames,
		ExpectedFrames:    w.expectedFrames,
		OverrunCount:      overruns,
		Elapsed:           time.Since(w.startedAt),
	}
}
