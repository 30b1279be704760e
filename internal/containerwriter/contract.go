// Package containerwriter implements the output container writer adapter
// contract (spec.md §6.2): raw binary, WAV/RF64, and stdout.
package containerwriter

import "github.com/pclov3r/iqtool/internal/sampleformat"

// Info is what Initialize needs to lay out a container's header (a WAV
// file's fmt chunk, for instance).
type Info struct {
	Format       sampleformat.Format
	SampleRateHz float64
	// KnownLengthFrames, if nonzero, lets a WAV writer commit to a
	// non-streaming (non-RF64) header up front; otherwise the writer must
	// either patch the header at Finalize or auto-upgrade to RF64.
	KnownLengthFrames int64
}

// Writer is the output container contract. WriteChunk is the single
// low-level sink every adapter implements; spec.md §6.2 names two distinct
// callers of it: pipeline.Writer's run_writer drain loop, which reads its
// own coarse-grained byte ring (internal/ringbuf.ByteRingBuffer) in
// FileWriterChunkSize blocks and calls WriteChunk per block, and the
// raw_passthrough path, which calls WriteChunk directly per chunk,
// bypassing that ring entirely. An adapter implementation never needs to
// know which caller it has.
type Writer interface {
	Initialize(info Info) error
	WriteChunk(buf []byte) (int, error)
	Finalize() error
	SummaryInfo() string
}
