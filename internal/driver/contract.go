// Package driver defines the input driver adapter contract (spec.md §6.1)
// and the heartbeat primitive the Watchdog (§4.11) observes. Concrete
// adapters live in the file, soundcard, rig, and discovery subpackages.
package driver

import (
	"sync"
	"time"

	"github.com/pclov3r/iqtool/internal/ringbuf"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// InitResult is what Initialize reports back to the orchestrator: the
// format and rate the source will actually deliver, and its known length
// if any (spec.md §6.1: "sets input_format ... source_info.frames where
// knowable").
type InitResult struct {
	Format             sampleformat.Format
	BytesPerSamplePair int
	SampleRateHz       float64
	KnownLengthFrames  int64 // 0 if unknown
}

// SDRDriver is the contract for a device adapter that streams framed
// packets onto a FramedRingBuffer from its own blocking loop (spec.md §4.3,
// §6.1). Both the soundcard front-end and a realtime SDR front-end honor
// this contract in this implementation — true zero-copy direct-chunk-fill
// realtime mode is not reproduced (documented in DESIGN.md); every SDR
// source is a "Capture" producer into the framed ring buffer.
type SDRDriver interface {
	// Validate checks device-specific options.
	Validate() error
	// Initialize opens the device and reports its format/rate.
	Initialize() (InitResult, error)
	// Run blocks, pushing framed packets onto rb and touching hb on every
	// delivered packet, until Stop is called or a fatal error occurs.
	Run(rb *ringbuf.FramedRingBuffer, hb *Heartbeat) error
	// Stop interrupts a running Run call. Idempotent.
	Stop()
	// Cleanup releases device resources. Called once, after Run returns.
	Cleanup() error
	HasKnownLength() bool
	SummaryInfo() string
}

// FileSource is the contract for a file-backed input (spec.md §4.4 "File
// mode"): the Reader calls ReadInto directly, in its own loop, honoring
// Writer backpressure between calls.
type FileSource interface {
	Initialize() (InitResult, error)
	// ReadInto fills dst (sized base_samples*bytes_per_pair) with the next
	// block of interleaved wire bytes. It returns the number of complete
	// sample frames read, the format those bytes are in, and true for eof
	// once the final (possibly short) block has been returned.
	ReadInto(dst []byte) (frames int, format sampleformat.Format, eof bool, err error)
	HasKnownLength() bool
	SummaryInfo() string
	Close() error
	// PreStreamIQCorrection runs the optional synchronous one-shot
	// calibration pass before streaming begins (spec.md §4.10, §6.1).
	PreStreamIQCorrection() error
}

// Heartbeat is last_sdr_heartbeat_time (spec.md §5): a monotonic timestamp
// the Capture loop updates on every delivered packet and the Watchdog polls.
type Heartbeat struct {
	mu   sync.Mutex
	last time.Time
}

// Touch records now as the latest heartbeat.
func (h *Heartbeat) Touch(now time.Time) {
	h.mu.Lock()
	h.last = now
	h.mu.Unlock()
}

// Last returns the most recently recorded heartbeat, or the zero time if
// none has been recorded yet.
func (h *Heartbeat) Last() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
