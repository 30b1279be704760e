// Package chunk implements the pipeline's unit of work (spec.md §3), its
// sole allocator (the FreeChunkPool), and the bounded-FIFO queue abstraction
// shared by every inter-stage handoff (spec.md §4.1).
package chunk

import "github.com/pclov3r/iqtool/internal/sampleformat"

// Sizing is computed once at pipeline startup (spec.md §4.12 step 2) and
// determines the fixed capacity of every buffer a Chunk owns. It never
// changes for the lifetime of a run.
type Sizing struct {
	// BaseSamples is PIPELINE_CHUNK_BASE_SAMPLES, the nominal frame count
	// per chunk.
	BaseSamples int

	// MaxInputBytesPerSamplePair sizes RawInput. Per SPEC_FULL.md §C, this
	// is the *maximum* bytes-per-pair the active driver can ever emit, not
	// just the format active at start-up, so adaptive drivers (e.g. a
	// soundcard front-end that can switch bit depth) never overrun the
	// buffer mid-run.
	MaxInputBytesPerSamplePair int

	// MaxOutputBytesPerSamplePair sizes FinalOutput.
	MaxOutputBytesPerSamplePair int

	// ResampledCapacity is ⌈BaseSamples × ratio⌉ + RESAMPLER_OUTPUT_SAFETY_MARGIN.
	// For no_resample pipelines this equals BaseSamples.
	ResampledCapacity int
}

// DefaultSizing fills in the catalogue-wide byte-per-pair maxima so callers
// only need to supply BaseSamples and ResampledCapacity.
func DefaultSizing(baseSamples, resampledCapacity int) Sizing {
	max := sampleformat.MaxBytesPerSamplePair()
	return Sizing{
		BaseSamples:                 baseSamples,
		MaxInputBytesPerSamplePair:  max,
		MaxOutputBytesPerSamplePair: max,
		ResampledCapacity:           resampledCapacity,
	}
}

// Chunk is the fixed-size work unit flowing through the pipeline (spec.md
// §3). It owns six buffers, all sized at construction and never resized or
// freed until pipeline teardown; stages only ever write into the prefix
// indicated by FramesRead/FramesToWrite.
type Chunk struct {
	RawInput             []byte
	ComplexPreResample   []complex64
	ComplexResampled     []complex64
	ComplexScratch       []complex64
	ComplexPostResample  []complex64
	FinalOutput          []byte

	// FramesRead is the number of valid sample pairs in RawInput /
	// ComplexPreResample.
	FramesRead int
	// FramesToWrite is the number of valid sample pairs in
	// ComplexResampled / ComplexPostResample / FinalOutput.
	FramesToWrite int

	// PacketSampleFormat is the format of the bytes actually present in
	// RawInput for this chunk; it may vary chunk-to-chunk under an
	// adaptive driver.
	PacketSampleFormat sampleformat.Format
	// InputBytesPerSamplePair is PacketSampleFormat's BytesPerSamplePair,
	// cached so the PreProcessor doesn't need to re-derive it.
	InputBytesPerSamplePair int

	// IsLastChunk marks the terminal chunk of a run. It carries
	// FramesRead == 0 and is always the final message on its queue.
	IsLastChunk bool
	// StreamDiscontinuityEvent marks a control token carrying no samples.
	StreamDiscontinuityEvent bool
}

// PreResampleSlack pads ComplexPreResample beyond BaseSamples. The
// PreProcessor's combined filter (spec.md §4.9) is, in its FFT overlap-save
// form, not strictly length-preserving per Process call — its output can
// exceed that call's input by up to its own (filter-length-derived, not
// chunk-size-derived) FFT block size. Mirrors resample.OutputSafetyMargin's
// value without importing dsp/resample from this low-level package.
const PreResampleSlack = 128

// New allocates a Chunk sized per s. Called only by the pool at startup.
func New(s Sizing) *Chunk {
	return &Chunk{
		RawInput:            make([]byte, s.BaseSamples*s.MaxInputBytesPerSamplePair),
		ComplexPreResample:  make([]complex64, s.BaseSamples+PreResampleSlack),
		ComplexResampled:    make([]complex64, s.ResampledCapacity),
		ComplexScratch:      make([]complex64, s.ResampledCapacity),
		ComplexPostResample: make([]complex64, s.ResampledCapacity),
		FinalOutput:         make([]byte, s.ResampledCapacity*s.MaxOutputBytesPerSamplePair),
	}
}

// Reset clears per-chunk metadata before the chunk is reused for a new
// unit of data. Buffer contents are left as-is; consumers must only read
// the FramesRead/FramesToWrite prefix.
func (c *Chunk) Reset() {
	c.FramesRead = 0
	c.FramesToWrite = 0
	c.PacketSampleFormat = sampleformat.Invalid
	c.InputBytesPerSamplePair = 0
	c.IsLastChunk = false
	c.StreamDiscontinuityEvent = false
}
