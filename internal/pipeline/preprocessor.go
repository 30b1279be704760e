package pipeline

import (
	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/dsp/dcblock"
	"github.com/pclov3r/iqtool/internal/dsp/filter"
	"github.com/pclov3r/iqtool/internal/dsp/iqcorrect"
	"github.com/pclov3r/iqtool/internal/dsp/iqopt"
	"github.com/pclov3r/iqtool/internal/dsp/nco"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// PreProcessor implements spec.md §4.5: deinterleave+convert, optional DC
// block, I/Q correction, pre-resample frequency shift, and pre-resample
// filter, in that order, plus the I/Q-optimizer training-copy side path.
type PreProcessor struct {
	in  *chunk.Queue[*chunk.Chunk]
	out *chunk.Queue[*chunk.Chunk]

	pool *chunk.Pool

	// trainingOut and factors are both nil unless I/Q correction is enabled.
	trainingOut *chunk.Queue[*chunk.Chunk]
	factors     *iqcorrect.AtomicFactors

	dcBlock     *dcblock.Blocker // nil if DC block disabled
	preShiftNCO *nco.Oscillator  // nil if no pre-resample shift configured
	preFilter   filter.Engine    // nil if no pre-resample filter configured

	// resamplerPresent is false when no_resample omits the Resampler stage
	// entirely (spec.md §4.6); the PreProcessor then finishes the data's
	// journey itself by copying straight into complex_resampled.
	resamplerPresent bool

	ctx *Context
}

// PreProcessorConfig collects PreProcessor's optional collaborators; nil/zero
// fields disable the corresponding spec.md §4.5 step.
type PreProcessorConfig struct {
	In, Out *chunk.Queue[*chunk.Chunk]
	Pool    *chunk.Pool

	TrainingOut *chunk.Queue[*chunk.Chunk]
	Factors     *iqcorrect.AtomicFactors

	DCBlock     *dcblock.Blocker
	PreShiftNCO *nco.Oscillator
	PreFilter   filter.Engine

	ResamplerPresent bool
}

// NewPreProcessor builds a PreProcessor from cfg.
func NewPreProcessor(cfg PreProcessorConfig, ctx *Context) *PreProcessor {
	return &PreProcessor{
		in: cfg.In, out: cfg.Out, pool: cfg.Pool,
		trainingOut: cfg.TrainingOut, factors: cfg.Factors,
		dcBlock: cfg.DCBlock, preShiftNCO: cfg.PreShiftNCO, preFilter: cfg.PreFilter,
		resamplerPresent: cfg.ResamplerPresent,
		ctx:              ctx,
	}
}

// Run drains in, applies the §4.5 chain to each data chunk, and forwards
// every chunk (data, discontinuity, or terminal) to out.
func (p *PreProcessor) Run() {
	defer p.ctx.Log.Debug("preprocessor: exiting")

	for {
		c, ok := p.in.Dequeue()
		if !ok {
			return
		}

		if c.IsLastChunk {
			if p.trainingOut != nil {
				p.trainingOut.Shutdown()
			}
			if !p.out.Enqueue(c) {
				return
			}
			return
		}

		if c.StreamDiscontinuityEvent {
			p.resetState()
			if !p.out.Enqueue(c) {
				return
			}
			continue
		}

		p.process(c)
		if !p.out.Enqueue(c) {
			return
		}
	}
}

func (p *PreProcessor) resetState() {
	if p.dcBlock != nil {
		p.dcBlock.Reset()
	}
	if p.preShiftNCO != nil {
		p.preShiftNCO.ResetPhase()
	}
	if p.preFilter != nil {
		p.preFilter.Reset()
	}
}

func (p *PreProcessor) process(c *chunk.Chunk) {
	frames := c.FramesRead
	dec := sampleformat.DecoderFor(c.PacketSampleFormat)
	bpp := c.InputBytesPerSamplePair
	for n := 0; n < frames; n++ {
		c.ComplexPreResample[n] = dec(c.RawInput[n*bpp : (n+1)*bpp])
	}
	work := c.ComplexPreResample[:frames]

	if p.dcBlock != nil {
		p.dcBlock.Process(work)
	}

	// Training copy (spec.md §4.5): taken here, before I/Q correction is
	// applied to this chunk, so the optimizer always scores a correction
	// computed from scratch against the uncorrected signal rather than one
	// compounding on top of whatever factors are already live.
	if p.trainingOut != nil && frames >= iqopt.FFTSize {
		if tc, ok := p.pool.TryGet(); ok {
			copy(tc.ComplexPreResample[:iqopt.FFTSize], work[:iqopt.FFTSize])
			tc.FramesRead = iqopt.FFTSize
			if !p.trainingOut.Enqueue(tc) {
				p.pool.Put(tc)
			}
		}
	}

	if p.factors != nil {
		iqcorrect.Apply(work, p.factors.Load())
	}
	if p.preShiftNCO != nil {
		p.preShiftNCO.Process(work)
	}
	if p.preFilter != nil {
		filtered := p.preFilter.Process(work)
		n := len(filtered)
		if n > cap(c.ComplexPreResample) {
			p.ctx.Log.Warn("preprocessor: filter output exceeded chunk capacity, truncating",
				"got", n, "capacity", cap(c.ComplexPreResample))
			n = cap(c.ComplexPreResample)
		}
		copy(c.ComplexPreResample[:n], filtered[:n])
		frames = n
		work = c.ComplexPreResample[:frames]
	}

	c.FramesRead = frames

	if !p.resamplerPresent {
		n := copy(c.ComplexResampled, work)
		c.FramesToWrite = n
	}
}
