package pipeline

import (
	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/dsp/agc"
	"github.com/pclov3r/iqtool/internal/dsp/filter"
	"github.com/pclov3r/iqtool/internal/dsp/nco"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// PostProcessor implements spec.md §4.7: post-resample filter, post-resample
// frequency shift, output AGC, and convert+interleave into final_output.
type PostProcessor struct {
	in  *chunk.Queue[*chunk.Chunk]
	out *chunk.Queue[*chunk.Chunk]

	postFilter   filter.Engine   // nil if no post-resample filter configured
	postShiftNCO *nco.Oscillator // nil if no post-resample shift configured
	agcEngine    agc.Engine      // nil if output AGC disabled

	outputFormat sampleformat.Format

	ctx *Context
}

// PostProcessorConfig collects PostProcessor's optional collaborators.
type PostProcessorConfig struct {
	In, Out *chunk.Queue[*chunk.Chunk]

	PostFilter   filter.Engine
	PostShiftNCO *nco.Oscillator
	AGC          agc.Engine

	OutputFormat sampleformat.Format
}

// NewPostProcessor builds a PostProcessor from cfg.
func NewPostProcessor(cfg PostProcessorConfig, ctx *Context) *PostProcessor {
	return &PostProcessor{
		in: cfg.In, out: cfg.Out,
		postFilter: cfg.PostFilter, postShiftNCO: cfg.PostShiftNCO, agcEngine: cfg.AGC,
		outputFormat: cfg.OutputFormat,
		ctx:          ctx,
	}
}

// Run drains in, applies the §4.7 chain to each data chunk, and forwards
// every chunk to out.
func (p *PostProcessor) Run() {
	defer p.ctx.Log.Debug("postprocessor: exiting")

	for {
		c, ok := p.in.Dequeue()
		if !ok {
			return
		}

		if c.IsLastChunk {
			// Forwarding is_last_chunk here is what ultimately triggers the
			// Writer's own end-of-stream signal onto its byte ring (spec.md
			// §4.7): the Writer's feeder sees this token arrive on the same
			// queue and calls ring.SignalEndOfStream from there.
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

func (p *PostProcessor) resetState() {
	if p.postFilter != nil {
		p.postFilter.Reset()
	}
	if p.postShiftNCO != nil {
		p.postShiftNCO.ResetPhase()
	}
	if p.agcEngine != nil {
		p.agcEngine.Reset()
	}
}

func (p *PostProcessor) process(c *chunk.Chunk) {
	frames := c.FramesToWrite
	work := c.ComplexResampled[:frames]

	if p.postFilter != nil {
		filtered := p.postFilter.Process(work)
		n := len(filtered)
		if n > cap(c.ComplexPostResample) {
			p.ctx.Log.Warn("postprocessor: filter output exceeded chunk capacity, truncating",
				"got", n, "capacity", cap(c.ComplexPostResample))
			n = cap(c.ComplexPostResample)
		}
		copy(c.ComplexPostResample[:n], filtered[:n])
		frames = n
		work = c.ComplexPostResample[:frames]
	}

	if p.postShiftNCO != nil {
		p.postShiftNCO.Process(work)
	}
	if p.agcEngine != nil {
		p.agcEngine.Process(work)
	}

	enc := sampleformat.EncoderFor(p.outputFormat)
	bpp := p.outputFormat.BytesPerSamplePair()
	for n, v := range work {
		enc(v, c.FinalOutput[n*bpp:(n+1)*bpp])
	}

	c.FramesToWrite = frames
}
