package pipeline

import (
	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/dsp/resample"
)

// ResamplerStage wraps a dsp/resample.Resampler as a pipeline stage
// (spec.md §4.6). It is only instantiated when the run's target rate
// differs from the input rate; no_resample omits it from the graph
// entirely, per spec.md §4.6 ("no passthrough stub runs").
type ResamplerStage struct {
	in  *chunk.Queue[*chunk.Chunk]
	out *chunk.Queue[*chunk.Chunk]
	r   *resample.Resampler
	ctx *Context
}

// NewResamplerStage builds a ResamplerStage.
func NewResamplerStage(in, out *chunk.Queue[*chunk.Chunk], r *resample.Resampler, ctx *Context) *ResamplerStage {
	return &ResamplerStage{in: in, out: out, r: r, ctx: ctx}
}

// Run drains in, resampling every data chunk's complex_pre_resample into
// complex_resampled, and forwards every chunk to out.
func (s *ResamplerStage) Run() {
	defer s.ctx.Log.Debug("resampler: exiting")

	for {
		c, ok := s.in.Dequeue()
		if !ok {
			return
		}

		if c.IsLastChunk {
			if !s.out.Enqueue(c) {
				return
			}
			return
		}

		if c.StreamDiscontinuityEvent {
			s.r.Reset()
			if !s.out.Enqueue(c) {
				return
			}
			continue
		}

		out := s.r.Process(c.ComplexPreResample[:c.FramesRead])
		n := len(out)
		if n > cap(c.ComplexResampled) {
			s.ctx.Log.Warn("resampler: output exceeded chunk capacity, truncating",
				"got", n, "capacity", cap(c.ComplexResampled))
			n = cap(c.ComplexResampled)
		}
		copy(c.ComplexResampled[:n], out[:n])
		c.FramesToWrite = n

		if !s.out.Enqueue(c) {
			return
		}
	}
}
