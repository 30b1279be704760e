package pipeline

import (
	"time"

	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/dsp/iqopt"
)

// IQOptimizerStage runs the randomized hill-climb I/Q optimizer (spec.md
// §4.10) against the training copies the PreProcessor forwards, returning
// each training chunk to the pool once consumed.
type IQOptimizerStage struct {
	in   *chunk.Queue[*chunk.Chunk]
	pool *chunk.Pool
	opt  *iqopt.Optimizer
	ctx  *Context
}

// NewIQOptimizerStage builds an IQOptimizerStage.
func NewIQOptimizerStage(in *chunk.Queue[*chunk.Chunk], pool *chunk.Pool, opt *iqopt.Optimizer, ctx *Context) *IQOptimizerStage {
	return &IQOptimizerStage{in: in, pool: pool, opt: opt, ctx: ctx}
}

// Run drains in until the PreProcessor shuts it down (on is_last_chunk).
func (s *IQOptimizerStage) Run() {
	defer s.ctx.Log.Debug("iqoptimizer: exiting")

	for {
		c, ok := s.in.Dequeue()
		if !ok {
			return
		}
		s.opt.Feed(c.ComplexPreResample[:c.FramesRead], time.Now())
		s.pool.Put(c)
	}
}
