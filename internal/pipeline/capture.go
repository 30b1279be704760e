package pipeline

import (
	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/ringbuf"
)

// Capture implements spec.md §4.3: it runs a driver.SDRDriver's blocking
// read loop on its own goroutine (the "dedicated thread at elevated
// scheduling priority" — Go's runtime gives no portable priority knob
// without cgo, so this is a documented no-op relative to that clause; see
// DESIGN.md) until the driver signals end-of-stream or a fatal error. The
// driver itself owns every packet's framing (heartbeat touch, RESET-on-
// overrun, DATA chunking to at most base_samples×bytes_per_pair) per the
// driver.SDRDriver contract; Capture's own job is starting that loop,
// propagating a fatal error into cooperative shutdown, and closing out the
// ring buffer once the loop returns.
type Capture struct {
	drv driver.SDRDriver
	rb  *ringbuf.FramedRingBuffer
	hb  *driver.Heartbeat
	ctx *Context
}

// NewCapture builds a Capture stage.
func NewCapture(drv driver.SDRDriver, rb *ringbuf.FramedRingBuffer, hb *driver.Heartbeat, ctx *Context) *Capture {
	return &Capture{drv: drv, rb: rb, hb: hb, ctx: ctx}
}

// Run blocks until the driver's loop exits, then signals end-of-stream (or
// shutdown, if the loop ended because of a fatal error) on the ring buffer.
func (c *Capture) Run() {
	defer c.ctx.Log.Debug("capture: exiting")

	err := c.drv.Run(c.rb, c.hb)
	if err != nil {
		c.ctx.RequestShutdown(err)
		c.rb.SignalShutdown()
		return
	}
	c.rb.SignalEndOfStream()
}

// Stop interrupts a running Capture loop; called by the orchestrator's
// cooperative-shutdown path.
func (c *Capture) Stop() {
	c.drv.Stop()
}
