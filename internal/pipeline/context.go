// Package pipeline wires the chunk pool, queues, and DSP stages of
// SPEC_FULL.md §4 into the running concurrent stage graph (spec.md §4.12,
// §5): Capture (optional) → Reader → PreProcessor → Resampler (optional) →
// PostProcessor → Writer, with a side path from PreProcessor to the I/Q
// optimizer and an independent Watchdog goroutine for SDR inputs.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Context is the explicit pipeline context spec.md §9 calls for in place of
// a global g_config/AppResources pair: every stage holds a reference to one
// Context instead of reaching for process-global state. The only
// process-global state left, per that design note, is the cooperative
// shutdown flag itself (here, Context.shutdown) and the logger's internal
// lock (charmbracelet/log is safe for concurrent use).
type Context struct {
	Log *log.Logger

	// progressMu protects total_frames_read and total_output_frames.
	// last_sdr_heartbeat_time lives in driver.Heartbeat (which has its own
	// mutex) and error_occurred in the errOccurred atomic below; neither is
	// guarded by progressMu.
	progressMu        sync.Mutex
	totalFramesRead   int64
	totalOutputFrames int64

	shutdown    atomic.Bool
	errOccurred atomic.Bool
	errOnce     sync.Once
	firstErr    error
}

// NewContext builds a Context logging through logger.
func NewContext(logger *log.Logger) *Context {
	return &Context{Log: logger}
}

// AddFramesRead accumulates n onto total_frames_read (Reader, spec.md §4.4).
func (c *Context) AddFramesRead(n int64) {
	c.progressMu.Lock()
	c.totalFramesRead += n
	c.progressMu.Unlock()
}

// AddOutputFrames accumulates n onto total_output_frames (Writer).
func (c *Context) AddOutputFrames(n int64) {
	c.progressMu.Lock()
	c.totalOutputFrames += n
	c.progressMu.Unlock()
}

// Progress returns the current (total_frames_read, total_output_frames)
// pair under progress_mutex.
func (c *Context) Progress() (framesRead, outputFrames int64) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	return c.totalFramesRead, c.totalOutputFrames
}

// RequestShutdown is request_shutdown (spec.md §5 "Cancellation"): the
// first call records err (nil for a cooperative user-requested cancel,
// non-nil for a fatal error), sets error_occurred when err is non-nil, and
// logs it exactly once via a compare-exchange-style guard; every subsequent
// call — including those racing concurrently from other stages — only sets
// the shutdown flag and logs a non-nil err at Debug.
func (c *Context) RequestShutdown(err error) {
	first := false
	c.errOnce.Do(func() {
		first = true
		c.firstErr = err
		if err != nil {
			c.errOccurred.Store(true)
		}
		c.shutdown.Store(true)
		if err != nil {
			c.Log.Error("pipeline: fatal error, requesting shutdown", "err", err)
		} else {
			c.Log.Info("pipeline: shutdown requested")
		}
	})
	if !first && err != nil {
		c.Log.Debug("pipeline: further error after shutdown was requested", "err", err)
	}
	c.shutdown.Store(true)
}

// ShuttingDown reports whether RequestShutdown has been called.
func (c *Context) ShuttingDown() bool {
	return c.shutdown.Load()
}

// Err returns the first fatal error passed to RequestShutdown, or nil for a
// clean run or a cooperative cancel.
func (c *Context) Err() error {
	return c.firstErr
}

// ErrOccurred reports error_occurred (spec.md §5): true only when shutdown
// was triggered by a fatal error rather than a cooperative cancel.
func (c *Context) ErrOccurred() bool {
	return c.errOccurred.Load()
}

// WatchdogTimeout is WATCHDOG_TIMEOUT_MS (spec.md §6.5): how long Capture
// may go without updating the heartbeat before the Watchdog kills the
// process.
const WatchdogTimeout = 8000 * time.Millisecond

// WatchdogInterval is WATCHDOG_INTERVAL_MS (spec.md §6.5).
const WatchdogInterval = 2000 * time.Millisecond
