package pipeline

import (
	"os"
	"time"

	"github.com/pclov3r/iqtool/internal/driver"
)

// Watchdog implements spec.md §4.11: polls the SDR Capture heartbeat every
// WatchdogInterval, and if it has gone silent for WatchdogTimeout,
// terminates the process immediately — the one deliberately-uncooperative
// exit in the whole design, on the assumption that the driver is deadlocked
// and its goroutine cannot be joined.
type Watchdog struct {
	hb   *driver.Heartbeat
	ctx  *Context
	stop chan struct{}

	// exit is os.Exit by default; overridable in tests so a firing watchdog
	// doesn't kill the test binary.
	exit func(code int)
}

// NewWatchdog builds a Watchdog observing hb.
func NewWatchdog(hb *driver.Heartbeat, ctx *Context) *Watchdog {
	return &Watchdog{hb: hb, ctx: ctx, stop: make(chan struct{}), exit: os.Exit}
}

// Run polls until Stop is called or a stall is detected.
func (w *Watchdog) Run() {
	defer w.ctx.Log.Debug("watchdog: exiting")

	ticker := time.NewTicker(WatchdogInterval)
	defer ticker.Stop()

	w.hb.Touch(time.Now())

	for {
		select {
		case <-w.stop:
			return
		case now := <-ticker.C:
			last := w.hb.Last()
			if last.IsZero() {
				continue
			}
			if now.Sub(last) > WatchdogTimeout {
				w.ctx.Log.Error("watchdog: no SDR heartbeat, terminating", "silent_for", now.Sub(last))
				w.exit(1)
				return
			}
		}
	}
}

// Stop ends a running watchdog cooperatively (used when the pipeline itself
// shuts down cleanly, so the watchdog doesn't outlive it).
func (w *Watchdog) Stop() {
	close(w.stop)
}
