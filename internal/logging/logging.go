// Package logging configures the single charmbracelet/log logger threaded
// through the pipeline context (spec.md §9: "explicit pipeline context...no
// process-global state except...the logger lock"). Every stage logs through
// the *log.Logger handed to it at construction; there is no package-level
// default logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options controls the logger's verbosity and destination.
type Options struct {
	// Debug enables debug-level stage/chunk lifecycle logging.
	Debug bool
	// Output overrides the destination (defaults to stderr, keeping stdout
	// clean for the stdout container writer).
	Output io.Writer
}

// New builds the pipeline's logger. Called exactly once, in cmd/iqtool.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	lvl := log.InfoLevel
	if opts.Debug {
		lvl = log.DebugLevel
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	return logger
}
