// Package progress implements Writer-side progress reporting (spec.md
// §6 lists progress reporting as an external collaborator of the core
// pipeline; run_writer in §6.2 "reports progress").
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// Snapshot is the progress_mutex-protected state the Writer publishes
// (spec.md §5: "progress_mutex protects total_frames_read,
// total_output_frames, ... ").
type Snapshot struct {
	TotalFramesRead   int64
	TotalOutputFrames int64
	ExpectedFrames    int64 // 0 if unknown (spec.md §4.12 "for known-length sources")
	OverrunCount      uint64
	Elapsed           time.Duration
}

// Reporter renders Snapshots to an output stream at a fixed interval,
// word-wrapping to the terminal width when one can be determined.
type Reporter struct {
	out      io.Writer
	interval time.Duration
	width    int
	last     time.Time
}

// New builds a Reporter writing to out. Terminal width is probed once
// against /dev/tty (opened via pkg/term, the same device pclov3r/iqtool's
// teacher uses for out-of-band control rather than assuming out itself is a
// terminal); a non-terminal environment (redirected to a file, or in tests)
// falls back to an 80-column assumption.
func New(out io.Writer) *Reporter {
	return &Reporter{out: out, interval: 500 * time.Millisecond, width: terminalWidth()}
}

func terminalWidth() int {
	tty, err := term.Open("/dev/tty")
	if err != nil {
		return 80
	}
	defer tty.Close()

	ws, err := unix.IoctlGetWinsize(int(tty.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return 80
	}
	return int(ws.Col)
}

// Report writes s if at least the reporting interval has elapsed since the
// last report, or force is true.
func (r *Reporter) Report(s Snapshot, force bool) {
	now := time.Now()
	if !force && !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now

	line := r.render(s)
	fmt.Fprint(r.out, "\r"+line)
}

// Finish writes a final newline-terminated report.
func (r *Reporter) Finish(s Snapshot) {
	fmt.Fprintln(r.out, "\r"+r.render(s))
}

func (r *Reporter) render(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "frames in=%d out=%d", s.TotalFramesRead, s.TotalOutputFrames)
	if s.ExpectedFrames > 0 {
		pct := 100 * float64(s.TotalFramesRead) / float64(s.ExpectedFrames)
		fmt.Fprintf(&b, " (%.1f%%)", pct)
	}
	if s.OverrunCount > 0 {
		fmt.Fprintf(&b, " overruns=%d", s.OverrunCount)
	}
	fmt.Fprintf(&b, " elapsed=%s", s.Elapsed.Round(time.Second))

	line := b.String()
	if len(line) > r.width && r.width > 1 {
		line = line[:r.width-1]
	}
	return line
}
