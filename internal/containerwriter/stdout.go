package containerwriter

import (
	"bufio"
	"fmt"
	"io"
)

// StdoutWriter streams raw bytes to an io.Writer (ordinarily os.Stdout) with
// no container framing, for shell-pipeline use (spec.md §6.2).
type StdoutWriter struct {
	out     io.Writer
	w       *bufio.Writer
	written int64
}

// NewStdout builds a StdoutWriter over out.
func NewStdout(out io.Writer) *StdoutWriter {
	return &StdoutWriter{out: out}
}

func (w *StdoutWriter) Initialize(info Info) error {
	w.w = bufio.NewWriterSize(w.out, FileWriterChunkSize)
	return nil
}

func (w *StdoutWriter) WriteChunk(buf []byte) (int, error) {
	n, err := w.w.Write(buf)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("containerwriter: writing stdout: %w", err)
	}
	return n, nil
}

func (w *StdoutWriter) Finalize() error {
	return w.w.Flush()
}

func (w *StdoutWriter) SummaryInfo() string {
	return fmt.Sprintf("stdout: %d bytes written", w.written)
}
