package containerwriter

import (
	"bufio"
	"fmt"
	"os"
)

// FileWriterBufferBytes is IO_FILE_WRITER_BUFFER_BYTES (spec.md §6.5): the
// capacity of the Writer stage's own coarse-grained byte ring
// (pipeline.Writer, internal/ringbuf.ByteRingBuffer), not of this package's
// bufio.Writer — that one is sized by FileWriterChunkSize below.
const FileWriterBufferBytes = 1 * 1024 * 1024 * 1024

// FileWriterChunkSize is IO_FILE_WRITER_CHUNK_SIZE (spec.md §6.5): the
// granularity the buffered writer flushes at.
const FileWriterChunkSize = 1 * 1024 * 1024

// RawWriter writes bytes directly to a file with no container framing.
type RawWriter struct {
	path string
	f    *os.File
	w    *bufio.Writer

	written int64
}

// NewRaw builds a RawWriter targeting path.
func NewRaw(path string) *RawWriter {
	return &RawWriter{path: path}
}

func (w *RawWriter) Initialize(info Info) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("containerwriter: creating %s: %w", w.path, err)
	}
	w.f = f
	w.w = bufio.NewWriterSize(f, FileWriterChunkSize)
	return nil
}

func (w *RawWriter) WriteChunk(buf []byte) (int, error) {
	n, err := w.w.Write(buf)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("containerwriter: writing %s: %w", w.path, err)
	}
	return n, nil
}

func (w *RawWriter) Finalize() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("containerwriter: flushing %s: %w", w.path, err)
	}
	return w.f.Close()
}

func (w *RawWriter) SummaryInfo() string {
	return fmt.Sprintf("raw %s: %d bytes written", w.path, w.written)
}
