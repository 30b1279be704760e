// Package file implements the file-backed driver.FileSource: a plain raw
// binary stream, or a WAV/RF64 container whose header is parsed with
// go-audio/wav before falling back to direct byte reads of the PCM data
// (spec.md §4.4 "File mode").
package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-audio/wav"

	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// Source reads a file, raw or WAV, one base_samples-sized block at a time.
type Source struct {
	path         string
	formatHint   sampleformat.Format
	overrideRate float64

	f      *os.File
	r      *bufio.Reader
	format sampleformat.Format
	rateHz float64

	headerEnd          int64 // byte offset where sample data begins
	dataBytesRemaining int64 // -1 for raw files (unbounded/unknown length)
}

// New builds a Source for path. formatHint names the wire format to assume
// for a raw (non-WAV) file; overrideRate likewise supplies the sample rate
// a raw file can't self-describe. Both are ignored for a WAV file, whose
// header is authoritative.
func New(path string, formatHint sampleformat.Format, overrideRate float64) *Source {
	return &Source{path: path, formatHint: formatHint, overrideRate: overrideRate, dataBytesRemaining: -1}
}

func (s *Source) Initialize() (driver.InitResult, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return driver.InitResult{}, fmt.Errorf("file: opening %s: %w", s.path, err)
	}
	s.f = f

	if isWAV(s.path) {
		if err := s.initWAV(); err != nil {
			f.Close()
			return driver.InitResult{}, err
		}
	} else {
		s.format = s.formatHint
		s.rateHz = s.overrideRate
		s.r = bufio.NewReaderSize(f, 1024*1024)
	}

	return driver.InitResult{
		Format:             s.format,
		BytesPerSamplePair: s.format.BytesPerSamplePair(),
		SampleRateHz:       s.rateHz,
		KnownLengthFrames:  s.knownLengthFrames(),
	}, nil
}

func isWAV(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".wav") || strings.HasSuffix(strings.ToLower(path), ".rf64")
}

func (s *Source) initWAV() error {
	dec := wav.NewDecoder(s.f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("file: reading WAV header of %s: %w", s.path, err)
	}

	s.rateHz = float64(dec.SampleRate)
	switch {
	case dec.NumChans == 2 && dec.BitDepth == 16:
		s.format = sampleformat.CS16
	case dec.NumChans == 2 && dec.BitDepth == 8:
		s.format = sampleformat.CS8
	case dec.NumChans == 2 && dec.BitDepth == 32:
		s.format = sampleformat.CF32
	case dec.NumChans == 1 && dec.BitDepth == 16:
		s.format = sampleformat.S16
	case dec.NumChans == 1 && dec.BitDepth == 8:
		s.format = sampleformat.S8
	case dec.NumChans == 1 && dec.BitDepth == 32:
		s.format = sampleformat.F32
	default:
		return fmt.Errorf("file: unsupported WAV layout (chans=%d depth=%d) in %s", dec.NumChans, dec.BitDepth, s.path)
	}

	pcmLen, err := dec.PCMLen()
	if err != nil {
		return fmt.Errorf("file: locating WAV data chunk of %s: %w", s.path, err)
	}
	s.dataBytesRemaining = pcmLen

	if !dec.WasPCMAccessed() {
		if err := dec.FwdToPCM(); err != nil {
			return fmt.Errorf("file: seeking to WAV data chunk of %s: %w", s.path, err)
		}
	}

	if pos, err := s.f.Seek(0, io.SeekCurrent); err == nil {
		s.headerEnd = pos
	}
	s.r = bufio.NewReaderSize(s.f, 1024*1024)
	return nil
}

func (s *Source) knownLengthFrames() int64 {
	if s.dataBytesRemaining < 0 {
		return 0
	}
	bpp := int64(s.format.BytesPerSamplePair())
	if bpp == 0 {
		return 0
	}
	return s.dataBytesRemaining / bpp
}

func (s *Source) ReadInto(dst []byte) (frames int, format sampleformat.Format, eof bool, err error) {
	want := len(dst)
	if s.dataBytesRemaining >= 0 && int64(want) > s.dataBytesRemaining {
		want = int(s.dataBytesRemaining)
	}

	n, readErr := io.ReadFull(s.r, dst[:want])
	if s.dataBytesRemaining >= 0 {
		s.dataBytesRemaining -= int64(n)
	}

	bpp := s.format.BytesPerSamplePair()
	frames = n / bpp

	eof = readErr == io.EOF || readErr == io.ErrUnexpectedEOF || (s.dataBytesRemaining == 0)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return frames, s.format, false, fmt.Errorf("file: reading %s: %w", s.path, readErr)
	}
	return frames, s.format, eof, nil
}

func (s *Source) HasKnownLength() bool { return s.dataBytesRemaining >= 0 }

func (s *Source) SummaryInfo() string {
	return fmt.Sprintf("file %s: format=%s rate=%.0fHz", s.path, s.format, s.rateHz)
}

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}

// PreStreamIQCorrection is the hook spec.md §4.10 describes for file-based
// inputs ("a synchronous one-shot calibration ... may be invoked before
// streaming begins"); the orchestrator runs that pass itself (it owns the
// iqopt.Optimizer and the rewind), so this is a no-op placeholder satisfying
// the driver.FileSource contract.
func (s *Source) PreStreamIQCorrection() error { return nil }

// Rewind seeks back to the position ReadInto started from, so the
// orchestrator's pre-stream calibration pass (spec.md §4.10) can consume a
// block of samples and then resume streaming from the beginning. For a WAV
// source the bytes ReadInto consumed are credited back to the remaining data
// length.
func (s *Source) Rewind() error {
	if s.dataBytesRemaining >= 0 {
		pos, err := s.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		s.dataBytesRemaining += pos - int64(s.r.Buffered()) - s.headerEnd
	}
	if _, err := s.f.Seek(s.headerEnd, io.SeekStart); err != nil {
		return err
	}
	s.r.Reset(s.f)
	return nil
}
