package containerwriter

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pclov3r/iqtool/internal/sampleformat"
)

func TestRawWriterRoundTripsBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	w := NewRaw(path)
	require.NoError(t, w.Initialize(Info{Format: sampleformat.CF32, SampleRateHz: 48000}))

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := w.WriteChunk(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, w.Finalize())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWavWriterCanonicalHeaderSizesMatchDataWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w := NewWav(path)
	require.NoError(t, w.Initialize(Info{
		Format:            sampleformat.CS16,
		SampleRateHz:      48000,
		KnownLengthFrames: 100,
	}))
	assert.False(t, w.useRF64)

	payload := make([]byte, 400) // 100 frames * 4 bytes/pair
	_, err := w.WriteChunk(payload)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 44+400)
	assert.Equal(t, "RIFF", string(got[0:4]))
	assert.Equal(t, uint32(36+400), binary.LittleEndian.Uint32(got[4:8]))
	assert.Equal(t, "WAVE", string(got[8:12]))
	assert.Equal(t, "data", string(got[36:40]))
	assert.Equal(t, uint32(400), binary.LittleEndian.Uint32(got[40:44]))
}

func TestWavWriterUnknownLengthUpgradesToRF64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w := NewWav(path)
	require.NoError(t, w.Initialize(Info{Format: sampleformat.CS16, SampleRateHz: 48000}))
	assert.True(t, w.useRF64)

	_, err := w.WriteChunk(make([]byte, 1000))
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RF64", string(got[0:4]))
	assert.Equal(t, "ds64", string(got[12:16]))
}

func TestStdoutWriterWritesThroughBuffer(t *testing.T) {
	var buf bytes.Buffer
	w := NewStdout(&buf)
	require.NoError(t, w.Initialize(Info{}))
	_, err := w.WriteChunk([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Finalize())
	assert.Equal(t, "hello", buf.String())
}

func TestResolveFilenameExpandsTimePattern(t *testing.T) {
	ts := time.Date(2026, 7, 30, 15, 4, 5, 0, time.UTC)
	got, err := ResolveFilename("capture-%Y%m%d-%H%M%S.raw", ts)
	require.NoError(t, err)
	assert.Equal(t, "capture-20260730-150405.raw", got)
}
