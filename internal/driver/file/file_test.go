package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pclov3r/iqtool/internal/sampleformat"
)

func writeTempRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.raw")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRawSourceReportsFormatAndRate(t *testing.T) {
	path := writeTempRaw(t, make([]byte, 4096))
	s := New(path, sampleformat.CS16, 2_000_000)
	defer s.Close()

	info, err := s.Initialize()
	require.NoError(t, err)
	assert.Equal(t, sampleformat.CS16, info.Format)
	assert.Equal(t, 4, info.BytesPerSamplePair)
	assert.Equal(t, 2_000_000.0, info.SampleRateHz)
	assert.False(t, s.HasKnownLength())
}

func TestRawSourceReadIntoReturnsEOFOnShortFinalBlock(t *testing.T) {
	// 4 bytes per CS16 sample pair, 10 pairs = 40 bytes.
	path := writeTempRaw(t, make([]byte, 40))
	s := New(path, sampleformat.CS16, 2_000_000)
	defer s.Close()
	_, err := s.Initialize()
	require.NoError(t, err)

	buf := make([]byte, 100) // larger than file, forces a short read + EOF
	frames, format, eof, err := s.ReadInto(buf)
	require.NoError(t, err)
	assert.Equal(t, 10, frames)
	assert.Equal(t, sampleformat.CS16, format)
	assert.True(t, eof)
}

func TestRawSourceRewindReturnsToStart(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempRaw(t, data)
	s := New(path, sampleformat.CS16, 2_000_000)
	defer s.Close()
	_, err := s.Initialize()
	require.NoError(t, err)

	first := make([]byte, 8)
	_, _, _, err = s.ReadInto(first)
	require.NoError(t, err)

	require.NoError(t, s.Rewind())

	again := make([]byte, 8)
	_, _, _, err = s.ReadInto(again)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
