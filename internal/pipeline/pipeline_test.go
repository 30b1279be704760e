package pipeline

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pclov3r/iqtool/internal/config"
	"github.com/pclov3r/iqtool/internal/containerwriter"
	"github.com/pclov3r/iqtool/internal/driver/file"
	"github.com/pclov3r/iqtool/internal/dsp/agc"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

// writeCF32Tone writes n CF32 frames of a unit-amplitude complex tone at
// freqHz/sampleRateHz to path, returning the samples written for comparison.
func writeCF32Tone(t *testing.T, path string, n int, freqHz, sampleRateHz float64) []complex64 {
	t.Helper()
	samples := make([]complex64, n)
	buf := make([]byte, n*8)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * freqHz * float64(i) / sampleRateHz
		s := complex64(complex(math.Cos(phase), math.Sin(phase)))
		samples[i] = s
		binary.LittleEndian.PutUint32(buf[i*8:i*8+4], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(buf[i*8+4:i*8+8], math.Float32bits(imag(s)))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return samples
}

func readCF32(t *testing.T, path string) []complex64 {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Zero(t, len(b)%8)
	out := make([]complex64, len(b)/8)
	for i := range out {
		re := math.Float32frombits(binary.LittleEndian.Uint32(b[i*8 : i*8+4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[i*8+4 : i*8+8]))
		out[i] = complex(re, im)
	}
	return out
}

// TestRawPassthroughIsByteIdentical exercises spec.md §8 scenario S1: raw
// passthrough mode must reproduce the input stream byte-for-byte, with no
// DSP stage touching it.
func TestRawPassthroughIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 4000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.RawPassthrough = true
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	err := Run(cfg, testLogger(), in, cw, nil, nil)
	require.NoError(t, err)

	want, err := os.ReadFile(inPath)
	require.NoError(t, err)
	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))
}

// TestNoResampleIdentityWithinTolerance exercises the identity case: with
// every DSP stage disabled but the PreProcessor/PostProcessor graph still
// running (no raw_passthrough), the CF32 samples round-trip losslessly.
func TestNoResampleIdentityWithinTolerance(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	want := writeCF32Tone(t, inPath, 4000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	err := Run(cfg, testLogger(), in, cw, nil, nil)
	require.NoError(t, err)

	got := readCF32(t, outPath)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.InDelta(t, real(want[i]), real(got[i]), 1e-5, "frame %d real", i)
		assert.InDelta(t, imag(want[i]), imag(got[i]), 1e-5, "frame %d imag", i)
	}
}

// TestResampleRateHalvingProducesExpectedFrameCount exercises S2-style rate
// halving: halving the output rate should roughly halve the frame count.
func TestResampleRateHalvingProducesExpectedFrameCount(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 8000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.OutputRateHz = 24000
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	err := Run(cfg, testLogger(), in, cw, nil, nil)
	require.NoError(t, err)

	got := readCF32(t, outPath)
	assert.InDelta(t, 4000, len(got), 200)
}

// TestFrequencyShiftPreservesFrameCount exercises S3-style pre-resample
// frequency shift: the stage must run without altering the frame count.
func TestFrequencyShiftPreservesFrameCount(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 4000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.PreShiftHz = 5000
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	err := Run(cfg, testLogger(), in, cw, nil, nil)
	require.NoError(t, err)

	got := readCF32(t, outPath)
	assert.Equal(t, 4000, len(got))
}

// TestDCBlockRemovesDCBias exercises S4-style DC blocking: a constant
// (zero-frequency) input should be driven toward zero after the blocker's
// settling time.
func TestDCBlockRemovesDCBias(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	n := 20000
	buf := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*8:i*8+4], math.Float32bits(1.0))
		binary.LittleEndian.PutUint32(buf[i*8+4:i*8+8], math.Float32bits(0))
	}
	require.NoError(t, os.WriteFile(inPath, buf, 0o644))

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.DCBlock = true
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	err := Run(cfg, testLogger(), in, cw, nil, nil)
	require.NoError(t, err)

	got := readCF32(t, outPath)
	require.NotEmpty(t, got)
	tail := got[len(got)-100:]
	var sum float64
	for _, s := range tail {
		sum += float64(real(s))
	}
	assert.InDelta(t, 0, sum/float64(len(tail)), 0.05)
}

// TestStreamTerminatesWithoutWatchdogFiring exercises spec.md §8 invariant:
// a normal file-mode run (no SDR driver, so no Watchdog goroutine is even
// started) must terminate on its own within a bounded time.
func TestStreamTerminatesWithoutWatchdogFiring(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 2000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.BaseSamples = 256
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	done := make(chan error, 1)
	go func() { done <- Run(cfg, testLogger(), in, cw, nil, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline run did not terminate")
	}
}

// TestExternalCancelStopsRunAndFinalizesContainer exercises the cooperative
// cancel path: closing the cancel channel mid-stream must still leave a
// finalized (non-empty, non-corrupt) output file rather than hanging.
func TestExternalCancelStopsRunAndFinalizesContainer(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 2_000_000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.NoResample = true
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	cancel := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- Run(cfg, testLogger(), in, cw, nil, cancel) }()

	time.Sleep(5 * time.Millisecond)
	close(cancel)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline run did not honor external cancel")
	}

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%8, "output must end on a whole sample-pair boundary")
}

// TestLargeRunDoesNotStarveOnChunkLeak exercises spec.md §8 invariant 1 at
// the whole-pipeline level indirectly: Run doesn't expose its internal
// pool, but a stage that returned early without Put-ing a chunk would
// eventually starve the fixed 512-chunk pool and hang. Driving enough
// frames through DC block, shift, resample and AGC to cycle the
// pool many times over and requiring bounded completion is the black-box
// equivalent of asserting Outstanding() returns to 0.
func TestLargeRunDoesNotStarveOnChunkLeak(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cf32")
	outPath := filepath.Join(dir, "out.cf32")

	writeCF32Tone(t, inPath, 2_000_000, 1000, 48000)

	cfg := config.Default()
	cfg.InputPath = inPath
	cfg.OutputPath = outPath
	cfg.InputFormat = "cf32"
	cfg.OutputFormat = "cf32"
	cfg.InputRateHz = 48000
	cfg.OutputRateHz = 24000
	cfg.DCBlock = true
	cfg.PreShiftHz = 2000
	cfg.AGCEnabled = true
	cfg.AGCProfile = agc.Digital
	cfg.BaseSamples = 512
	require.NoError(t, cfg.Validate())

	in := Inputs{FileSource: file.New(inPath, sampleformat.CF32, 48000)}
	cw := containerwriter.NewRaw(outPath)

	done := make(chan error, 1)
	go func() { done <- Run(cfg, testLogger(), in, cw, nil, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline run did not terminate; likely a leaked chunk starving the pool")
	}
}
