package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputCapacityGuaranteesFit(t *testing.T) {
	r := New(2_400_000, 1_200_000)
	assert.Equal(t, 0.5, r.Ratio())

	cap := r.OutputCapacity(65536)
	out := r.Process(make([]complex64, 65536))
	assert.LessOrEqual(t, len(out), cap)
}

// TestRateHalvingPreservesFlatSignal is the S2 scenario (spec.md §8): a flat
// real-valued input at half the target ratio should reappear, after
// transients settle, at roughly the same amplitude and about half as many
// samples.
func TestRateHalvingPreservesFlatSignal(t *testing.T) {
	const n = 65536
	r := New(2_400_000, 1_200_000)

	in := make([]complex64, n)
	for i := range in {
		in[i] = complex(0.5, 0)
	}
	out := r.Process(in)

	require.NotEmpty(t, out)
	assert.InDelta(t, n/2, len(out), float64(n)*0.05)

	tail := out[len(out)*3/4:]
	for _, v := range tail {
		assert.InDelta(t, 0.5, real(v), 0.05)
		assert.InDelta(t, 0, imag(v), 0.05)
	}
}

func TestUpsamplingProducesMoreSamples(t *testing.T) {
	const n = 8192
	r := New(48000, 96000)
	in := make([]complex64, n)
	for i := range in {
		theta := 2 * math.Pi * 1000 * float64(i) / 48000
		in[i] = complex(float32(math.Cos(theta)), float32(math.Sin(theta)))
	}
	out := r.Process(in)
	assert.InDelta(t, n*2, len(out), float64(n)*0.1)
}

func TestResetRebasesFractionalPhase(t *testing.T) {
	r := New(2_400_000, 1_200_000)
	in := make([]complex64, 4096)
	for i := range in {
		in[i] = complex(0.3, -0.1)
	}
	r.Process(in)
	r.Reset()

	for _, v := range r.history {
		assert.Equal(t, complex64(0), v)
	}
	assert.Equal(t, float64(len(r.history)), r.t)
}
