package nco

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOscillatorCancelsMatchingTone(t *testing.T) {
	const rate = 2_000_000.0
	const toneHz = 100_000.0
	const n = 1_000_000

	o := New(-toneHz, rate)

	var sumErr float64
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * toneHz * float64(i) / rate
		x := complex64(complex(math.Cos(phase), math.Sin(phase)))
		out := []complex64{x}
		o.Process(out)

		d := complex128(out[0]) - complex(1, 0)
		sumErr += cmplx.Abs(d) * cmplx.Abs(d)
	}
	meanSq := sumErr / n
	assert.Less(t, meanSq, 1e-6)
}

func TestResetPhaseZeroesAccumulator(t *testing.T) {
	o := New(1000, 48000)
	o.Process(make([]complex64, 100))
	o.ResetPhase()
	assert.Equal(t, 0.0, o.phase)
}
