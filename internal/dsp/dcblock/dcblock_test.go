package dcblock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockerRemovesDCLeavesTone(t *testing.T) {
	const rate = 2_000_000.0
	const n = 200_000
	b := New(rate)

	samples := make([]complex64, n)
	dc := complex64(complex(0.1, 0.2))
	const toneHz = 50_000.0
	const amp = 0.5
	for i := range samples {
		phase := 2 * math.Pi * toneHz * float64(i) / rate
		samples[i] = dc + complex64(complex(amp*math.Cos(phase), amp*math.Sin(phase)))
	}

	b.Process(samples)

	var sumRe, sumIm float64
	tail := samples[n-10000:]
	for _, s := range tail {
		sumRe += float64(real(s))
		sumIm += float64(imag(s))
	}
	meanRe := sumRe / float64(len(tail))
	meanIm := sumIm / float64(len(tail))

	assert.Less(t, math.Abs(meanRe), 1e-2)
	assert.Less(t, math.Abs(meanIm), 1e-2)

	var sumMag float64
	for _, s := range tail {
		sumMag += math.Hypot(float64(real(s)), float64(imag(s)))
	}
	assert.InDelta(t, amp, sumMag/float64(len(tail)), 0.01*amp)
}

func TestBlockerResetClearsState(t *testing.T) {
	b := New(48000)
	b.Process([]complex64{10, 10, 10})
	b.Reset()
	assert.Equal(t, complex64(0), b.prevX)
	assert.Equal(t, complex64(0), b.prevY)
}
