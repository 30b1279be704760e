package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesignNoRequestsYieldsNilChain(t *testing.T) {
	c, err := Design(Spec{SampleRateHz: 48000})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDesignTooManyRequestsErrors(t *testing.T) {
	reqs := make([]Request, MaxFilterChain+1)
	for i := range reqs {
		reqs[i] = Request{Kind: Lowpass, F1Hz: 1000}
	}
	_, err := Design(Spec{Requests: reqs, SampleRateHz: 48000})
	require.Error(t, err)
}

func TestDesignLowpassProducesRealOddTapChain(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Lowpass, F1Hz: 5000}},
		SampleRateHz: 48000,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Complex)
	assert.Equal(t, "fir", c.Implementation)
	assert.Equal(t, 1, c.Len()%2, "tap count must be odd")
	assert.GreaterOrEqual(t, c.Len(), MinimumTaps)
}

func TestDesignCenterOffsetPassbandProducesComplexChain(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Passband, F1Hz: 10000, F2Hz: 4000}},
		SampleRateHz: 48000,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.Complex)
	assert.Equal(t, "fft", c.Implementation)
}

func TestDesignDCPassbandProducesRealChain(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Passband, F1Hz: 0, F2Hz: 4000}},
		SampleRateHz: 48000,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Complex)
}

func TestDesignExplicitTapsOverrideIsOdd(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Lowpass, F1Hz: 1000}},
		SampleRateHz: 48000,
		TapsOverride: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 41, c.Len())
}

// TestLowpassEngineAttenuatesOutOfBandTone is the S5 scenario (spec.md §8):
// a lowpass at fc passes a tone well below fc near unity and attenuates one
// well above fc substantially.
func TestLowpassEngineAttenuatesOutOfBandTone(t *testing.T) {
	const sampleRate = 48000.0
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Lowpass, F1Hz: 2000}},
		SampleRateHz: sampleRate,
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	eng := NewEngine(c)

	passTone := toneRMS(eng, sampleRate, 500, 4096)
	stopTone := toneRMS(eng, sampleRate, 18000, 4096)

	assert.Greater(t, passTone, 0.5)
	assert.Less(t, stopTone, 0.2)
}

func toneRMS(eng Engine, sampleRate, freqHz float64, n int) float64 {
	in := make([]complex64, n)
	for i := range in {
		theta := 2 * math.Pi * freqHz * float64(i) / sampleRate
		in[i] = complex(float32(math.Cos(theta)), float32(math.Sin(theta)))
	}
	out := eng.Process(in)

	// Skip the filter's transient and measure steady-state amplitude.
	tail := out[len(out)*3/4:]
	var sumSq float64
	for _, v := range tail {
		r, im := float64(real(v)), float64(imag(v))
		sumSq += r*r + im*im
	}
	return math.Sqrt(sumSq / float64(len(tail)))
}

func TestFIREngineResetClearsHistory(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Lowpass, F1Hz: 2000}},
		SampleRateHz: 48000,
	})
	require.NoError(t, err)
	eng := NewEngine(c)

	in := make([]complex64, 64)
	for i := range in {
		in[i] = complex(1, 0)
	}
	eng.Process(in)
	eng.Reset()

	fir := eng.(*FIR)
	for _, v := range fir.history {
		assert.Equal(t, complex64(0), v)
	}
}

func TestFFTFilterResetClearsRemainder(t *testing.T) {
	c, err := Design(Spec{
		Requests:     []Request{{Kind: Passband, F1Hz: 10000, F2Hz: 4000}},
		SampleRateHz: 48000,
	})
	require.NoError(t, err)
	eng := NewEngine(c)

	in := make([]complex64, 4096)
	for i := range in {
		in[i] = complex(1, 0)
	}
	eng.Process(in)
	eng.Reset()

	ff := eng.(*FFTFilter)
	for _, v := range ff.remainder {
		assert.Equal(t, complex64(0), v)
	}
}
