package filter

import (
	"fmt"
	"math"
)

// Tunables from spec.md §6.5.
const (
	DefaultTransitionFactor = 0.25
	MinimumTaps             = 21
	GainZeroThreshold       = 1e-9
	FreqResponsePoints      = 2048
	DefaultAttenuationDB    = 60.0

	// centerOffsetEpsilon is the ε spec.md §3 leaves unspecified for
	// "|f1| > ε"; chosen well below any meaningful tuning step.
	centerOffsetEpsilon = 1e-6
)

// Spec describes one side's (pre- or post-resample) combined filter
// request, as configured by the user (spec.md §4.9).
type Spec struct {
	Requests []Request

	// SampleRateHz is the rate the filter is designed against: input rate
	// for a pre-resample filter, target rate for a post-resample filter.
	SampleRateHz float64

	// PreShiftHz is the active pre-resample NCO shift, used only when this
	// Spec is for the pre-resample filter and a shift is configured
	// (spec.md §4.9 "Pre-shift compensation"). Zero otherwise.
	PreShiftHz float64

	// TapsOverride forces the tap count for every request (rounded up to
	// odd) if nonzero, per spec.md §4.9 "Taps specified explicitly take
	// precedence."
	TapsOverride int

	// TransitionWidthHz overrides the derived transition width for every
	// request, if nonzero.
	TransitionWidthHz float64

	// AttenuationDB is the Kaiser stopband attenuation target; zero means
	// DefaultAttenuationDB.
	AttenuationDB float64

	// ForceImplementation is "fir", "fft", or "" (auto-select per
	// spec.md §4.9 "Implementation choice").
	ForceImplementation string

	// FFTSizeOverride is the user's filter_fft_size, or 0 for auto.
	FFTSizeOverride int
}

// Chain is a fully designed combined filter, ready to apply to a stream.
// Exactly one of RealTaps/ComplexTaps is populated.
type Chain struct {
	RealTaps    []float32
	ComplexTaps []complex64
	Complex     bool

	// Implementation is "fir" or "fft".
	Implementation string
	// BlockSize is the overlap-save block size, meaningful only when
	// Implementation == "fft".
	BlockSize int
}

// Len returns the master tap count.
func (c *Chain) Len() int {
	if c.Complex {
		return len(c.ComplexTaps)
	}
	return len(c.RealTaps)
}

// Design builds the master combined filter from spec (spec.md §4.9). A nil
// Chain with a nil error means "no filter configured" (zero requests).
func Design(spec Spec) (*Chain, error) {
	if len(spec.Requests) == 0 {
		return nil, nil
	}
	if len(spec.Requests) > MaxFilterChain {
		return nil, fmt.Errorf("filter: too many filter requests on one side (max %d, got %d)", MaxFilterChain, len(spec.Requests))
	}

	atten := spec.AttenuationDB
	if atten <= 0 {
		atten = DefaultAttenuationDB
	}

	anyHighOrStop := false
	anyComplexStage := false

	var combinedReal []float64
	var combinedComplex []complex128

	for _, req := range spec.Requests {
		adjusted := req
		adjusted.F1Hz -= spec.PreShiftHz

		tapCount := tapCountFor(adjusted, spec, atten)
		beta := kaiserBeta(atten)
		window := kaiserWindow(tapCount, beta)

		switch adjusted.Kind {
		case Highpass, Stopband:
			anyHighOrStop = true
		}

		if adjusted.isCenterOffsetAsymmetric(centerOffsetEpsilon) {
			anyComplexStage = true
			ctaps := designComplexStage(adjusted, spec.SampleRateHz, tapCount, window)
			if combinedComplex == nil {
				combinedComplex = promoteRealToComplex(combinedReal)
				combinedReal = nil
			}
			combinedComplex = convolveComplex(combinedComplex, ctaps)
		} else {
			rtaps := designRealStage(adjusted, spec.SampleRateHz, tapCount, window)
			if combinedComplex != nil {
				combinedComplex = convolveComplex(combinedComplex, promoteRealToComplex(rtaps))
			} else {
				combinedReal = convolveReal(combinedReal, rtaps)
			}
		}
	}

	chain := &Chain{Complex: anyComplexStage}
	if anyComplexStage {
		normalizeComplex(combinedComplex, anyHighOrStop, spec.SampleRateHz)
		chain.ComplexTaps = toComplex64(combinedComplex)
	} else {
		normalizeReal(combinedReal, anyHighOrStop)
		chain.RealTaps = toFloat32(combinedReal)
	}

	chooseImplementation(chain, spec)
	return chain, nil
}

func chooseImplementation(c *Chain, spec Spec) {
	switch spec.ForceImplementation {
	case "fir":
		c.Implementation = "fir"
		return
	case "fft":
		c.Implementation = "fft"
		c.BlockSize = fftBlockSize(c.Len(), spec.FFTSizeOverride)
		return
	}

	if c.Complex {
		c.Implementation = "fft"
		c.BlockSize = fftBlockSize(c.Len(), spec.FFTSizeOverride)
	} else {
		c.Implementation = "fir"
	}
}

// fftBlockSize implements spec.md §4.9's block-size rule: user-set
// filter_fft_size/2 if given, else the smallest power of two ≥
// master_taps_len−1, doubled if still ≤ master_taps_len.
func fftBlockSize(masterLen, userFFTSize int) int {
	if userFFTSize > 0 {
		return userFFTSize / 2
	}
	b := nextPow2(masterLen - 1)
	if b <= masterLen {
		b *= 2
	}
	return b
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func tapCountFor(req Request, spec Spec, attenDB float64) int {
	if spec.TapsOverride > 0 {
		return oddify(spec.TapsOverride)
	}

	tw := spec.TransitionWidthHz
	if tw <= 0 {
		tw = abs(req.referenceFreqHz()) * DefaultTransitionFactor
	}
	if tw <= 0 {
		return MinimumTaps
	}

	beta := kaiserBeta(attenDB)
	deltaOmega := 2 * math.Pi * tw / spec.SampleRateHz
	n := int(math.Ceil((attenDB-8)/(2.285*deltaOmega))) + 1
	_ = beta
	if n < MinimumTaps {
		n = MinimumTaps
	}
	return oddify(n)
}

func oddify(n int) int {
	if n%2 == 0 {
		return n + 1
	}
	return n
}

// kaiserBeta derives the Kaiser window shape parameter from the target
// stopband attenuation, using Kaiser's standard piecewise approximation.
func kaiserBeta(attenDB float64) float64 {
	switch {
	case attenDB > 50:
		return 0.1102 * (attenDB - 8.7)
	case attenDB >= 21:
		return 0.5842*math.Pow(attenDB-21, 0.4) + 0.07886*(attenDB-21)
	default:
		return 0
	}
}

func kaiserWindow(n int, beta float64) []float64 {
	w := make([]float64, n)
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := 0; i < n; i++ {
		r := (2*float64(i) - m) / m
		w[i] = besselI0(beta*math.Sqrt(1-r*r)) / denom
	}
	return w
}

// besselI0 is the zeroth-order modified Bessel function of the first kind,
// via its power series (converges quickly for the beta range Kaiser design
// uses).
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 40; k++ {
		term *= (halfX * halfX) / (float64(k) * float64(k))
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}

