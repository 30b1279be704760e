// Package iqopt implements the randomized hill-climb I/Q imbalance
// optimizer (spec.md §4.10): it consumes training copies of pre-resample
// samples and publishes smoothed correction factors to an
// iqcorrect.AtomicFactors.
package iqopt

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/pclov3r/iqtool/internal/dsp/iqcorrect"
)

// Tunables from spec.md §6.5.
const (
	FFTSize            = 1024
	Interval           = 500 * time.Millisecond
	BaseIncrement      = 1e-4
	MaxPasses          = 25
	PowerThresholdDB   = 20.0
	SmoothingFactor    = 0.05
	centralBandFraction = 0.90
)

// Optimizer runs at most once per Interval; Feed is a no-op between
// intervals.
type Optimizer struct {
	factors  *iqcorrect.AtomicFactors
	fft      *fourier.CmplxFFT
	window   []float64
	lastRun  time.Time
	best     iqcorrect.Factors
	rng      *rand.Rand
}

// New builds an Optimizer that publishes onto factors.
func New(factors *iqcorrect.AtomicFactors) *Optimizer {
	return &Optimizer{
		factors: factors,
		fft:     fourier.NewCmplxFFT(FFTSize),
		window:  hammingWindow(FFTSize),
		rng:     rand.New(rand.NewPCG(1, 2)),
	}
}

// Feed offers up to FFTSize training samples. If Interval has elapsed since
// the last pass, it runs one hill-climb pass and (possibly) publishes new
// factors. samples shorter than FFTSize are ignored.
func (o *Optimizer) Feed(samples []complex64, now time.Time) {
	if len(samples) < FFTSize {
		return
	}
	if !o.lastRun.IsZero() && now.Sub(o.lastRun) < Interval {
		return
	}
	o.lastRun = now
	o.runPass(samples[:FFTSize])
}

func (o *Optimizer) runPass(block []complex64) {
	avg, peak := o.spectralPower(block, o.best)
	if peak-avg < PowerThresholdDB {
		return
	}

	bestScore := o.score(block, o.best)
	candidate := o.best
	for i := 0; i < MaxPasses; i++ {
		trial := candidate
		trial.Mag += float32(o.step())
		trial.Phase += float32(o.step())

		s := o.score(block, trial)
		if s > bestScore {
			bestScore = s
			candidate = trial
		}
	}
	o.best = candidate

	old := o.factors.Load()
	alpha := float32(SmoothingFactor)
	next := iqcorrect.Factors{
		Mag:   (1-alpha)*old.Mag + alpha*candidate.Mag,
		Phase: (1-alpha)*old.Phase + alpha*candidate.Phase,
	}
	o.factors.Publish(next)
}

func (o *Optimizer) step() float64 {
	if o.rng.Float64() < 0.5 {
		return BaseIncrement
	}
	return -BaseIncrement
}

// spectralPower returns (average, peak) power in dB over the central 90% of
// bins, after tentatively applying factors.
func (o *Optimizer) spectralPower(block []complex64, f iqcorrect.Factors) (avg, peak float64) {
	mags := o.centralBinMagnitudes(block, f)
	if len(mags) == 0 {
		return 0, 0
	}
	sum := 0.0
	peak = math.Inf(-1)
	for _, m := range mags {
		db := 20 * math.Log10(m+1e-20)
		sum += db
		if db > peak {
			peak = db
		}
	}
	avg = sum / float64(len(mags))
	return avg, peak
}

// score sums (P(+f) - P(-f))^2 over the central band after applying f
// (spec.md §4.10 step 3).
func (o *Optimizer) score(block []complex64, f iqcorrect.Factors) float64 {
	spectrum := o.fftShiftedSpectrum(block, f)
	n := len(spectrum)
	lo, hi := centralBandRange(n)

	score := 0.0
	for k := lo; k < hi; k++ {
		mirror := n - k
		if mirror < 0 || mirror >= n {
			continue
		}
		pPos := cmplx.Abs(spectrum[k])
		pNeg := cmplx.Abs(spectrum[mirror])
		d := pPos*pPos - pNeg*pNeg
		score += d * d
	}
	return score
}

func (o *Optimizer) centralBinMagnitudes(block []complex64, f iqcorrect.Factors) []float64 {
	spectrum := o.fftShiftedSpectrum(block, f)
	n := len(spectrum)
	lo, hi := centralBandRange(n)
	out := make([]float64, 0, hi-lo)
	for k := lo; k < hi; k++ {
		if k == n/2 {
			continue // DC bin of the shifted spectrum
		}
		out = append(out, cmplx.Abs(spectrum[k]))
	}
	return out
}

func (o *Optimizer) fftShiftedSpectrum(block []complex64, f iqcorrect.Factors) []complex128 {
	windowed := make([]complex64, len(block))
	copy(windowed, block)
	iqcorrect.Apply(windowed, f)

	in := make([]complex128, len(windowed))
	for i, v := range windowed {
		in[i] = complex128(v) * complex(o.window[i], 0)
	}
	spectrum := o.fft.Coefficients(nil, in)
	return fftShift(spectrum)
}

// centralBandRange drops the outer 5% on each side of the FFT-shifted
// spectrum (and never starts below bin 1), leaving the central 90%. The DC
// bin (n/2) lies inside this range: centralBinMagnitudes skips it, and in
// score it mirrors onto itself and so adds nothing.
func centralBandRange(n int) (lo, hi int) {
	margin := int(float64(n) * (1 - centralBandFraction) / 2)
	lo = margin
	hi = n - margin
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

func fftShift(spectrum []complex128) []complex128 {
	n := len(spectrum)
	out := make([]complex128, n)
	half := n / 2
	copy(out[:n-half], spectrum[half:])
	copy(out[n-half:], spectrum[:half])
	return out
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
