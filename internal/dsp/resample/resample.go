// Package resample implements the rational-ratio polyphase resampler
// (spec.md §4.6): fixed ratio target_rate/input_rate, 60 dB baseline
// stopband attenuation, state carried (and reset on discontinuity) across
// Process calls.
package resample

import "math"

// Tunables from spec.md §6.5.
const (
	StopbandAttenuationDB = 60.0
	OutputSafetyMargin    = 128

	// phases is the polyphase filter bank size. It is an internal
	// implementation choice (spec.md leaves the resampler's internal
	// structure to "an equivalent" multirate engine), not a spec constant.
	phases = 64
)

// Resampler converts a stream of complex samples from inputRateHz to
// targetRateHz by a fixed ratio, using a polyphase-decomposed windowed-sinc
// lowpass prototype shared across all phases.
type Resampler struct {
	ratio        float64
	tapsPerPhase int
	bank         [][]float32 // bank[phase][tap]

	history []complex64 // last tapsPerPhase-1 input samples
	t       float64     // fractional input-sample position of the next output
}

// New designs a Resampler for the given input and target rates.
func New(inputRateHz, targetRateHz float64) *Resampler {
	ratio := targetRateHz / inputRateHz
	tapsPerPhase := designTapsPerPhase(inputRateHz, targetRateHz)
	totalTaps := tapsPerPhase * phases

	cutoffHz := 0.5 * math.Min(inputRateHz, targetRateHz)
	effectiveRate := inputRateHz * float64(phases)
	beta := kaiserBeta(StopbandAttenuationDB)
	master := designLowpassKaiser(totalTaps, cutoffHz, effectiveRate, beta)

	bank := make([][]float32, phases)
	for p := 0; p < phases; p++ {
		row := make([]float32, tapsPerPhase)
		for k := 0; k < tapsPerPhase; k++ {
			idx := k*phases + p
			if idx < len(master) {
				// Gain-compensate for the phases-fold bandwidth expansion
				// introduced by the conceptual upsample-by-phases step.
				row[k] = float32(master[idx] * float64(phases))
			}
		}
		bank[p] = row
	}

	histLen := tapsPerPhase - 1
	return &Resampler{
		ratio:        ratio,
		tapsPerPhase: tapsPerPhase,
		bank:         bank,
		history:      make([]complex64, histLen),
		t:            float64(histLen),
	}
}

// Ratio returns target_rate / input_rate.
func (r *Resampler) Ratio() float64 { return r.ratio }

// OutputCapacity returns the output chunk capacity needed to guarantee
// ⌈framesIn × ratio⌉ + RESAMPLER_OUTPUT_SAFETY_MARGIN output samples always
// fit (spec.md §4.6).
func (r *Resampler) OutputCapacity(framesIn int) int {
	return int(math.Ceil(float64(framesIn)*r.ratio)) + OutputSafetyMargin
}

// Process resamples in, returning the output samples produced. State
// (history and fractional phase) persists across calls.
func (r *Resampler) Process(in []complex64) []complex64 {
	combined := make([]complex64, len(r.history)+len(in))
	copy(combined, r.history)
	copy(combined[len(r.history):], in)

	step := 1.0 / r.ratio
	var out []complex64

	t := r.t
	for int(math.Floor(t)) < len(combined) {
		idx := int(math.Floor(t))
		frac := t - float64(idx)
		phase := int(frac * float64(phases))
		if phase >= phases {
			phase = phases - 1
		}

		taps := r.bank[phase]
		var acc complex64
		for k := 0; k < len(taps); k++ {
			srcIdx := idx - k
			if srcIdx < 0 {
				continue
			}
			acc += complex64(complex(taps[k], 0)) * combined[srcIdx]
		}
		out = append(out, acc)
		t += step
	}

	histLen := len(r.history)
	start := len(combined) - histLen
	if start < 0 {
		start = 0
		histLen = len(combined)
	}
	r.t = t - float64(start)
	r.history = append(r.history[:0], combined[start:]...)

	return out
}

// Reset clears history and re-bases the fractional phase, per the
// discontinuity protocol (spec.md §4.6 "On discontinuity: forward token and
// reset internal state").
func (r *Resampler) Reset() {
	for i := range r.history {
		r.history[i] = 0
	}
	r.t = float64(len(r.history))
}

// designTapsPerPhase sizes each polyphase branch using the Kaiser
// transition-width formula against the tighter of the two rates' transition
// band, matching the spirit of spec.md §4.9's tap-count rule.
func designTapsPerPhase(inputRateHz, targetRateHz float64) int {
	nyquist := 0.5 * math.Min(inputRateHz, targetRateHz)
	transitionHz := nyquist * 0.2
	if transitionHz <= 0 {
		transitionHz = 1
	}
	beta := kaiserBeta(StopbandAttenuationDB)
	_ = beta
	deltaOmega := 2 * math.Pi * transitionHz / (inputRateHz * float64(phases))
	n := int(math.Ceil((StopbandAttenuationDB-8)/(2.285*deltaOmega))) + 1
	perPhase := n/phases + 1
	if perPhase < 8 {
		perPhase = 8
	}
	return perPhase
}

func designLowpassKaiser(n int, cutoffHz, sampleRateHz, beta float64) []float64 {
	fcNorm := cutoffHz / sampleRateHz
	m := float64(n-1) / 2
	h := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) - m
		if x == 0 {
			h[i] = 2 * fcNorm
		} else {
			h[i] = math.Sin(2*math.Pi*fcNorm*x) / (math.Pi * x)
		}
	}
	w := kaiserWindow(n, beta)
	for i := range h {
		h[i] *= w[i]
	}
	return h
}

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
		rr := (2*float64(i) - m) / m
		w[i] = besselI0(beta*math.Sqrt(1-rr*rr)) / denom
	}
	return w
}

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
