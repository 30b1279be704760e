package filter

import "math"

// designRealStage builds one FilterRequest's real-valued windowed tap set.
// Only reached for Lowpass, Highpass, Stopband, and center-offset-zero
// Passband requests (spec.md §4.9); a Passband with nonzero center offset
// goes through designComplexStage instead.
func designRealStage(req Request, sampleRateHz float64, tapCount int, window []float64) []float64 {
	switch req.Kind {
	case Lowpass:
		h := idealLowpass(tapCount, req.F1Hz/sampleRateHz)
		return applyWindow(h, window)
	case Highpass:
		h := applyWindow(idealLowpass(tapCount, req.F1Hz/sampleRateHz), window)
		return deltaMinus(h)
	case Passband:
		return realBandpassPrototype(tapCount, sampleRateHz, req.centerOffsetHz(), req.halfBandwidthHz(), window)
	case Stopband:
		bp := realBandpassPrototype(tapCount, sampleRateHz, req.centerOffsetHz(), req.halfBandwidthHz(), window)
		return deltaMinus(bp)
	default:
		panic("filter: unknown request kind")
	}
}

// designComplexStage builds a center-offset Passband's complex, single-
// sideband tap set: a baseband lowpass prototype frequency-shifted by the
// band's center offset (spec.md §4.9: "frequency-shifted into a complex
// tap set").
func designComplexStage(req Request, sampleRateHz float64, tapCount int, window []float64) []complex128 {
	h := applyWindow(idealLowpass(tapCount, req.halfBandwidthHz()/sampleRateHz), window)
	m := float64(tapCount-1) / 2
	out := make([]complex128, tapCount)
	center := req.centerOffsetHz()
	for n := 0; n < tapCount; n++ {
		theta := 2 * math.Pi * center * (float64(n) - m) / sampleRateHz
		s, c := math.Sincos(theta)
		out[n] = complex(h[n]*c, h[n]*s)
	}
	return out
}

// realBandpassPrototype builds a real, double-sideband bandpass/notch-base
// impulse response centered at centerHz with half-bandwidth halfBWHz, by
// cosine-modulating a baseband lowpass prototype. With centerHz == 0 this
// degenerates to the plain lowpass prototype, matching a DC-centered
// Passband request.
func realBandpassPrototype(tapCount int, sampleRateHz, centerHz, halfBWHz float64, window []float64) []float64 {
	h := applyWindow(idealLowpass(tapCount, halfBWHz/sampleRateHz), window)
	if centerHz == 0 {
		return h
	}
	m := float64(tapCount-1) / 2
	out := make([]float64, tapCount)
	for n := 0; n < tapCount; n++ {
		out[n] = h[n] * math.Cos(2*math.Pi*centerHz*(float64(n)-m)/sampleRateHz)
	}
	return out
}

// idealLowpass is the (unwindowed) ideal lowpass sinc impulse response at
// normalized cutoff fcNorm (cycles/sample).
func idealLowpass(n int, fcNorm float64) []float64 {
	m := float64(n-1) / 2
	h := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) - m
		if x == 0 {
			h[i] = 2 * fcNorm
			continue
		}
		h[i] = math.Sin(2*math.Pi*fcNorm*x) / (math.Pi * x)
	}
	return h
}

func applyWindow(h, window []float64) []float64 {
	out := make([]float64, len(h))
	for i := range h {
		out[i] = h[i] * window[i]
	}
	return out
}

// deltaMinus returns delta - h, where delta is a unit impulse at h's center
// tap: the spectral-inversion identity used to turn a lowpass prototype
// into a highpass or notch.
func deltaMinus(h []float64) []float64 {
	out := make([]float64, len(h))
	for i := range h {
		out[i] = -h[i]
	}
	out[len(h)/2] += 1
	return out
}

func promoteRealToComplex(a []float64) []complex128 {
	out := make([]complex128, len(a))
	for i, v := range a {
		out[i] = complex(v, 0)
	}
	return out
}

func convolveReal(a, b []float64) []float64 {
	if a == nil {
		out := make([]float64, len(b))
		copy(out, b)
		return out
	}
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

func convolveComplex(a, b []complex128) []complex128 {
	if a == nil {
		out := make([]complex128, len(b))
		copy(out, b)
		return out
	}
	out := make([]complex128, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

func normalizeReal(taps []float64, anyHighOrStop bool) {
	if anyHighOrStop {
		peak := peakMagnitudeReal(taps)
		scaleReal(taps, peak)
		return
	}
	sum := 0.0
	for _, v := range taps {
		sum += v
	}
	scaleReal(taps, sum)
}

func normalizeComplex(taps []complex128, anyHighOrStop bool, sampleRateHz float64) {
	peak := peakMagnitudeComplex(taps)
	scaleComplex(taps, peak)
}

func scaleReal(taps []float64, by float64) {
	if math.Abs(by) < GainZeroThreshold {
		return
	}
	for i := range taps {
		taps[i] /= by
	}
}

func scaleComplex(taps []complex128, by float64) {
	if by < GainZeroThreshold {
		return
	}
	for i := range taps {
		taps[i] /= complex(by, 0)
	}
}

// peakMagnitudeReal samples |H(e^jw)| at FreqResponsePoints points around
// the unit circle and returns the maximum (spec.md §4.9 gain
// normalization).
func peakMagnitudeReal(taps []float64) float64 {
	max := 0.0
	for k := 0; k < FreqResponsePoints; k++ {
		w := 2 * math.Pi * float64(k) / FreqResponsePoints
		var re, im float64
		for n, h := range taps {
			s, c := math.Sincos(-w * float64(n))
			re += h * c
			im += h * s
		}
		mag := math.Hypot(re, im)
		if mag > max {
			max = mag
		}
	}
	return max
}

func peakMagnitudeComplex(taps []complex128) float64 {
	max := 0.0
	for k := 0; k < FreqResponsePoints; k++ {
		w := 2 * math.Pi * float64(k) / FreqResponsePoints
		var re, im float64
		for n, h := range taps {
			s, c := math.Sincos(-w * float64(n))
			hr, hi := real(h), imag(h)
			re += hr*c - hi*s
			im += hr*s + hi*c
		}
		mag := math.Hypot(re, im)
		if mag > max {
			max = mag
		}
	}
	return max
}

func toFloat32(a []float64) []float32 {
	out := make([]float32, len(a))
	for i, v := range a {
		out[i] = float32(v)
	}
	return out
}

func toComplex64(a []complex128) []complex64 {
	out := make([]complex64, len(a))
	for i, v := range a {
		out[i] = complex64(v)
	}
	return out
}
