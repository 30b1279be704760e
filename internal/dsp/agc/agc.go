// Package agc implements the three output AGC profiles of spec.md §4.8:
// DX and Local RMS tracking, and Digital peak-lock with a scan phase and a
// soft clip-ratchet.
package agc

import "math/cmplx"

// Profile selects one of the three mutually exclusive AGC strategies.
type Profile int

const (
	DX Profile = iota
	Local
	Digital
)

// Tunables from spec.md §4.8/§6.5.
const (
	dxTarget       = 0.5
	dxBandwidth    = 1e-4
	localTarget    = 0.5
	localBandwidth = 1e-2

	DigitalTarget      = 0.9
	DigitalScanSeconds = 2.0
	peakMemorySeed     = 0.05
	softClipGain       = 0.99

	// hangTimeSeconds and recoveryRatePerBlock are not pinned down by
	// spec.md §4.8 (Open Question, recorded in DESIGN.md); these values
	// give a multi-second hang before gentle gain recovery.
	hangTimeSeconds      = 3.0
	recoveryRatePerBlock = 1.002
)

// Engine applies one AGC profile to successive blocks of complex samples.
type Engine interface {
	Process(samples []complex64)
	Reset()
}

// New builds the Engine for profile. sampleRateHz is only meaningful for
// Digital (its scan window and hang timer are measured in samples).
func New(profile Profile, sampleRateHz float64) Engine {
	switch profile {
	case DX:
		return newRMS(dxTarget, dxBandwidth)
	case Local:
		return newRMS(localTarget, localBandwidth)
	case Digital:
		return newDigital(sampleRateHz)
	default:
		panic("agc: unknown profile")
	}
}

// rms is a standard complex AGC loop: gain is nudged each sample so the
// post-gain magnitude tracks target, at the given normalized loop
// bandwidth.
type rms struct {
	target    float64
	bandwidth float64
	gain      float64
}

func newRMS(target, bandwidth float64) *rms {
	return &rms{target: target, bandwidth: bandwidth, gain: 1.0}
}

func (a *rms) Process(samples []complex64) {
	for i, v := range samples {
		mag := cmplx.Abs(complex128(v))
		out := complex128(v) * complex(a.gain, 0)
		samples[i] = complex64(out)

		err := a.target - mag*a.gain
		a.gain += a.bandwidth * err
		if a.gain < 1e-6 {
			a.gain = 1e-6
		}
	}
}

func (a *rms) Reset() { a.gain = 1.0 }

// digital implements the Digital profile's scan-then-lock peak tracking
// (spec.md §4.8).
type digital struct {
	scanSamplesTotal int
	scannedSamples   int
	peakMemory       float64
	locked           bool
	currentGain      float64

	hangSamples        int
	hangTimeoutSamples int
}

func newDigital(sampleRateHz float64) *digital {
	return &digital{
		scanSamplesTotal:   int(DigitalScanSeconds * sampleRateHz),
		peakMemory:         peakMemorySeed,
		hangTimeoutSamples: int(hangTimeSeconds * sampleRateHz),
	}
}

func (a *digital) Process(samples []complex64) {
	blockPeak := 0.0
	for _, v := range samples {
		if m := cmplx.Abs(complex128(v)); m > blockPeak {
			blockPeak = m
		}
	}

	if !a.locked {
		if blockPeak > a.peakMemory {
			a.peakMemory = blockPeak
		}
		scale(samples, DigitalTarget/a.peakMemory)

		a.scannedSamples += len(samples)
		if a.scannedSamples >= a.scanSamplesTotal {
			a.locked = true
			a.currentGain = DigitalTarget / a.peakMemory
		}
		return
	}

	switch {
	case blockPeak*a.currentGain > 1.0:
		a.currentGain = softClipGain / blockPeak
		a.hangSamples = 0
	case blockPeak*a.currentGain <= 0.75*DigitalTarget:
		a.hangSamples += len(samples)
		if a.hangSamples > a.hangTimeoutSamples {
			a.currentGain *= recoveryRatePerBlock
		}
	default:
		a.hangSamples = 0
	}
	scale(samples, a.currentGain)
}

func (a *digital) Reset() {
	a.peakMemory = peakMemorySeed
	a.locked = false
	a.scannedSamples = 0
	a.currentGain = 0
	a.hangSamples = 0
}

func scale(samples []complex64, gain float64) {
	g := complex(gain, 0)
	for i, v := range samples {
		samples[i] = complex64(complex128(v) * g)
	}
}
