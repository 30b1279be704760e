// Package nco implements a numerically-controlled oscillator: a persistent
// complex-exponential generator used for frequency shifting (spec.md §4.5
// step 4, §4.7 step 2).
package nco

import "math"

// Oscillator generates e^(j*2*pi*shiftHz*n/sampleRateHz), advancing its
// phase accumulator by one step per sample. Only phase is reset on a
// stream discontinuity — frequency is a configuration constant for the
// lifetime of a stage (spec.md §4.5: "Phase (not frequency) is reset on
// discontinuity").
type Oscillator struct {
	stepRad float64
	phase   float64
}

// New builds an Oscillator shifting by shiftHz against sampleRateHz.
func New(shiftHz, sampleRateHz float64) *Oscillator {
	return &Oscillator{stepRad: 2 * math.Pi * shiftHz / sampleRateHz}
}

// Process multiplies samples in-place by the running complex exponential.
func (o *Oscillator) Process(samples []complex64) {
	for n, x := range samples {
		s, c := math.Sincos(o.phase)
		rot := complex64(complex(c, s))
		samples[n] = x * rot
		o.phase += o.stepRad
		if o.phase > math.Pi {
			o.phase -= 2 * math.Pi
		} else if o.phase < -math.Pi {
			o.phase += 2 * math.Pi
		}
	}
}

// ResetPhase zeroes the phase accumulator, per the discontinuity protocol.
func (o *Oscillator) ResetPhase() {
	o.phase = 0
}
