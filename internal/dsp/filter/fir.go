package filter

// FIR is the time-domain direct-form engine used for a symmetric combined
// filter (spec.md §4.9 "Implementation choice"). It carries a persistent
// history of the last len(taps)-1 samples across Process calls so filtering
// is continuous across chunk boundaries, and supports both a real tap set
// (the common case) and a complex one (reached only when the user forces
// `fir` on an asymmetric filter).
type FIR struct {
	realTaps    []float32
	complexTaps []complex64
	complex     bool
	history     []complex64
}

// NewFIR builds a FIR engine from a designed Chain.
func NewFIR(c *Chain) *FIR {
	f := &FIR{complex: c.Complex}
	var tapsLen int
	if c.Complex {
		f.complexTaps = c.ComplexTaps
		tapsLen = len(c.ComplexTaps)
	} else {
		f.realTaps = c.RealTaps
		tapsLen = len(c.RealTaps)
	}
	f.history = make([]complex64, tapsLen-1)
	return f
}

// Process filters in in-place-equivalent fashion, returning a freshly
// allocated output of the same length as in.
func (f *FIR) Process(in []complex64) []complex64 {
	tapsLen := f.tapsLen()
	combined := make([]complex64, len(f.history)+len(in))
	copy(combined, f.history)
	copy(combined[len(f.history):], in)

	out := make([]complex64, len(in))
	for i := range in {
		var acc complex64
		// combined[i : i+tapsLen] is the causal window ending at output i;
		// taps[0] multiplies the newest sample.
		window := combined[i : i+tapsLen]
		if f.complex {
			for k := 0; k < tapsLen; k++ {
				acc += f.complexTaps[k] * window[tapsLen-1-k]
			}
		} else {
			for k := 0; k < tapsLen; k++ {
				acc += complex64(complex(f.realTaps[k], 0)) * window[tapsLen-1-k]
			}
		}
		out[i] = acc
	}

	if len(combined) >= len(f.history) {
		f.history = append([]complex64(nil), combined[len(combined)-len(f.history):]...)
	}
	return out
}

// Reset clears the persistent history, per the discontinuity protocol
// (spec.md §4.9 "Reset on discontinuity" — stated for overlap-save, applied
// identically here since both engines carry state across chunk boundaries).
func (f *FIR) Reset() {
	for i := range f.history {
		f.history[i] = 0
	}
}

func (f *FIR) tapsLen() int {
	if f.complex {
		return len(f.complexTaps)
	}
	return len(f.realTaps)
}
