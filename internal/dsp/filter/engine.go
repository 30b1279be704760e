package filter

// Engine applies a designed Chain to a stream of complex samples, carrying
// whatever state (history or overlap remainder) its implementation needs
// across calls.
type Engine interface {
	Process(in []complex64) []complex64
	Reset()
}

// NewEngine builds the Engine named by c.Implementation. A real-tap Chain
// forced onto the fft path is promoted to complex taps first, since
// FFTFilter always works in the complex domain.
func NewEngine(c *Chain) Engine {
	if c.Implementation == "fft" {
		taps := c.ComplexTaps
		if !c.Complex {
			taps = make([]complex64, len(c.RealTaps))
			for i, v := range c.RealTaps {
				taps[i] = complex(v, 0)
			}
		}
		return NewFFTFilter(taps, c.BlockSize)
	}
	return NewFIR(c)
}
