package filter

import "gonum.org/v1/gonum/dsp/fourier"

// FFTFilter is the overlap-save engine used for an asymmetric (complex-tap)
// combined filter, or for any filter the user forces onto the `fft` path
// (spec.md §4.9 "Overlap-save"). gonum's dsp/fourier package supplies the
// FFT itself; the overlap bookkeeping is ours.
type FFTFilter struct {
	taps       []complex64
	tapsLen    int
	fftSize    int
	validLen   int // samples of real output per fftSize-length transform
	filterFreq []complex128
	remainder  []complex64
	fft        *fourier.CmplxFFT
}

// NewFFTFilter builds an overlap-save engine from a complex tap slice.
// Real-tap chains are promoted to complex taps by NewEngine before it
// calls this.
func NewFFTFilter(taps []complex64, nominalBlockSize int) *FFTFilter {
	tapsLen := len(taps)
	fftSize := nextPow2(nominalBlockSize + tapsLen - 1)
	validLen := fftSize - (tapsLen - 1)

	padded := make([]complex128, fftSize)
	for i, t := range taps {
		padded[i] = complex128(t)
	}

	fft := fourier.NewCmplxFFT(fftSize)
	filterFreq := fft.Coefficients(nil, padded)

	return &FFTFilter{
		taps:       taps,
		tapsLen:    tapsLen,
		fftSize:    fftSize,
		validLen:   validLen,
		filterFreq: filterFreq,
		remainder:  make([]complex64, tapsLen-1),
		fft:        fft,
	}
}

// Process runs overlap-save filtering: the persistent remainder is
// concatenated with the new block, complete fftSize-length windows are
// transformed, multiplied, and inverse-transformed, and the trailing
// unconsumed samples become the new remainder (spec.md §4.9).
func (f *FFTFilter) Process(in []complex64) []complex64 {
	combined := make([]complex64, len(f.remainder)+len(in))
	copy(combined, f.remainder)
	copy(combined[len(f.remainder):], in)

	var out []complex64
	pos := 0
	for pos+f.fftSize <= len(combined) {
		window := combined[pos : pos+f.fftSize]
		padded := make([]complex128, f.fftSize)
		for i, v := range window {
			padded[i] = complex128(v)
		}

		spectrum := f.fft.Coefficients(nil, padded)
		for i := range spectrum {
			spectrum[i] *= f.filterFreq[i]
		}

		timeDomain := f.fft.Sequence(nil, spectrum)
		valid := timeDomain[f.tapsLen-1:]
		for _, v := range valid {
			out = append(out, complex64(v))
		}
		pos += f.validLen
	}

	f.remainder = append([]complex64(nil), combined[pos:]...)
	return out
}

// Reset clears the persistent remainder on a stream discontinuity
// (spec.md §4.9 "Reset on discontinuity").
func (f *FFTFilter) Reset() {
	f.remainder = make([]complex64, f.tapsLen-1)
}
