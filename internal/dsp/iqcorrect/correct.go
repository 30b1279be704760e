package iqcorrect

// Apply corrects I/Q imbalance in-place using the given factor pair
// (spec.md §4.5 step 3):
//
//	x' = re*(1+mag_adj) + j*(im + phase_adj*re)
func Apply(samples []complex64, f Factors) {
	for n, x := range samples {
		re := real(x)
		im := imag(x)
		re2 := re * (1 + f.Mag)
		im2 := im + f.Phase*re
		samples[n] = complex(re2, im2)
	}
}
