// Package sampleformat implements the fifteen-entry sample format catalogue
// (spec.md §6.3): the wire layouts a driver or container writer may produce
// or consume, and the lossless-within-representation conversions to and from
// the pipeline's internal complex64 representation.
package sampleformat

import "fmt"

// Format identifies one entry of the catalogue. The zero value is invalid.
type Format uint8

const (
	Invalid Format = iota

	U8
	S8
	CU8
	CS8

	U16
	S16
	CU16
	CS16

	U32
	S32
	CU32
	CS32

	F32
	CF32

	SC16Q11
)

// Complex reports whether the format interleaves I and Q components. Real
// formats (U8, S8, ...) carry a single real-valued stream, sample-paired for
// chunk-sizing purposes but with Q implicitly zero.
func (f Format) Complex() bool {
	switch f {
	case CU8, CS8, CU16, CS16, CU32, CS32, CF32, SC16Q11:
		return true
	default:
		return false
	}
}

// BytesPerComponent is the on-wire width of a single I or Q (or real)
// component, in bytes.
func (f Format) BytesPerComponent() int {
	switch f {
	case U8, S8, CU8, CS8:
		return 1
	case U16, S16, CU16, CS16, SC16Q11:
		return 2
	case U32, S32, CU32, CS32, F32, CF32:
		return 4
	default:
		return 0
	}
}

// BytesPerSamplePair is the number of bytes one "sample pair" occupies on
// the wire: for complex formats that is I+Q interleaved; for real formats it
// is just the one component, but the pipeline still treats it as a sample
// pair for chunk-sizing uniformity (Q reads as zero).
func (f Format) BytesPerSamplePair() int {
	n := f.BytesPerComponent()
	if f.Complex() {
		return n * 2
	}
	return n
}

func (f Format) String() string {
	switch f {
	case U8:
		return "u8"
	case S8:
		return "s8"
	case CU8:
		return "cu8"
	case CS8:
		return "cs8"
	case U16:
		return "u16"
	case S16:
		return "s16"
	case CU16:
		return "cu16"
	case CS16:
		return "cs16"
	case U32:
		return "u32"
	case S32:
		return "s32"
	case CU32:
		return "cu32"
	case CS32:
		return "cs32"
	case F32:
		return "f32"
	case CF32:
		return "cf32"
	case SC16Q11:
		return "sc16q11"
	default:
		return "invalid"
	}
}

// Parse resolves the catalogue's canonical lowercase tag (as accepted by
// CLI flags and preset files) to a Format.
func Parse(tag string) (Format, error) {
	for f := U8; f <= SC16Q11; f++ {
		if f.String() == tag {
			return f, nil
		}
	}
	return Invalid, fmt.Errorf("sampleformat: unknown format tag %q", tag)
}

// MaxBytesPerSamplePair returns the maximum BytesPerSamplePair across the
// catalogue; chunk.DefaultSizing uses it as the conservative RawInput ceiling.
func MaxBytesPerSamplePair() int {
	max := 0
	for f := U8; f <= SC16Q11; f++ {
		if n := f.BytesPerSamplePair(); n > max {
			max = n
		}
	}
	return max
}
