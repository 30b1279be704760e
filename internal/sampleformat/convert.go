package sampleformat

import (
	"encoding/binary"
	"math"
)

// Decoder converts one interleaved sample-pair's worth of wire bytes into a
// complex64. Real formats populate the imaginary part with zero.
type Decoder func(b []byte) complex64

// Encoder converts a complex64 into its wire bytes for this format,
// saturating to the representable range and rounding to nearest with
// ties-away-from-zero ("symmetric rounding", spec.md §6.3).
type Encoder func(x complex64, dst []byte)

// DecoderFor returns the conversion function for the given format. It panics
// for Invalid, which a caller should have already rejected during
// configuration validation.
func DecoderFor(f Format) Decoder {
	switch f {
	case U8:
		return func(b []byte) complex64 { return complex(u8ToF32(b[0]), 0) }
	case CU8:
		return func(b []byte) complex64 { return complex(u8ToF32(b[0]), u8ToF32(b[1])) }
	case S8:
		return func(b []byte) complex64 { return complex(s8ToF32(b[0]), 0) }
	case CS8:
		return func(b []byte) complex64 { return complex(s8ToF32(b[0]), s8ToF32(b[1])) }
	case U16:
		return func(b []byte) complex64 { return complex(u16ToF32(b[0:2]), 0) }
	case CU16:
		return func(b []byte) complex64 { return complex(u16ToF32(b[0:2]), u16ToF32(b[2:4])) }
	case S16:
		return func(b []byte) complex64 { return complex(s16ToF32(b[0:2]), 0) }
	case CS16:
		return func(b []byte) complex64 { return complex(s16ToF32(b[0:2]), s16ToF32(b[2:4])) }
	case U32:
		return func(b []byte) complex64 { return complex(u32ToF32(b[0:4]), 0) }
	case CU32:
		return func(b []byte) complex64 { return complex(u32ToF32(b[0:4]), u32ToF32(b[4:8])) }
	case S32:
		return func(b []byte) complex64 { return complex(s32ToF32(b[0:4]), 0) }
	case CS32:
		return func(b []byte) complex64 { return complex(s32ToF32(b[0:4]), s32ToF32(b[4:8])) }
	case F32:
		return func(b []byte) complex64 { return complex(f32le(b[0:4]), 0) }
	case CF32:
		return func(b []byte) complex64 { return complex(f32le(b[0:4]), f32le(b[4:8])) }
	case SC16Q11:
		return func(b []byte) complex64 { return complex(q11ToF32(b[0:2]), q11ToF32(b[2:4])) }
	default:
		panic("sampleformat: DecoderFor(Invalid)")
	}
}

// EncoderFor returns the reverse conversion function for the given format.
func EncoderFor(f Format) Encoder {
	switch f {
	case U8:
		return func(x complex64, dst []byte) { dst[0] = f32ToU8(real(x)) }
	case CU8:
		return func(x complex64, dst []byte) { dst[0] = f32ToU8(real(x)); dst[1] = f32ToU8(imag(x)) }
	case S8:
		return func(x complex64, dst []byte) { dst[0] = f32ToS8(real(x)) }
	case CS8:
		return func(x complex64, dst []byte) { dst[0] = f32ToS8(real(x)); dst[1] = f32ToS8(imag(x)) }
	case U16:
		return func(x complex64, dst []byte) { f32ToU16(real(x), dst[0:2]) }
	case CU16:
		return func(x complex64, dst []byte) { f32ToU16(real(x), dst[0:2]); f32ToU16(imag(x), dst[2:4]) }
	case S16:
		return func(x complex64, dst []byte) { f32ToS16(real(x), dst[0:2]) }
	case CS16:
		return func(x complex64, dst []byte) { f32ToS16(real(x), dst[0:2]); f32ToS16(imag(x), dst[2:4]) }
	case U32:
		return func(x complex64, dst []byte) { f32ToU32(real(x), dst[0:4]) }
	case CU32:
		return func(x complex64, dst []byte) { f32ToU32(real(x), dst[0:4]); f32ToU32(imag(x), dst[4:8]) }
	case S32:
		return func(x complex64, dst []byte) { f32ToS32(real(x), dst[0:4]) }
	case CS32:
		return func(x complex64, dst []byte) { f32ToS32(real(x), dst[0:4]); f32ToS32(imag(x), dst[4:8]) }
	case F32:
		return func(x complex64, dst []byte) { putF32le(real(x), dst[0:4]) }
	case CF32:
		return func(x complex64, dst []byte) { putF32le(real(x), dst[0:4]); putF32le(imag(x), dst[4:8]) }
	case SC16Q11:
		return func(x complex64, dst []byte) { f32ToQ11(real(x), dst[0:2]); f32ToQ11(imag(x), dst[2:4]) }
	default:
		panic("sampleformat: EncoderFor(Invalid)")
	}
}

// round implements symmetric (round-half-away-from-zero) rounding, matching
// the saturating integer converters of spec.md §6.3.
func round(x float64) float64 {
	if x >= 0 {
		return math.Floor(x + 0.5)
	}
	return math.Ceil(x - 0.5)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func u8ToF32(b byte) float32  { return float32((float64(b) - 127.5) / 127.5) }
func s8ToF32(b byte) float32  { return float32(int8(b)) / 127.0 }
func u16ToF32(b []byte) float32 {
	return float32((float64(binary.LittleEndian.Uint16(b)) - 32767.5) / 32767.5)
}
func s16ToF32(b []byte) float32 {
	return float32(int16(binary.LittleEndian.Uint16(b))) / 32767.0
}
func u32ToF32(b []byte) float32 {
	return float32((float64(binary.LittleEndian.Uint32(b)) - 2147483647.5) / 2147483647.5)
}
func s32ToF32(b []byte) float32 {
	return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483647.0
}
func f32le(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
func q11ToF32(b []byte) float32 {
	return float32(int16(binary.LittleEndian.Uint16(b))) / 2048.0
}

func f32ToU8(x float32) byte {
	v := clamp(round(float64(x)*127.5+127.5), 0, 255)
	return byte(v)
}
func f32ToS8(x float32) byte {
	v := clamp(round(float64(x)*127.0), -128, 127)
	return byte(int8(v))
}
func f32ToU16(x float32, dst []byte) {
	v := clamp(round(float64(x)*32767.5+32767.5), 0, 65535)
	binary.LittleEndian.PutUint16(dst, uint16(v))
}
func f32ToS16(x float32, dst []byte) {
	v := clamp(round(float64(x)*32767.0), -32768, 32767)
	binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
}
func f32ToU32(x float32, dst []byte) {
	v := clamp(round(float64(x)*2147483647.5+2147483647.5), 0, 4294967295)
	binary.LittleEndian.PutUint32(dst, uint32(v))
}
func f32ToS32(x float32, dst []byte) {
	v := clamp(round(float64(x)*2147483647.0), -2147483648, 2147483647)
	binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
}
func putF32le(x float32, dst []byte) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
}
func f32ToQ11(x float32, dst []byte) {
	// Clamp to ±15.999 before scaling, per spec.md §6.3's SC16Q11 entry.
	v := clamp(float64(x), -15.999, 15.999)
	scaled := clamp(round(v*2048.0), -32768, 32767)
	binary.LittleEndian.PutUint16(dst, uint16(int16(scaled)))
}
