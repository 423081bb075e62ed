// Package value implements the tagged value model used throughout the
// match engine: an 8-byte payload plus a bitset of the primitive types
// that payload could still legally represent.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Flags is a bitset of primitive-type possibility bits. For variable-length
// types (bytearray, string) the same 16 bits are reinterpreted as a byte
// length instead of a type bitset; that reinterpretation only happens in
// the scan routines and uservalue, never here.
type Flags uint16

const (
	FlagU8b Flags = 1 << iota
	FlagS8b
	FlagU16b
	FlagS16b
	FlagU32b
	FlagS32b
	FlagU64b
	FlagS64b
	FlagF32b
	FlagF64b

	FlagsEmpty Flags = 0

	FlagsI8b  = FlagU8b | FlagS8b
	FlagsI16b = FlagU16b | FlagS16b
	FlagsI32b = FlagU32b | FlagS32b
	FlagsI64b = FlagU64b | FlagS64b

	FlagsInteger = FlagsI8b | FlagsI16b | FlagsI32b | FlagsI64b
	FlagsFloat   = FlagF32b | FlagF64b
	FlagsAll     = FlagsInteger | FlagsFloat

	Flags8b  = FlagsI8b
	Flags16b = FlagsI16b
	Flags32b = FlagsI32b | FlagF32b
	Flags64b = FlagsI64b | FlagF64b
)

// Has reports whether every bit in want is set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Any reports whether f shares any bit with want.
func (f Flags) Any(want Flags) bool { return f&want != 0 }

// Value is an 8-byte payload together with the set of primitive
// interpretations that are still possible for it. It plays two roles in
// the engine: as the reconstructed old value of a candidate match, and as
// the projection of a user-supplied literal used for comparison.
type Value struct {
	Bytes [8]byte
	Flags Flags
}

// Zero clears the payload and flags in place, mirroring zero_value().
func (v *Value) Zero() {
	v.Bytes = [8]byte{}
	v.Flags = FlagsEmpty
}

// unaligned accessors. A Value's payload is read through these helpers
// rather than by reinterpreting v.Bytes directly so the same code works
// whether the underlying 8 bytes came from an aligned Go value or an
// unaligned cross-process read assembled byte by byte.

func (v *Value) U8() uint8    { return v.Bytes[0] }
func (v *Value) S8() int8     { return int8(v.Bytes[0]) }
func (v *Value) U16() uint16  { return leU16(v.Bytes[:2]) }
func (v *Value) S16() int16   { return int16(leU16(v.Bytes[:2])) }
func (v *Value) U32() uint32  { return leU32(v.Bytes[:4]) }
func (v *Value) S32() int32   { return int32(leU32(v.Bytes[:4])) }
func (v *Value) U64() uint64  { return leU64(v.Bytes[:8]) }
func (v *Value) S64() int64   { return int64(leU64(v.Bytes[:8])) }
func (v *Value) F32() float32 { return math.Float32frombits(leU32(v.Bytes[:4])) }
func (v *Value) F64() float64 { return math.Float64frombits(leU64(v.Bytes[:8])) }

func (v *Value) SetU8(x uint8)    { v.Bytes[0] = x }
func (v *Value) SetS8(x int8)     { v.Bytes[0] = byte(x) }
func (v *Value) SetU16(x uint16)  { putLeU16(v.Bytes[:2], x) }
func (v *Value) SetS16(x int16)   { putLeU16(v.Bytes[:2], uint16(x)) }
func (v *Value) SetU32(x uint32)  { putLeU32(v.Bytes[:4], x) }
func (v *Value) SetS32(x int32)   { putLeU32(v.Bytes[:4], uint32(x)) }
func (v *Value) SetU64(x uint64)  { putLeU64(v.Bytes[:8], x) }
func (v *Value) SetS64(x int64)   { putLeU64(v.Bytes[:8], uint64(x)) }
func (v *Value) SetF32(x float32) { putLeU32(v.Bytes[:4], math.Float32bits(x)) }
func (v *Value) SetF64(x float64) { putLeU64(v.Bytes[:8], math.Float64bits(x)) }

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leU64(b []byte) uint64 {
	return uint64(leU32(b[:4])) | uint64(leU32(b[4:8]))<<32
}
func putLeU16(b []byte, x uint16) { b[0] = byte(x); b[1] = byte(x >> 8) }
func putLeU32(b []byte, x uint32) {
	b[0] = byte(x)
	b[1] = byte(x >> 8)
	b[2] = byte(x >> 16)
	b[3] = byte(x >> 24)
}
func putLeU64(b []byte, x uint64) {
	putLeU32(b[:4], uint32(x))
	putLeU32(b[4:8], uint32(x>>32))
}

// Copy performs an in-place flag-preserving copy, mirroring valcpy().
func Copy(dst *Value, src *Value) { *dst = *src }

// UserValue is an operand supplied by the user: a literal parsed into
// every primitive interpretation it admits, or a bytearray/string pattern.
type UserValue struct {
	// scalar fields, one per primitive width/signedness
	u8  uint8
	s8  int8
	u16 uint16
	s16 int16
	u32 uint32
	s32 int32
	u64 uint64
	s64 int64
	f32 float32
	f64 float64

	// variable-length fields: for bytearray scans ByteArray holds the
	// literal bytes and Wildcard holds a parallel 0xFF (fixed) / 0x00
	// (wildcard) mask of the same length; string scans use String instead.
	ByteArray []byte
	Wildcard  []byte
	String    string

	// Flags holds the primitive type bitset for scalar user values. For
	// bytearray user values this field instead holds the pattern length,
	// which is valid because the aggregate ordering of the flag bits lets
	// the length occupy the same 16-bit field (see spec.md §3).
	Flags Flags
}

// Length returns the pattern length of a bytearray user value, reading
// Flags as a length rather than a type bitset.
func (u *UserValue) Length() int { return int(u.Flags) }

// Range holds the two bounds of a RANGE scan; element 0 is the low bound,
// element 1 is the high bound, sharing the flag bits of a single UserValue
// per spec.md §4.5.
type Range struct {
	Low, High UserValue
}

// ToValue projects a user value into a Value, mirroring uservalue2value().
// dst.Flags must already be set and is left unchanged; the payload is
// zeroed and then written for one interpretation only, the first flag
// present in the order F64, U64, S64, F32, U32, S32, U16, S16, U8, S8.
func ToValue(dst *Value, src *UserValue) {
	dst.Bytes = [8]byte{}
	switch {
	case dst.Flags.Has(FlagF64b):
		dst.SetF64(src.f64)
	case dst.Flags.Has(FlagU64b):
		dst.SetU64(src.u64)
	case dst.Flags.Has(FlagS64b):
		dst.SetS64(src.s64)
	case dst.Flags.Has(FlagF32b):
		dst.SetF32(src.f32)
	case dst.Flags.Has(FlagU32b):
		dst.SetU32(src.u32)
	case dst.Flags.Has(FlagS32b):
		dst.SetS32(src.s32)
	case dst.Flags.Has(FlagU16b):
		dst.SetU16(src.u16)
	case dst.Flags.Has(FlagS16b):
		dst.SetS16(src.s16)
	case dst.Flags.Has(FlagU8b):
		dst.SetU8(src.u8)
	case dst.Flags.Has(FlagS8b):
		dst.SetS8(src.s8)
	default:
		panic("value: ToValue called with no flags set")
	}
}

// widestFlag picks the single widest interpretation carried by flags,
// preferring wider over narrower and unsigned over signed among the
// integers, and falling back to F64 then F32 only when no integer flag is
// set, matching valtostr's preference order.
func widestFlag(f Flags) Flags {
	switch {
	case f.Has(FlagU64b):
		return FlagU64b
	case f.Has(FlagS64b):
		return FlagS64b
	case f.Has(FlagU32b):
		return FlagU32b
	case f.Has(FlagS32b):
		return FlagS32b
	case f.Has(FlagU16b):
		return FlagU16b
	case f.Has(FlagS16b):
		return FlagS16b
	case f.Has(FlagU8b):
		return FlagU8b
	case f.Has(FlagS8b):
		return FlagS8b
	case f.Has(FlagF64b):
		return FlagF64b
	case f.Has(FlagF32b):
		return FlagF32b
	default:
		return FlagsEmpty
	}
}

// String renders val using the widest set flag to choose the format,
// followed by a bracketed list of every type still possible, mirroring
// valtostr(). "unknown, [unknown]" is returned when no flag is set.
func (v *Value) String() string {
	if v.Flags == FlagsEmpty {
		return "unknown, [unknown]"
	}

	var b strings.Builder
	tags := strings.Builder{}
	writeTo := func(w *strings.Builder, bytes int, name string) {
		u, s := flagPairFor(bytes)
		switch {
		case v.Flags.Has(u) && v.Flags.Has(s):
			w.WriteString(name + " ")
		case v.Flags.Has(u):
			w.WriteString(name + "u ")
		case v.Flags.Has(s):
			w.WriteString(name + "s ")
		}
	}
	writeTo(&tags, 64, "I64")
	writeTo(&tags, 32, "I32")
	writeTo(&tags, 16, "I16")
	writeTo(&tags, 8, "I8")
	if v.Flags.Has(FlagF64b) {
		tags.WriteString("F64 ")
	}
	if v.Flags.Has(FlagF32b) {
		tags.WriteString("F32 ")
	}
	bracket := "[" + strings.TrimSpace(tags.String()) + "]"

	switch widestFlag(v.Flags) {
	case FlagU64b:
		fmt.Fprintf(&b, "%d, %s", v.U64(), bracket)
	case FlagS64b:
		fmt.Fprintf(&b, "%d, %s", v.S64(), bracket)
	case FlagU32b:
		fmt.Fprintf(&b, "%d, %s", v.U32(), bracket)
	case FlagS32b:
		fmt.Fprintf(&b, "%d, %s", v.S32(), bracket)
	case FlagU16b:
		fmt.Fprintf(&b, "%d, %s", v.U16(), bracket)
	case FlagS16b:
		fmt.Fprintf(&b, "%d, %s", v.S16(), bracket)
	case FlagU8b:
		fmt.Fprintf(&b, "%d, %s", v.U8(), bracket)
	case FlagS8b:
		fmt.Fprintf(&b, "%d, %s", v.S8(), bracket)
	case FlagF64b:
		fmt.Fprintf(&b, "%g, %s", v.F64(), bracket)
	case FlagF32b:
		fmt.Fprintf(&b, "%g, %s", v.F32(), bracket)
	default:
		return "unknown, [unknown]"
	}
	return b.String()
}

func flagPairFor(bytes int) (u, s Flags) {
	switch bytes {
	case 8:
		return FlagU8b, FlagS8b
	case 16:
		return FlagU16b, FlagS16b
	case 32:
		return FlagU32b, FlagS32b
	case 64:
		return FlagU64b, FlagS64b
	}
	return 0, 0
}

// ParseInt parses s as both signed and unsigned 64-bit, setting the union
// of width flags for every width into which the parsed magnitude fits,
// mirroring parse_uservalue_int().
func ParseInt(s string) (UserValue, bool) {
	var uv UserValue
	trimmed := strings.TrimSpace(s)

	snum, serr := strconv.ParseInt(trimmed, 0, 64)
	validSint := serr == nil

	validUint := len(trimmed) > 0 && trimmed[0] != '-'
	var unum uint64
	if validUint {
		var uerr error
		unum, uerr = strconv.ParseUint(trimmed, 0, 64)
		validUint = uerr == nil
	}

	if !validSint && !validUint {
		return UserValue{}, false
	}

	if validUint && unum <= math.MaxUint8 {
		uv.Flags |= FlagU8b
		uv.u8 = uint8(unum)
	}
	if validSint && snum >= math.MinInt8 && snum <= math.MaxInt8 {
		uv.Flags |= FlagS8b
		uv.s8 = int8(snum)
	}
	if validUint && unum <= math.MaxUint16 {
		uv.Flags |= FlagU16b
		uv.u16 = uint16(unum)
	}
	if validSint && snum >= math.MinInt16 && snum <= math.MaxInt16 {
		uv.Flags |= FlagS16b
		uv.s16 = int16(snum)
	}
	if validUint && unum <= math.MaxUint32 {
		uv.Flags |= FlagU32b
		uv.u32 = uint32(unum)
	}
	if validSint && snum >= math.MinInt32 && snum <= math.MaxInt32 {
		uv.Flags |= FlagS32b
		uv.s32 = int32(snum)
	}
	if validUint {
		uv.Flags |= FlagU64b
		uv.u64 = unum
	}
	if validSint {
		uv.Flags |= FlagS64b
		uv.s64 = snum
	}

	return uv, true
}

// ParseFloat parses s as f64, setting flag_f32b|flag_f64b, mirroring
// parse_uservalue_float().
func ParseFloat(s string) (UserValue, bool) {
	var uv UserValue
	num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return UserValue{}, false
	}
	uv.Flags |= FlagsFloat
	uv.f32 = float32(num)
	uv.f64 = num
	return uv, true
}

// ParseNumber first tries ParseInt; on success it also fills in both float
// fields by casting. Otherwise it tries ParseFloat and additionally sets
// every integer-width flag whose range contains the truncated value,
// mirroring parse_uservalue_number().
func ParseNumber(s string) (UserValue, bool) {
	if uv, ok := ParseInt(s); ok {
		uv.Flags |= FlagsFloat
		if uv.Flags.Has(FlagS64b) {
			uv.f32 = float32(uv.s64)
			uv.f64 = float64(uv.s64)
		} else {
			uv.f32 = float32(uv.u64)
			uv.f64 = float64(uv.u64)
		}
		return uv, true
	}

	if uv, ok := ParseFloat(s); ok {
		num := uv.f64
		if num >= 0 && num <= math.MaxUint8 {
			uv.Flags |= FlagU8b
			uv.u8 = uint8(num)
		}
		if num >= math.MinInt8 && num <= math.MaxInt8 {
			uv.Flags |= FlagS8b
			uv.s8 = int8(num)
		}
		if num >= 0 && num <= math.MaxUint16 {
			uv.Flags |= FlagU16b
			uv.u16 = uint16(num)
		}
		if num >= math.MinInt16 && num <= math.MaxInt16 {
			uv.Flags |= FlagS16b
			uv.s16 = int16(num)
		}
		if num >= 0 && num <= math.MaxUint32 {
			uv.Flags |= FlagU32b
			uv.u32 = uint32(num)
		}
		if num >= math.MinInt32 && num <= math.MaxInt32 {
			uv.Flags |= FlagS32b
			uv.s32 = int32(num)
		}
		if num >= 0 && num <= math.MaxUint64 {
			uv.Flags |= FlagU64b
			uv.u64 = uint64(num)
		}
		if num >= math.MinInt64 && num <= math.MaxInt64 {
			uv.Flags |= FlagS64b
			uv.s64 = int64(num)
		}
		return uv, true
	}

	return UserValue{}, false
}

// ParseByteArray parses argv tokens, each either two hex digits or "??",
// into a byte array and a parallel wildcard mask, mirroring
// parse_uservalue_bytearray(). The parsed length is stashed in Flags.
func ParseByteArray(argv []string) (UserValue, bool) {
	if len(argv) == 0 || len(argv) > math.MaxUint16 {
		return UserValue{}, false
	}
	bytes := make([]byte, len(argv))
	wildcards := make([]byte, len(argv))

	for i, tok := range argv {
		if tok == "??" {
			wildcards[i] = 0x00
			bytes[i] = 0x00
			continue
		}
		if len(tok) != 2 {
			return UserValue{}, false
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return UserValue{}, false
		}
		wildcards[i] = 0xFF
		bytes[i] = byte(b)
	}

	return UserValue{ByteArray: bytes, Wildcard: wildcards, Flags: Flags(len(argv))}, true
}

// Getters used by scan routines to read a specific interpretation out of a
// UserValue operand.
func (u *UserValue) U8() uint8    { return u.u8 }
func (u *UserValue) S8() int8     { return u.s8 }
func (u *UserValue) U16() uint16  { return u.u16 }
func (u *UserValue) S16() int16   { return u.s16 }
func (u *UserValue) U32() uint32  { return u.u32 }
func (u *UserValue) S32() int32   { return u.s32 }
func (u *UserValue) U64() uint64  { return u.u64 }
func (u *UserValue) S64() int64   { return u.s64 }
func (u *UserValue) F32() float32 { return u.f32 }
func (u *UserValue) F64() float64 { return u.f64 }
