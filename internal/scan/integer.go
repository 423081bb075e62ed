package scan

import "github.com/xyproto/swathscan/internal/value"

// intWidthOps bundles everything an integer routine needs to know about
// one width (8/16/32/64 bits): its flag pair, how to read a mem/old
// Value at that width, how to read a UserValue at that width, and how to
// produce a byte-swapped copy of a Value for the _REVENDIAN routines.
// Instantiating this struct once per width replaces the original's
// per-width macro expansion.
type intWidthOps struct {
	bytes int
	flagS value.Flags
	flagU value.Flags
	getS  func(v *value.Value) int64
	getU  func(v *value.Value) uint64
	uvS   func(u *value.UserValue) int64
	uvU   func(u *value.UserValue) uint64
	swap  func(v value.Value) value.Value

	// truncS/truncU fold an int64/uint64 sum back down to this width's
	// native range, so INCREASEDBY/DECREASEDBY wraps at the same boundary
	// the original's fixed-width C arithmetic would, rather than at 64
	// bits regardless of the scanned width.
	truncS func(x int64) int64
	truncU func(x uint64) uint64
}

func noSwap(v value.Value) value.Value { return v }

func swap16(v value.Value) value.Value {
	v.Bytes[0], v.Bytes[1] = v.Bytes[1], v.Bytes[0]
	return v
}

func swap32(v value.Value) value.Value {
	v.Bytes[0], v.Bytes[1], v.Bytes[2], v.Bytes[3] = v.Bytes[3], v.Bytes[2], v.Bytes[1], v.Bytes[0]
	return v
}

func swap64(v value.Value) value.Value {
	for i, j := 0, 7; i < j; i, j = i+1, j-1 {
		v.Bytes[i], v.Bytes[j] = v.Bytes[j], v.Bytes[i]
	}
	return v
}

var width8 = intWidthOps{
	bytes: 1, flagS: value.FlagS8b, flagU: value.FlagU8b,
	getS:   func(v *value.Value) int64 { return int64(v.S8()) },
	getU:   func(v *value.Value) uint64 { return uint64(v.U8()) },
	uvS:    func(u *value.UserValue) int64 { return int64(u.S8()) },
	uvU:    func(u *value.UserValue) uint64 { return uint64(u.U8()) },
	swap:   noSwap,
	truncS: func(x int64) int64 { return int64(int8(x)) },
	truncU: func(x uint64) uint64 { return uint64(uint8(x)) },
}

var width16 = intWidthOps{
	bytes: 2, flagS: value.FlagS16b, flagU: value.FlagU16b,
	getS:   func(v *value.Value) int64 { return int64(v.S16()) },
	getU:   func(v *value.Value) uint64 { return uint64(v.U16()) },
	uvS:    func(u *value.UserValue) int64 { return int64(u.S16()) },
	uvU:    func(u *value.UserValue) uint64 { return uint64(u.U16()) },
	swap:   swap16,
	truncS: func(x int64) int64 { return int64(int16(x)) },
	truncU: func(x uint64) uint64 { return uint64(uint16(x)) },
}

var width32 = intWidthOps{
	bytes: 4, flagS: value.FlagS32b, flagU: value.FlagU32b,
	getS:   func(v *value.Value) int64 { return int64(v.S32()) },
	getU:   func(v *value.Value) uint64 { return uint64(v.U32()) },
	uvS:    func(u *value.UserValue) int64 { return int64(u.S32()) },
	uvU:    func(u *value.UserValue) uint64 { return uint64(u.U32()) },
	swap:   swap32,
	truncS: func(x int64) int64 { return int64(int32(x)) },
	truncU: func(x uint64) uint64 { return uint64(uint32(x)) },
}

var width64 = intWidthOps{
	bytes: 8, flagS: value.FlagS64b, flagU: value.FlagU64b,
	getS:   func(v *value.Value) int64 { return v.S64() },
	getU:   func(v *value.Value) uint64 { return v.U64() },
	uvS:    func(u *value.UserValue) int64 { return u.S64() },
	uvU:    func(u *value.UserValue) uint64 { return u.U64() },
	swap:   swap64,
	truncS: func(x int64) int64 { return x },
	truncU: func(x uint64) uint64 { return x },
}

type intOps struct {
	s func(a, b int64) bool
	u func(a, b uint64) bool
}

func intOpFor(mt MatchType) intOps {
	switch mt {
	case MatchEqualTo, MatchNotChanged:
		return intOps{s: func(a, b int64) bool { return a == b }, u: func(a, b uint64) bool { return a == b }}
	case MatchNotEqualTo, MatchChanged:
		return intOps{s: func(a, b int64) bool { return a != b }, u: func(a, b uint64) bool { return a != b }}
	case MatchGreaterThan, MatchIncreased:
		return intOps{s: func(a, b int64) bool { return a > b }, u: func(a, b uint64) bool { return a > b }}
	case MatchLessThan, MatchDecreased:
		return intOps{s: func(a, b int64) bool { return a < b }, u: func(a, b uint64) bool { return a < b }}
	}
	return intOps{s: func(int64, int64) bool { return false }, u: func(uint64, uint64) bool { return false }}
}

// intRoutine builds the Routine for one (width, match type) pair. Only
// EQUALTO/NOTEQUALTO/GREATERTHAN/LESSTHAN/RANGE apply the reverse
// endianness byte-swap, matching DEFINE_INTEGER_ROUTINE_FOR_ALL_INTEGER_
// TYPES_AND_ENDIANS in the original; CHANGED/NOTCHANGED/INCREASED/
// DECREASED compare against the old in-process value, which was already
// decoded in native order, so they never swap.
func intRoutine(w intWidthOps, mt MatchType, reverseEndianness bool) Routine {
	switch mt {
	case MatchAny:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes {
				return 0
			}
			*save |= w.flagS | w.flagU
			return w.bytes
		}

	case MatchUpdate:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil {
				return 0
			}
			ret := 0
			if old.Flags.Has(w.flagS) {
				ret = w.bytes
				*save |= w.flagS
			}
			if old.Flags.Has(w.flagU) {
				ret = w.bytes
				*save |= w.flagU
			}
			return ret
		}

	case MatchEqualTo, MatchNotEqualTo, MatchGreaterThan, MatchLessThan:
		op := intOpFor(mt)
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || uv == nil {
				return 0
			}
			m := *mem
			if reverseEndianness {
				m = w.swap(m)
			}
			ret := 0
			if uv.Flags.Has(w.flagS) && op.s(w.getS(&m), w.uvS(uv)) {
				ret = w.bytes
				*save |= w.flagS
			}
			if uv.Flags.Has(w.flagU) && op.u(w.getU(&m), w.uvU(uv)) {
				ret = w.bytes
				*save |= w.flagU
			}
			return ret
		}

	case MatchNotChanged, MatchChanged, MatchIncreased, MatchDecreased:
		op := intOpFor(mt)
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil {
				return 0
			}
			ret := 0
			if old.Flags.Has(w.flagS) && op.s(w.getS(mem), w.getS(old)) {
				ret = w.bytes
				*save |= w.flagS
			}
			if old.Flags.Has(w.flagU) && op.u(w.getU(mem), w.getU(old)) {
				ret = w.bytes
				*save |= w.flagU
			}
			return ret
		}

	case MatchIncreasedBy, MatchDecreasedBy:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil || uv == nil {
				return 0
			}
			ret := 0
			if old.Flags.Has(w.flagS) && uv.Flags.Has(w.flagS) {
				want := w.truncS(w.getS(old) + signedDelta(mt, w.uvS(uv)))
				if w.getS(mem) == want {
					ret = w.bytes
					*save |= w.flagS
				}
			}
			if old.Flags.Has(w.flagU) && uv.Flags.Has(w.flagU) {
				var want uint64
				if mt == MatchIncreasedBy {
					want = w.truncU(w.getU(old) + w.uvU(uv))
				} else {
					want = w.truncU(w.getU(old) - w.uvU(uv))
				}
				if w.getU(mem) == want {
					ret = w.bytes
					*save |= w.flagU
				}
			}
			return ret
		}

	case MatchRange:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || rng == nil {
				return 0
			}
			m := *mem
			if reverseEndianness {
				m = w.swap(m)
			}
			ret := 0
			if rng.Low.Flags.Has(w.flagS) {
				got := w.getS(&m)
				if got >= w.uvS(&rng.Low) && got <= w.uvS(&rng.High) {
					ret = w.bytes
					*save |= w.flagS
				}
			}
			if rng.Low.Flags.Has(w.flagU) {
				got := w.getU(&m)
				if got >= w.uvU(&rng.Low) && got <= w.uvU(&rng.High) {
					ret = w.bytes
					*save |= w.flagU
				}
			}
			return ret
		}
	}

	return func(*value.Value, []byte, *value.Value, *value.UserValue, *value.Range, *value.Flags) int { return 0 }
}

// signedDelta returns INCREASEDBY's "+delta" or DECREASEDBY's "-delta";
// the caller adds it to the signed old value and truncS folds the sum back
// to the scanned width, so overflow/underflow wraps silently at that
// width like the C comparison it mirrors (no overflow check, no
// saturation); see DESIGN.md for the documented choice on
// INCREASEDBY/DECREASEDBY overflow semantics.
func signedDelta(mt MatchType, delta int64) int64 {
	if mt == MatchDecreasedBy {
		return -delta
	}
	return delta
}
