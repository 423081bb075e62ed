package scan

import "github.com/xyproto/swathscan/internal/value"

// floatWidthOps is intWidthOps's counterpart for the two float
// widths: a single flag (floats carry no signed/unsigned split), plus
// accessors and a byte-swap helper.
type floatWidthOps struct {
	bytes int
	flag  value.Flags
	get   func(v *value.Value) float64
	uv    func(u *value.UserValue) float64
	swap  func(v value.Value) value.Value
}

var fwidth32 = floatWidthOps{
	bytes: 4, flag: value.FlagF32b,
	get:  func(v *value.Value) float64 { return float64(v.F32()) },
	uv:   func(u *value.UserValue) float64 { return float64(u.F32()) },
	swap: swap32,
}

var fwidth64 = floatWidthOps{
	bytes: 8, flag: value.FlagF64b,
	get:  func(v *value.Value) float64 { return v.F64() },
	uv:   func(u *value.UserValue) float64 { return u.F64() },
	swap: swap64,
}

type floatOp func(a, b float64) bool

func floatOpFor(mt MatchType) floatOp {
	switch mt {
	case MatchEqualTo, MatchNotChanged:
		return func(a, b float64) bool { return a == b }
	case MatchNotEqualTo, MatchChanged:
		return func(a, b float64) bool { return a != b }
	case MatchGreaterThan, MatchIncreased:
		return func(a, b float64) bool { return a > b }
	case MatchLessThan, MatchDecreased:
		return func(a, b float64) bool { return a < b }
	}
	return func(float64, float64) bool { return false }
}

// floatRoutine mirrors intRoutine but for the float width family; the
// original's FLOAT routines tolerate a small absolute epsilon rather than
// requiring bit-for-bit equality, since scanned floating-point values are
// frequently the result of arithmetic that doesn't round-trip exactly.
func floatRoutine(w floatWidthOps, mt MatchType, reverseEndianness bool) Routine {
	const epsilon = 0.000001

	switch mt {
	case MatchAny:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}

	case MatchUpdate:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil || !old.Flags.Has(w.flag) {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}

	case MatchEqualTo, MatchNotEqualTo, MatchGreaterThan, MatchLessThan:
		op := floatOpFor(mt)
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || uv == nil || !uv.Flags.Has(w.flag) {
				return 0
			}
			m := *mem
			if reverseEndianness {
				m = w.swap(m)
			}
			got, want := w.get(&m), w.uv(uv)
			matched := false
			switch mt {
			case MatchEqualTo:
				matched = abs(got-want) < epsilon
			case MatchNotEqualTo:
				matched = abs(got-want) >= epsilon
			default:
				matched = op(got, want)
			}
			if !matched {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}

	case MatchNotChanged, MatchChanged, MatchIncreased, MatchDecreased:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil || !old.Flags.Has(w.flag) {
				return 0
			}
			got, prev := w.get(mem), w.get(old)
			var matched bool
			switch mt {
			case MatchNotChanged:
				matched = abs(got-prev) < epsilon
			case MatchChanged:
				matched = abs(got-prev) >= epsilon
			case MatchIncreased:
				matched = got > prev
			case MatchDecreased:
				matched = got < prev
			}
			if !matched {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}

	case MatchIncreasedBy, MatchDecreasedBy:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || old == nil || uv == nil ||
				!old.Flags.Has(w.flag) || !uv.Flags.Has(w.flag) {
				return 0
			}
			delta := w.uv(uv)
			if mt == MatchDecreasedBy {
				delta = -delta
			}
			want := w.get(old) + delta
			if abs(w.get(mem)-want) >= epsilon {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}

	case MatchRange:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if len(raw) < w.bytes || rng == nil || !rng.Low.Flags.Has(w.flag) {
				return 0
			}
			m := *mem
			if reverseEndianness {
				m = w.swap(m)
			}
			got := w.get(&m)
			if got < w.uv(&rng.Low) || got > w.uv(&rng.High) {
				return 0
			}
			*save |= w.flag
			return w.bytes
		}
	}

	return func(*value.Value, []byte, *value.Value, *value.UserValue, *value.Range, *value.Flags) int { return 0 }
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
