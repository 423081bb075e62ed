package scan

import "github.com/xyproto/swathscan/internal/value"

// byteArrayRoutine returns the Routine for BYTEARRAY scans: EQUALTO does a
// wildcard-masked byte comparison of the pattern against raw, mirroring
// scan_routine_BYTEARRAY_EQUALTO; ANY/UPDATE don't look at the pattern at
// all, mirroring scan_routine_VLT_ANY/VLT_UPDATE, since a bytearray scan
// with no prior value only needs to know enough bytes are present.
func byteArrayRoutine(mt MatchType) Routine {
	switch mt {
	case MatchAny:
		return vltAny
	case MatchUpdate:
		return vltUpdate
	case MatchEqualTo:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if uv == nil {
				return 0
			}
			length := uv.Length()
			if len(raw) < length || !wildcardEqual(raw[:length], uv.ByteArray, uv.Wildcard) {
				return 0
			}
			*save = value.Flags(length)
			return length
		}
	}
	return noMatch
}

// stringRoutine returns the Routine for STRING scans: EQUALTO does a plain
// byte comparison (no wildcard mask), mirroring scan_routine_STRING_EQUALTO.
func stringRoutine(mt MatchType) Routine {
	switch mt {
	case MatchAny:
		return vltAny
	case MatchUpdate:
		return vltUpdate
	case MatchEqualTo:
		return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
			if uv == nil {
				return 0
			}
			pattern := uv.String
			if len(raw) < len(pattern) || string(raw[:len(pattern)]) != pattern {
				return 0
			}
			*save = value.Flags(len(pattern))
			return len(pattern)
		}
	}
	return noMatch
}

// vltAny reports every byte present as matched, capped at the widest
// length a Flags bitset can express, mirroring scan_routine_VLT_ANY's
// MIN(memlength, (uint16_t)(-1)).
func vltAny(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
	n := len(raw)
	if n > 0xFFFF {
		n = 0xFFFF
	}
	*save = value.Flags(n)
	return n
}

// vltUpdate re-records a variable-length match at the same length the
// prior value carried, mirroring scan_routine_VLT_UPDATE (whose
// memlength the driver already clamps to old_value's recorded length
// before calling in).
func vltUpdate(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
	if old == nil {
		return 0
	}
	length := int(old.Flags)
	if len(raw) < length {
		return 0
	}
	*save = value.Flags(length)
	return length
}

func noMatch(*value.Value, []byte, *value.Value, *value.UserValue, *value.Range, *value.Flags) int {
	return 0
}

// wildcardEqual reports whether pattern matches raw byte-for-byte at
// every position whose wildcard mask byte is non-zero (0xFF means fixed,
// 0x00 means wildcard), mirroring the masked uint64 comparisons in
// scan_routine_BYTEARRAY_EQUALTO collapsed into a single byte loop.
func wildcardEqual(raw, pattern, wildcard []byte) bool {
	for i := range pattern {
		if wildcard[i] != 0 && raw[i] != pattern[i] {
			return false
		}
	}
	return true
}
