// Package scan implements the per-(data type × match relation ×
// endianness) comparison routines, the Go-native equivalent of
// scanmem's scanroutines.c. Where the original expands one routine per
// combination via C preprocessor macros, this port builds the integer
// and float families from closures over a per-width ops struct
// (intWidthOps/floatWidthOps), instantiated once per width instead of
// copy-pasted.
package scan

import (
	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/value"
)

// MatchType selects the comparison a Routine performs, mirroring
// scan_match_type_t.
type MatchType int

const (
	MatchAny MatchType = iota
	MatchEqualTo
	MatchNotEqualTo
	MatchGreaterThan
	MatchLessThan
	MatchRange
	MatchUpdate
	MatchNotChanged
	MatchChanged
	MatchIncreased
	MatchDecreased
	MatchIncreasedBy
	MatchDecreasedBy
)

// Routine compares the freshly read memory against old (the previously
// recorded value, nil on an initial scan) and/or uv (the user's typed
// comparison value, nil when the match type doesn't need one), narrowing
// save to exactly the widths that matched. mem decodes the first up-to-8
// bytes of raw for the fixed-width routines; raw is the full window of
// memory available at this address (its length is the original's
// memlength) and is what the variable-length bytearray/string routines
// scan directly, since a pattern can be longer than 8 bytes. rng is only
// consulted by a MatchRange routine (mirroring the original's two-element
// uservalue_t array used only by the RANGE routines) and is nil
// otherwise. It returns the number of bytes needed to record the match,
// or 0 if nothing matched.
type Routine func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int

// possibleFlagsForDataType is used for the cheap early-rejection check
// in ChooseRoutine: if the user's typed value has none of these flags,
// no routine for this data type could ever match it.
var possibleFlagsForDataType = map[config.DataType]value.Flags{
	config.DataAnyNumber:  value.FlagsAll,
	config.DataAnyInteger: value.FlagsInteger,
	config.DataAnyFloat:   value.FlagsFloat,
	config.DataInteger8:   value.FlagsI8b,
	config.DataInteger16:  value.FlagsI16b,
	config.DataInteger32:  value.FlagsI32b,
	config.DataInteger64:  value.FlagsI64b,
	config.DataFloat32:    value.FlagF32b,
	config.DataFloat64:    value.FlagF64b,
	config.DataByteArray:  value.FlagsAll,
	config.DataString:     value.FlagsAll,
}

// needsUserValue mirrors sm_choose_scanroutine's list of match types
// that compare against a user-supplied value (and so can be rejected
// early if that value has no possible flags for dt).
func needsUserValue(mt MatchType) bool {
	switch mt {
	case MatchEqualTo, MatchNotEqualTo, MatchGreaterThan, MatchLessThan,
		MatchRange, MatchIncreasedBy, MatchDecreasedBy:
		return true
	}
	return false
}

// ChooseRoutine is the Go equivalent of sm_choose_scanroutine: it applies
// the early-rejection check then resolves and returns the concrete
// Routine, or ok=false if no routine exists for this combination or the
// uservalue's flags rule out dt entirely.
func ChooseRoutine(dt config.DataType, mt MatchType, uv *value.UserValue, reverseEndianness bool) (Routine, bool) {
	// uv's Flags field holds a byte length, not a type bitset, for the
	// variable-length types, so the scalar early-rejection check below
	// doesn't apply to them.
	if dt != config.DataByteArray && dt != config.DataString && needsUserValue(mt) {
		uflags := value.FlagsEmpty
		if uv != nil {
			uflags = uv.Flags
		}
		if possibleFlagsForDataType[dt]&uflags == value.FlagsEmpty {
			return nil, false
		}
	}
	return GetRoutine(dt, mt, uv, reverseEndianness)
}

// GetRoutine resolves the routine for dt/mt without performing the
// early-rejection check, mirroring sm_get_scanroutine(). uv is not
// consulted: BYTEARRAY/STRING use one length-generic routine each, with
// no per-length specialisations.
func GetRoutine(dt config.DataType, mt MatchType, uv *value.UserValue, reverseEndianness bool) (Routine, bool) {
	switch dt {
	case config.DataInteger8:
		return intRoutine(width8, mt, false), true
	case config.DataInteger16:
		return intRoutine(width16, mt, reverseEndianness), true
	case config.DataInteger32:
		return intRoutine(width32, mt, reverseEndianness), true
	case config.DataInteger64:
		return intRoutine(width64, mt, reverseEndianness), true
	case config.DataFloat32:
		return floatRoutine(fwidth32, mt, reverseEndianness), true
	case config.DataFloat64:
		return floatRoutine(fwidth64, mt, reverseEndianness), true
	case config.DataAnyInteger:
		return anyIntegerRoutine(mt, reverseEndianness), true
	case config.DataAnyFloat:
		return anyFloatRoutine(mt, reverseEndianness), true
	case config.DataAnyNumber:
		return anyNumberRoutine(mt, reverseEndianness), true
	case config.DataByteArray:
		return byteArrayRoutine(mt), true
	case config.DataString:
		return stringRoutine(mt), true
	}
	return nil, false
}
