package scan

import "github.com/xyproto/swathscan/internal/value"

// anyTypeRoutine composes a set of width-specific routines into one,
// mirroring DEFINE_ANYTYPE_ROUTINE: every constituent routine runs against
// the same memory, each ORs its match flags into the shared save bitset,
// and the composite's returned length is the widest one that matched
// (matching the original's "val_length of largest routine that matched").
func anyTypeRoutine(routines []Routine) Routine {
	return func(mem *value.Value, raw []byte, old *value.Value, uv *value.UserValue, rng *value.Range, save *value.Flags) int {
		best := 0
		for _, r := range routines {
			if n := r(mem, raw, old, uv, rng, save); n > best {
				best = n
			}
		}
		return best
	}
}

func anyIntegerRoutine(mt MatchType, reverseEndianness bool) Routine {
	return anyTypeRoutine([]Routine{
		intRoutine(width8, mt, false),
		intRoutine(width16, mt, reverseEndianness),
		intRoutine(width32, mt, reverseEndianness),
		intRoutine(width64, mt, reverseEndianness),
	})
}

func anyFloatRoutine(mt MatchType, reverseEndianness bool) Routine {
	return anyTypeRoutine([]Routine{
		floatRoutine(fwidth32, mt, reverseEndianness),
		floatRoutine(fwidth64, mt, reverseEndianness),
	})
}

func anyNumberRoutine(mt MatchType, reverseEndianness bool) Routine {
	return anyTypeRoutine([]Routine{
		intRoutine(width8, mt, false),
		intRoutine(width16, mt, reverseEndianness),
		intRoutine(width32, mt, reverseEndianness),
		intRoutine(width64, mt, reverseEndianness),
		floatRoutine(fwidth32, mt, reverseEndianness),
		floatRoutine(fwidth64, mt, reverseEndianness),
	})
}
