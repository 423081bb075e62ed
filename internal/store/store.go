// Package store implements the match store: a sparse, append-grown
// container of candidate addresses carrying an old byte and a possibility
// flag set per byte, organised as a sequence of swaths (spec.md §3/§4.4,
// grounded on original_source/targetmem.{c,h}).
package store

import (
	"github.com/pkg/errors"

	"github.com/xyproto/swathscan/internal/value"
)

// Entry is a single byte's worth of match state: the last-observed byte
// and the type-possibility flags surviving at that byte.
type Entry struct {
	OldByte byte
	Flags   value.Flags
}

// Swath is a consecutive run of candidate bytes starting at FirstAddr.
// A Swath with FirstAddr == 0 && len(Data) == 0 is the terminator; callers
// must never construct one manually, only via the Array below.
type Swath struct {
	FirstAddr uintptr
	Data      []Entry
}

func (s *Swath) isTerminator() bool { return s.FirstAddr == 0 && len(s.Data) == 0 }

// lastAddr returns the address of the last element in the swath.
func (s *Swath) lastAddr() uintptr { return s.FirstAddr + uintptr(len(s.Data)-1) }

// breakEvenEntries is the minimum address gap (in target-address terms)
// below which AddElement fills with zero-flag entries rather than
// starting a new swath. In the original C this is
// sizeof(swath_header)+sizeof(entry); ported here as a named constant
// since Go has no equivalent in-band header to size against.
const breakEvenEntries = 3

// Array is the master match store: an ordered sequence of swaths plus a
// maintained count of non-zero-flag entries (num_matches in the original).
// MaxBytes is the precomputed upper bound on the number of candidate
// bytes this array will ever need to hold; it is recorded for parity with
// the original's growth cap but nothing in this package checks it, since
// Go slices already reallocate safely under append.
type Array struct {
	Swaths     []Swath
	MaxBytes   uint64
	numMatches uint64
}

// NewArray allocates an array bounded by maxBytes, mirroring
// allocate_array(). The Go port starts with zero swaths; the terminator
// is implicit (an empty Swaths slice) until the first AddElement call.
func NewArray(maxBytes uint64) *Array {
	return &Array{MaxBytes: maxBytes}
}

// NumMatches returns the number of entries with non-zero flags.
func (a *Array) NumMatches() uint64 { return a.numMatches }

// Reset clears the array back to empty, as if newly allocated.
func (a *Array) Reset() {
	a.Swaths = a.Swaths[:0]
	a.numMatches = 0
}

// AddElement appends one candidate byte at remoteAddr, mirroring
// add_element()'s three-way policy:
//   - contiguous with the last element: append within the current swath;
//   - gap smaller than breakEvenEntries: fill with zero-flag entries to
//     preserve contiguity, then append;
//   - gap >= breakEvenEntries: terminate the current swath, start a new
//     one at remoteAddr.
func (a *Array) AddElement(remoteAddr uintptr, oldByte byte, flags value.Flags) {
	if flags != value.FlagsEmpty {
		a.numMatches++
	}

	if len(a.Swaths) == 0 {
		a.Swaths = append(a.Swaths, Swath{FirstAddr: remoteAddr})
	}

	cur := &a.Swaths[len(a.Swaths)-1]

	if len(cur.Data) == 0 && cur.FirstAddr == 0 && remoteAddr != 0 {
		// freshly started, empty swath: claim this address as its start
		cur.FirstAddr = remoteAddr
	} else if len(cur.Data) > 0 {
		gap := remoteAddr - cur.lastAddr()
		switch {
		case gap == 1:
			// contiguous, falls through to append below
		case gap >= 2 && gap < breakEvenEntries:
			for i := uintptr(1); i < gap; i++ {
				cur.Data = append(cur.Data, Entry{})
			}
		default:
			a.Swaths = append(a.Swaths, Swath{FirstAddr: remoteAddr})
			cur = &a.Swaths[len(a.Swaths)-1]
		}
	}

	cur.Data = append(cur.Data, Entry{OldByte: oldByte, Flags: flags})
}

// NullTerminate exists for interface parity with the original's
// null_terminate(); it modifies nothing and only asserts the invariant
// that no empty swath appears before the last one.
func (a *Array) NullTerminate() error {
	for i := range a.Swaths {
		if i < len(a.Swaths)-1 && a.Swaths[i].isTerminator() {
			return errors.Errorf("store: non-terminal empty swath at index %d", i)
		}
	}
	return nil
}

// Recount recomputes numMatches from scratch by walking every entry. A
// narrowing scan rewrites swath flags directly (bypassing AddElement's
// bookkeeping) since it only ever clears flags in place; callers doing so
// must call Recount once after the walk completes.
func (a *Array) Recount() {
	var n uint64
	for si := range a.Swaths {
		for i := range a.Swaths[si].Data {
			if a.Swaths[si].Data[i].Flags != value.FlagsEmpty {
				n++
			}
		}
	}
	a.numMatches = n
}

// Location identifies one match by swath index and in-swath offset.
type Location struct {
	SwathIndex int
	Index      int
}

// NthMatch walks the array skipping zero-flag entries and returns the
// location of the n-th (0-based) non-zero-flag entry, mirroring
// nth_match().
func (a *Array) NthMatch(n uint64) (Location, bool) {
	var seen uint64
	for si := range a.Swaths {
		sw := &a.Swaths[si]
		for i := range sw.Data {
			if sw.Data[i].Flags == value.FlagsEmpty {
				continue
			}
			if seen == n {
				return Location{SwathIndex: si, Index: i}, true
			}
			seen++
		}
	}
	return Location{}, false
}

// AddressOf translates a Location back to a target-process address.
func (a *Array) AddressOf(loc Location) uintptr {
	sw := &a.Swaths[loc.SwathIndex]
	return sw.FirstAddr + uintptr(loc.Index)
}

// DeleteInAddressRange clears (zeroes the flags of) every entry whose
// address falls in [start, end), mirroring delete_in_address_range(). It
// does not physically shrink the store; a byte whose flags become zero
// still exists to anchor contiguous state for neighbours, exactly like
// the original.
func (a *Array) DeleteInAddressRange(start, end uintptr) {
	for si := range a.Swaths {
		sw := &a.Swaths[si]
		for i := range sw.Data {
			addr := sw.FirstAddr + uintptr(i)
			if addr < start || addr >= end {
				continue
			}
			if sw.Data[i].Flags != value.FlagsEmpty {
				a.numMatches--
			}
			sw.Data[i].Flags = value.FlagsEmpty
		}
	}
}

// DataToValue reconstructs a Value at swath[idx]: up to eight consecutive
// OldBytes are copied into the payload, flags start as all-widths-possible
// minus widths for which not enough bytes remain, then are ANDed with the
// entry's own stored flags, mirroring data_to_val_aux()/data_to_val().
func DataToValue(sw *Swath, idx int) value.Value {
	var v value.Value
	maxBytes := len(sw.Data) - idx

	v.Flags = 0xFFFF
	if maxBytes > 8 {
		maxBytes = 8
	}
	if maxBytes < 8 {
		v.Flags &^= value.Flags64b
	}
	if maxBytes < 4 {
		v.Flags &^= value.Flags32b
	}
	if maxBytes < 2 {
		v.Flags &^= value.Flags16b
	}
	if maxBytes < 1 {
		v.Flags = value.FlagsEmpty
		return v
	}

	for i := 0; i < maxBytes; i++ {
		v.Bytes[i] = sw.Data[idx+i].OldByte
	}

	v.Flags &= sw.Data[idx].Flags
	return v
}
