// Package sets parses the "[!]tok(,tok)*" address-set grammar accepted
// by the dregion/delete commands, the Go-native equivalent of scanmem's
// sets.c. A set is never empty, never holds duplicates, and every member
// must be strictly below the caller-supplied bound.
package sets

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Set is an ordered, duplicate-free collection of indices below some
// bound, as produced by Parse.
type Set struct {
	members []uint64
}

// Members returns the sorted, duplicate-free indices in the set.
func (s *Set) Members() []uint64 { return s.members }

// Contains reports whether n belongs to the set.
func (s *Set) Contains(n uint64) bool {
	i := sort.Search(len(s.members), func(i int) bool { return s.members[i] >= n })
	return i < len(s.members) && s.members[i] == n
}

type tokenKind int

const (
	tokNone tokenKind = iota
	tokNumber
	tokRange
	tokComma
)

// Parse parses lptr against the grammar "[!]tok(,tok)*" where tok is a
// decimal or 0x-prefixed hex literal, "n..m", "..m" (implicitly 0..m), or
// "n.." (implicitly n..bound-1). A leading "!" inverts the resulting set
// over [0, bound). maxIndex is the exclusive upper bound (maxsz in the
// original), mirroring parse_uintset().
func Parse(lptr string, maxIndex uint64) (*Set, error) {
	lptr = strings.TrimSpace(lptr)
	if lptr == "" {
		return nil, errors.New("sets: empty set")
	}

	var (
		members  []uint64
		lastType = tokNone
		lastNum  uint64
		gotNum   bool
		invert   bool
	)

	runes := []rune(lptr)
	i := 0
	for i < len(runes) {
		for i < len(runes) && runes[i] == ' ' {
			i++
		}
		if i >= len(runes) {
			break
		}

		switch runes[i] {
		case '!':
			if lastType != tokNone {
				return nil, errors.New("sets: inversion only allowed at beginning of set")
			}
			invert = true
			i++
			continue
		case ',':
			if lastType == tokRange {
				return nil, errors.New("sets: invalid range")
			}
			lastType = tokComma
			i++
			continue
		case '.':
			if lastType == tokComma || lastType == tokRange {
				return nil, errors.New("sets: invalid range")
			}
			if i+1 >= len(runes) || runes[i+1] != '.' {
				return nil, errors.New("sets: bad token")
			}
			lastType = tokRange
			i += 2
			continue
		}

		if runes[i] < '0' || runes[i] > '9' {
			return nil, errors.New("sets: bad token")
		}

		base := 10
		start := i
		if runes[i] == '0' && i+1 < len(runes) && (runes[i+1] == 'x' || runes[i+1] == 'X') {
			base = 16
			i += 2
			start = i
		}
		for i < len(runes) && isHexDigit(runes[i]) {
			i++
		}
		if i == start {
			return nil, errors.New("sets: bad token")
		}
		toknum, err := strconv.ParseUint(string(runes[start:i]), base, 64)
		if err != nil {
			return nil, errors.Wrap(err, "sets: malformed number")
		}

		switch {
		case lastType == tokRange && !gotNum:
			// {0 .. n} range
			if toknum >= maxIndex {
				return nil, errors.New("sets: 0..n range out of bounds")
			}
			for n := uint64(0); n <= toknum; n++ {
				members = append(members, n)
			}
			lastNum, lastType, gotNum = toknum, tokNumber, true
		case lastType == tokRange:
			if toknum <= lastNum || toknum >= maxIndex {
				return nil, errors.New("sets: invalid range")
			}
			for n := lastNum + 1; n <= toknum; n++ {
				members = append(members, n)
			}
			lastNum, lastType = toknum, tokNumber
		case lastType == tokNumber:
			return nil, errors.New("sets: expected ',' or '..' between numbers")
		default:
			members = append(members, toknum)
			lastNum, lastType, gotNum = toknum, tokNumber, true
		}
	}

	if lastType == tokRange {
		if !gotNum {
			return nil, errors.New("sets: invalid range")
		}
		if lastNum >= maxIndex {
			return nil, errors.New("sets: n..end range out of bounds")
		}
		for n := lastNum + 1; n < maxIndex; n++ {
			members = append(members, n)
		}
	}

	if len(members) == 0 {
		return nil, errors.New("sets: empty set")
	}

	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	for i := 0; i+1 < len(members); i++ {
		if members[i] == members[i+1] {
			return nil, errors.New("sets: duplicate element")
		}
	}
	if members[len(members)-1] >= maxIndex {
		return nil, errors.New("sets: out of bounds element")
	}

	if invert {
		if uint64(len(members)) == maxIndex {
			return nil, errors.New("sets: cannot invert the entire set")
		}
		inverted := make([]uint64, 0, maxIndex-uint64(len(members)))
		vi := 0
		for n := uint64(0); n < maxIndex; n++ {
			if vi < len(members) && members[vi] == n {
				vi++
				continue
			}
			inverted = append(inverted, n)
		}
		members = inverted
	}

	return &Set{members: members}, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
