package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/diag"
	"github.com/xyproto/swathscan/internal/region"
	"github.com/xyproto/swathscan/internal/store"
	"github.com/xyproto/swathscan/internal/value"
)

// fakeTarget records every write it receives instead of touching a real
// process, the same role a test double plays for store_test.go's direct
// Swath/Entry construction.
type fakeTarget struct {
	writes []fakeWrite
}

type fakeWrite struct {
	addr  uintptr
	value value.Value
}

func (f *fakeTarget) SetAddr(addr uintptr, to *value.Value) error {
	f.writes = append(f.writes, fakeWrite{addr: addr, value: *to})
	return nil
}

func (f *fakeTarget) PeekData(addr uintptr) (value.Value, error) {
	return value.Value{}, nil
}

func (f *fakeTarget) ReadArray(addr uintptr, buf []byte) error { return nil }

func (f *fakeTarget) WriteArray(addr uintptr, data []byte) error { return nil }

func newTestREPL(t *testing.T, ft *fakeTarget) *REPL {
	t.Helper()
	r := New(config.NewGlobals(), diag.NewHuman())
	r.newTarget = func(pid int) Target { return ft }
	return r
}

// TestCmdSetUsesPerMatchFlags proves a narrow 1-byte match is written with
// its own recorded width rather than the widest flag the literal admits,
// per the "widest mutual flag between the old value and the write" rule:
// one match carries only FlagU8b, the other a full 8-byte 0xFFFF-flagged
// lead entry (mirroring the driver's real convention of trailing
// value.FlagsEmpty carry bytes), and each must be written at its own width.
func TestCmdSetUsesPerMatchFlags(t *testing.T) {
	a := store.NewArray(1024)
	// swath 0: a lone narrow u8 match
	a.AddElement(0x1000, 42, value.FlagU8b)

	// swath 1: a wide match with a full 8-byte payload, carried bytes
	// flagged empty per the driver's own AddElement convention
	a.AddElement(0x2000, 7, 0xFFFF)
	a.AddElement(0x2001, 0, value.FlagsEmpty)
	a.AddElement(0x2002, 0, value.FlagsEmpty)
	a.AddElement(0x2003, 0, value.FlagsEmpty)
	a.AddElement(0x2004, 0, value.FlagsEmpty)
	a.AddElement(0x2005, 0, value.FlagsEmpty)
	a.AddElement(0x2006, 0, value.FlagsEmpty)
	a.AddElement(0x2007, 0, value.FlagsEmpty)

	ft := &fakeTarget{}
	r := newTestREPL(t, ft)
	r.store = a

	require.NoError(t, r.cmdSet([]string{"99"}))

	require.Len(t, ft.writes, 2)

	byAddr := make(map[uintptr]fakeWrite)
	for _, w := range ft.writes {
		byAddr[w.addr] = w
	}

	narrow, ok := byAddr[0x1000]
	require.True(t, ok)
	assert.Equal(t, value.FlagU8b, narrow.value.Flags, "narrow match must be written at its own 1-byte width")
	assert.Equal(t, uint8(99), narrow.value.U8())

	wide, ok := byAddr[0x2000]
	require.True(t, ok)
	assert.True(t, wide.value.Flags.Has(value.FlagU64b), "wide match keeps access to its full 8-byte width")
}

// TestCmdSetSkipsDeadCarryBytes proves that a write is never attempted at
// the carried (value.FlagsEmpty) bytes of a wide swath entry, since those
// addresses were never themselves a match.
func TestCmdSetSkipsDeadCarryBytes(t *testing.T) {
	a := store.NewArray(1024)
	a.AddElement(0x3000, 1, value.FlagsI16b)
	a.AddElement(0x3001, 0, value.FlagsEmpty)

	ft := &fakeTarget{}
	r := newTestREPL(t, ft)
	r.store = a

	require.NoError(t, r.cmdSet([]string{"5"}))
	require.Len(t, ft.writes, 1)
	assert.Equal(t, uintptr(0x3000), ft.writes[0].addr)
}

// TestCmdSetRestrictsToIDSet proves the `ids=v` form only writes the
// listed matches, per Scenario E's `set ids=v/delay` form.
func TestCmdSetRestrictsToIDSet(t *testing.T) {
	a := store.NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1001, 2, value.FlagU8b)
	a.AddElement(0x1002, 3, value.FlagU8b)

	ft := &fakeTarget{}
	r := newTestREPL(t, ft)
	r.store = a

	require.NoError(t, r.cmdSet([]string{"1=7"}))

	require.Len(t, ft.writes, 1)
	assert.Equal(t, uintptr(0x1001), ft.writes[0].addr)
	assert.Equal(t, uint8(7), ft.writes[0].value.U8())
}

// TestCmdDregionInvertedSetKeepsOnlyNamedRegion exercises Scenario F:
// `dregion !1` must remove regions 0 and 2 (and their matches) while
// keeping region 1 and the match inside it.
func TestCmdDregionInvertedSetKeepsOnlyNamedRegion(t *testing.T) {
	a := store.NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b) // in region 0
	a.AddElement(0x2000, 2, value.FlagU8b) // in region 1
	a.AddElement(0x3000, 3, value.FlagU8b) // in region 2

	r := newTestREPL(t, &fakeTarget{})
	r.store = a
	r.regions = []region.Region{
		{ID: 0, Start: 0x1000, Size: 0x100},
		{ID: 1, Start: 0x2000, Size: 0x100},
		{ID: 2, Start: 0x3000, Size: 0x100},
	}

	require.NoError(t, r.cmdDregion([]string{"!1"}))

	require.Len(t, r.regions, 1)
	assert.Equal(t, 1, r.regions[0].ID)

	require.EqualValues(t, 1, r.store.NumMatches())
	loc, ok := r.store.NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x2000), r.store.AddressOf(loc))
}

// TestCmdDeletePureLogicNoTarget proves delete never touches a target at
// all: it only mutates the store via address-range clearing.
func TestCmdDeletePureLogicNoTarget(t *testing.T) {
	a := store.NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1001, 2, value.FlagU8b)

	r := newTestREPL(t, nil) // nil target: a call would panic, proving none happens
	r.store = a

	require.NoError(t, r.cmdDelete([]string{"0"}))
	assert.EqualValues(t, 1, r.store.NumMatches())
}

func TestCmdOptionSetsScanDataType(t *testing.T) {
	r := newTestREPL(t, nil)
	require.NoError(t, r.cmdOption([]string{"scan_data_type", "int32"}))
	assert.Equal(t, config.DataInteger32, r.Globals.Options.ScanDataType)
}

func TestCmdOptionRejectsUnknownKey(t *testing.T) {
	r := newTestREPL(t, nil)
	assert.Error(t, r.cmdOption([]string{"bogus", "1"}))
}

func TestParseDataType(t *testing.T) {
	dt, ok := parseDataType("float64")
	require.True(t, ok)
	assert.Equal(t, config.DataFloat64, dt)

	_, ok = parseDataType("nope")
	assert.False(t, ok)
}

func TestDispatchIgnoresBlankLine(t *testing.T) {
	r := newTestREPL(t, nil)
	assert.NoError(t, r.Dispatch("   "))
}
