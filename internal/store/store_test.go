package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/swathscan/internal/value"
)

func TestAddElementContiguousStaysInOneSwath(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1001, 2, value.FlagU8b)
	a.AddElement(0x1002, 3, value.FlagU8b)

	require.Len(t, a.Swaths, 1)
	assert.Equal(t, uintptr(0x1000), a.Swaths[0].FirstAddr)
	assert.Len(t, a.Swaths[0].Data, 3)
	assert.EqualValues(t, 3, a.NumMatches())
}

func TestAddElementSmallGapFillsZeroFlagEntries(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1002, 2, value.FlagU8b) // gap of 2, below breakEvenEntries

	require.Len(t, a.Swaths, 1)
	assert.Len(t, a.Swaths[0].Data, 3)
	assert.Equal(t, value.FlagsEmpty, a.Swaths[0].Data[1].Flags)
	assert.EqualValues(t, 2, a.NumMatches())
}

func TestAddElementLargeGapStartsNewSwath(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x2000, 2, value.FlagU8b)

	require.Len(t, a.Swaths, 2)
	assert.Equal(t, uintptr(0x2000), a.Swaths[1].FirstAddr)
}

func TestNthMatchSkipsZeroFlagEntries(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagsEmpty)
	a.AddElement(0x1001, 2, value.FlagU8b)
	a.AddElement(0x1002, 3, value.FlagU8b)

	loc, ok := a.NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x1001), a.AddressOf(loc))

	loc, ok = a.NthMatch(1)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x1002), a.AddressOf(loc))

	_, ok = a.NthMatch(2)
	assert.False(t, ok)
}

func TestDeleteInAddressRangeZeroesFlagsOnly(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1001, 2, value.FlagU8b)
	a.AddElement(0x1002, 3, value.FlagU8b)

	a.DeleteInAddressRange(0x1001, 0x1002)

	assert.EqualValues(t, 2, a.NumMatches())
	assert.Equal(t, value.FlagsEmpty, a.Swaths[0].Data[1].Flags)
	assert.Equal(t, byte(2), a.Swaths[0].Data[1].OldByte)
}

func TestDataToValueTruncatesNearSwathEnd(t *testing.T) {
	sw := &Swath{FirstAddr: 0x1000, Data: []Entry{
		{OldByte: 1, Flags: 0xFFFF},
		{OldByte: 2, Flags: 0xFFFF},
	}}

	v := DataToValue(sw, 0)
	assert.False(t, v.Flags.Has(value.Flags64b))
	assert.False(t, v.Flags.Has(value.Flags32b))
	assert.True(t, v.Flags.Has(value.Flags16b))
	assert.Equal(t, byte(1), v.Bytes[0])
	assert.Equal(t, byte(2), v.Bytes[1])
}

func TestDataToValueAndsWithStoredFlags(t *testing.T) {
	sw := &Swath{FirstAddr: 0x1000, Data: []Entry{
		{OldByte: 1, Flags: value.FlagU8b},
		{OldByte: 2, Flags: 0xFFFF},
		{OldByte: 3, Flags: 0xFFFF},
		{OldByte: 4, Flags: 0xFFFF},
		{OldByte: 5, Flags: 0xFFFF},
		{OldByte: 6, Flags: 0xFFFF},
		{OldByte: 7, Flags: 0xFFFF},
		{OldByte: 8, Flags: 0xFFFF},
	}}

	v := DataToValue(sw, 0)
	// only the first byte's stored flags gate the reconstructed value,
	// mirroring data_to_val_aux() keying validity off the swath's lead byte.
	assert.False(t, v.Flags.Has(value.Flags64b))
	assert.True(t, v.Flags.Has(value.FlagU8b))
}

func TestResetClearsMatches(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.Reset()
	assert.EqualValues(t, 0, a.NumMatches())
	assert.Len(t, a.Swaths, 0)
}

func TestRecountAfterDirectFlagMutation(t *testing.T) {
	a := NewArray(1024)
	a.AddElement(0x1000, 1, value.FlagU8b)
	a.AddElement(0x1001, 2, value.FlagU8b)
	a.AddElement(0x1002, 3, value.FlagU8b)
	require.EqualValues(t, 3, a.NumMatches())

	a.Swaths[0].Data[1].Flags = value.FlagsEmpty
	a.Recount()
	assert.EqualValues(t, 2, a.NumMatches())
}
