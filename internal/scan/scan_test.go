package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/value"
)

func valueOfU32(x uint32) value.Value {
	var v value.Value
	v.Flags = value.FlagsI32b
	v.SetU32(x)
	return v
}

func TestIntRoutineEqualTo(t *testing.T) {
	uv, ok := value.ParseNumber("42")
	require.True(t, ok)

	r := intRoutine(width32, MatchEqualTo, false)
	mem := valueOfU32(42)
	var save value.Flags
	n := r(&mem, mem.Bytes[:4], nil, &uv, nil, &save)
	assert.Equal(t, 4, n)
	assert.True(t, save.Has(value.FlagU32b))

	mem2 := valueOfU32(43)
	save = 0
	n = r(&mem2, mem2.Bytes[:4], nil, &uv, nil, &save)
	assert.Equal(t, 0, n)
}

func TestIntRoutineIncreasedBy(t *testing.T) {
	uv, ok := value.ParseNumber("5")
	require.True(t, ok)

	r := intRoutine(width32, MatchIncreasedBy, false)
	old := valueOfU32(10)
	mem := valueOfU32(15)
	var save value.Flags
	n := r(&mem, mem.Bytes[:4], &old, &uv, nil, &save)
	assert.Equal(t, 4, n)
	assert.True(t, save.Has(value.FlagU32b))
}

func TestIntRoutineDecreasedByRejectsWrongDelta(t *testing.T) {
	uv, ok := value.ParseNumber("5")
	require.True(t, ok)

	r := intRoutine(width32, MatchDecreasedBy, false)
	old := valueOfU32(10)
	mem := valueOfU32(10)
	var save value.Flags
	n := r(&mem, mem.Bytes[:4], &old, &uv, nil, &save)
	assert.Equal(t, 0, n)
}

func TestIntRoutineIncreasedByWrapsAtWidthBoundary(t *testing.T) {
	uv, ok := value.ParseNumber("10")
	require.True(t, ok)

	r := intRoutine(width8, MatchIncreasedBy, false)

	var old, mem value.Value
	old.Flags = value.FlagsI8b
	old.SetU8(250) // 250 + 10 wraps to 4 at 8 bits (both as uint8 and as int8 math)
	mem.Flags = value.FlagsI8b
	mem.SetU8(4)

	var save value.Flags
	n := r(&mem, mem.Bytes[:1], &old, &uv, nil, &save)
	assert.Equal(t, 1, n)
	assert.True(t, save.Has(value.FlagU8b))

	// the unwrapped (int64-widened) sum would have been 260, which no
	// single byte can hold, so any other byte (here 5) must not match; 4
	// is the only width-correct successor of 250+10.
	mem2 := mem
	mem2.SetU8(5)
	save = 0
	n = r(&mem2, mem2.Bytes[:1], &old, &uv, nil, &save)
	assert.Equal(t, 0, n)
}

func TestIntRoutineRange(t *testing.T) {
	low, _ := value.ParseNumber("10")
	high, _ := value.ParseNumber("20")
	rng := &value.Range{Low: low, High: high}

	r := intRoutine(width32, MatchRange, false)
	mem := valueOfU32(15)
	var save value.Flags
	n := r(&mem, mem.Bytes[:4], nil, nil, rng, &save)
	assert.Equal(t, 4, n)

	mem2 := valueOfU32(25)
	save = 0
	n = r(&mem2, mem2.Bytes[:4], nil, nil, rng, &save)
	assert.Equal(t, 0, n)
}

func TestIntRoutineReverseEndianness(t *testing.T) {
	uv, ok := value.ParseNumber("1")
	require.True(t, ok)

	r := intRoutine(width16, MatchEqualTo, true)
	var mem value.Value
	mem.Bytes[0], mem.Bytes[1] = 0x00, 0x01 // big-endian 1
	var save value.Flags
	n := r(&mem, mem.Bytes[:2], nil, &uv, nil, &save)
	assert.Equal(t, 2, n)
}

func TestFloatRoutineEqualToToleratesEpsilon(t *testing.T) {
	uv, ok := value.ParseFloat("3.14")
	require.True(t, ok)

	r := floatRoutine(fwidth32, MatchEqualTo, false)
	var mem value.Value
	mem.SetF32(3.1400005) // two float32 steps (about 4.8e-7) above float32(3.14)
	var save value.Flags
	n := r(&mem, mem.Bytes[:4], nil, &uv, nil, &save)
	assert.Equal(t, 4, n)
	assert.True(t, save.Has(value.FlagF32b))
}

func TestAnyIntegerRoutinePicksWidestMatch(t *testing.T) {
	r := anyIntegerRoutine(MatchAny, false)
	var mem value.Value
	var save value.Flags
	n := r(&mem, mem.Bytes[:8], nil, nil, nil, &save)
	assert.Equal(t, 8, n)
	assert.True(t, save.Has(value.FlagU64b))
	assert.True(t, save.Has(value.FlagU8b))
}

func TestByteArrayRoutineEqualToHonorsWildcard(t *testing.T) {
	uv, ok := value.ParseByteArray([]string{"AA", "??", "CC"})
	require.True(t, ok)

	r := byteArrayRoutine(MatchEqualTo)
	raw := []byte{0xAA, 0xFF, 0xCC}
	var save value.Flags
	n := r(nil, raw, nil, &uv, nil, &save)
	assert.Equal(t, 3, n)

	raw2 := []byte{0xAA, 0xFF, 0xCD}
	save = 0
	n = r(nil, raw2, nil, &uv, nil, &save)
	assert.Equal(t, 0, n)
}

func TestStringRoutineEqualTo(t *testing.T) {
	uv := value.UserValue{String: "hello", Flags: value.Flags(len("hello"))}
	r := stringRoutine(MatchEqualTo)

	var save value.Flags
	n := r(nil, []byte("hello world"), nil, &uv, nil, &save)
	assert.Equal(t, 5, n)

	save = 0
	n = r(nil, []byte("help world"), nil, &uv, nil, &save)
	assert.Equal(t, 0, n)
}

func TestChooseRoutineRejectsImpossibleDataType(t *testing.T) {
	uv, _ := value.ParseFloat("3.5")
	_, ok := ChooseRoutine(config.DataInteger8, MatchEqualTo, &uv, false)
	assert.False(t, ok)
}

func TestChooseRoutineAcceptsByteArrayDespiteLengthInFlags(t *testing.T) {
	uv, ok := value.ParseByteArray([]string{"01", "02"})
	require.True(t, ok)
	_, ok = ChooseRoutine(config.DataByteArray, MatchEqualTo, &uv, false)
	assert.True(t, ok)
}
