package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleNumbers(t *testing.T) {
	s, err := Parse("1,3,5", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5}, s.Members())
}

func TestParseHexNumber(t *testing.T) {
	s, err := Parse("0x0a,0x0b", 20)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11}, s.Members())
}

func TestParseRangeMiddle(t *testing.T) {
	s, err := Parse("2..5", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4, 5}, s.Members())
}

func TestParseRangeFromZero(t *testing.T) {
	s, err := Parse("..3", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3}, s.Members())
}

func TestParseRangeToEnd(t *testing.T) {
	s, err := Parse("7..", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 8, 9}, s.Members())
}

func TestParseInvertedSet(t *testing.T) {
	s, err := Parse("!1,3", 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2, 4}, s.Members())
}

func TestParseRejectsDuplicate(t *testing.T) {
	_, err := Parse("1,1", 10)
	assert.Error(t, err)
}

func TestParseRejectsOutOfBounds(t *testing.T) {
	_, err := Parse("20", 10)
	assert.Error(t, err)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("   ", 10)
	assert.Error(t, err)
}

func TestParseRejectsInversionNotAtStart(t *testing.T) {
	_, err := Parse("1,!2", 10)
	assert.Error(t, err)
}

func TestParseRejectsInvertingEntireSet(t *testing.T) {
	_, err := Parse("!0..4", 5)
	assert.Error(t, err)
}

func TestSetContains(t *testing.T) {
	s, err := Parse("2,4,6", 10)
	require.NoError(t, err)
	assert.True(t, s.Contains(4))
	assert.False(t, s.Contains(5))
}
