package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapsLineBasic(t *testing.T) {
	r, ok, err := parseMapsLine("00400000-00401000 rw-p 00000000 08:01 123456 /bin/true")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x00400000), r.Start)
	assert.Equal(t, uintptr(0x1000), r.Size)
	assert.True(t, r.Flags.Read)
	assert.True(t, r.Flags.Write)
	assert.False(t, r.Flags.Exec)
	assert.True(t, r.Flags.Private)
	assert.Equal(t, "/bin/true", r.Filename)
}

func TestParseMapsLineNoFilename(t *testing.T) {
	r, ok, err := parseMapsLine("7f0000000000-7f0000021000 rw-p 00000000 00:00 0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", r.Filename)
}

func TestParseMapsLineRejectsReadOnly(t *testing.T) {
	_, ok, err := parseMapsLine("00400000-00401000 r--p 00000000 08:01 123456 /bin/true")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseMapsLineRejectsZeroSize(t *testing.T) {
	_, ok, err := parseMapsLine("00400000-00400000 rw-p 00000000 08:01 123456 /bin/true")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsUsefulLevels(t *testing.T) {
	heap := Region{Filename: "[heap]"}
	bss := Region{Filename: ""}
	other := Region{Filename: "/lib/libc.so"}

	assert.True(t, isUseful(heap, LevelHeapStackExecutable, "/bin/true"))
	assert.False(t, isUseful(bss, LevelHeapStackExecutable, "/bin/true"))
	assert.True(t, isUseful(bss, LevelHeapStackExecutableBSS, "/bin/true"))
	assert.False(t, isUseful(other, LevelHeapStackExecutableBSS, "/bin/true"))
	assert.True(t, isUseful(other, LevelAll, "/bin/true"))
}

func TestRegionContainsAndEnd(t *testing.T) {
	r := Region{Start: 0x1000, Size: 0x100}
	assert.Equal(t, uintptr(0x1100), r.End())
	assert.True(t, r.Contains(0x1000))
	assert.True(t, r.Contains(0x10ff))
	assert.False(t, r.Contains(0x1100))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindHeap, classify(Region{Filename: "[heap]"}, ""))
	assert.Equal(t, KindStack, classify(Region{Filename: "[stack]"}, ""))
	assert.Equal(t, KindMisc, classify(Region{Filename: ""}, ""))
	assert.Equal(t, KindExe, classify(Region{Filename: "/bin/true", Flags: Flags{Exec: true}}, "/bin/true"))
}
