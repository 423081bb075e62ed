package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xyproto/swathscan/internal/value"
)

func TestStopTokenRequestAndClear(t *testing.T) {
	g := &Globals{}
	assert.False(t, g.StopRequested())
	g.RequestStop()
	assert.True(t, g.StopRequested())
	g.ClearStop()
	assert.False(t, g.StopRequested())
}

func TestScanProgressRoundTrip(t *testing.T) {
	g := &Globals{}
	g.SetScanProgress(0.42)
	assert.InDelta(t, 0.42, g.ScanProgress(), 1e-9)
}

func TestNarrowToDataTypeMasksToInt32(t *testing.T) {
	uv, _ := value.ParseNumber("7")
	NarrowToDataType(&uv, DataInteger32)
	assert.True(t, uv.Flags.Has(value.FlagU32b))
	assert.False(t, uv.Flags.Has(value.FlagU64b))
}

func TestNarrowToDataTypeAnyNumberKeepsEverything(t *testing.T) {
	uv, _ := value.ParseNumber("7")
	before := uv.Flags
	NarrowToDataType(&uv, DataAnyNumber)
	assert.Equal(t, before, uv.Flags)
}
