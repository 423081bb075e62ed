// Package config holds the scan-wide option set and the small amount of
// session-global state (current target pid, stop flag, scan progress)
// that spec.md §3 calls "Globals". Defaults are overridable by
// environment variables via github.com/xyproto/env/v2, following the
// teacher's "default, overridable by env" convention.
package config

import (
	"math"
	"sync/atomic"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/swathscan/internal/value"
)

// DataType selects which scan routine family applies, mirroring
// scan_data_type_t.
type DataType int

const (
	DataAnyNumber DataType = iota
	DataAnyInteger
	DataAnyFloat
	DataInteger8
	DataInteger16
	DataInteger32
	DataInteger64
	DataFloat32
	DataFloat64
	DataByteArray
	DataString
)

// Options is the mutable set of scan options the `option` command edits,
// mirroring the scan_data_type/region_scan_level/... fields of
// scanmem's options_t.
type Options struct {
	ScanDataType        DataType
	RegionScanLevel     int // see internal/region.ScanLevel
	Alignment           bool
	ReverseEndianness   bool
	DetectReverseChange bool
	Debug               bool
	Backend             bool
	DumpWithASCII       bool
}

// DefaultOptions builds an Options seeded from environment overrides:
// SWATHSCAN_REGION_SCAN_LEVEL, SWATHSCAN_ALIGNMENT,
// SWATHSCAN_REVERSE_ENDIANNESS, SWATHSCAN_DETECT_REVERSE_CHANGE,
// SWATHSCAN_DEBUG, SWATHSCAN_BACKEND,
// SWATHSCAN_DUMP_ASCII, falling back to scanmem's own defaults
// (heap/stack/exe region level, alignment on, backend off) when unset.
func DefaultOptions() Options {
	return Options{
		ScanDataType:        DataAnyNumber,
		RegionScanLevel:     env.Int("SWATHSCAN_REGION_SCAN_LEVEL", 0),
		Alignment:           env.Bool("SWATHSCAN_ALIGNMENT", true),
		ReverseEndianness:   env.Bool("SWATHSCAN_REVERSE_ENDIANNESS", false),
		DetectReverseChange: env.Bool("SWATHSCAN_DETECT_REVERSE_CHANGE", false),
		Debug:               env.Bool("SWATHSCAN_DEBUG", false),
		Backend:             env.Bool("SWATHSCAN_BACKEND", false),
		DumpWithASCII:       env.Bool("SWATHSCAN_DUMP_ASCII", true),
	}
}

// DefaultPid reads SWATHSCAN_PID as the target pid to auto-attach to on
// startup; 0 means "no default, require an explicit `pid` command".
func DefaultPid() int {
	return env.Int("SWATHSCAN_PID", 0)
}

// Globals bundles the session-wide state a repl command dispatches
// against: the live options, the currently attached pid, and a
// cooperative cancellation token for long-running commands (`set`
// continuous mode, `watch`), replacing the original's
// signal+setjmp/longjmp design per spec.md §9.
type Globals struct {
	Options Options
	Pid     int

	stopRequested atomic.Bool
	scanProgress  atomic.Uint64 // bits of a float64 in [0,1]
}

// NewGlobals returns a Globals seeded from DefaultOptions/DefaultPid.
func NewGlobals() *Globals {
	return &Globals{Options: DefaultOptions(), Pid: DefaultPid()}
}

// RequestStop asks any in-flight cancellable command (set/watch loops,
// a region scan between regions) to stop at its next check point.
func (g *Globals) RequestStop() { g.stopRequested.Store(true) }

// ClearStop resets the cancellation token before starting a new
// cancellable command.
func (g *Globals) ClearStop() { g.stopRequested.Store(false) }

// StopRequested reports whether RequestStop has been called since the
// last ClearStop.
func (g *Globals) StopRequested() bool { return g.stopRequested.Load() }

// SetScanProgress records the current scan fraction in [0,1], mirroring
// vars->scan_progress, readable concurrently by a status command while a
// scan runs on another goroutine.
func (g *Globals) SetScanProgress(fraction float64) {
	g.scanProgress.Store(math.Float64bits(fraction))
}

// ScanProgress returns the last fraction recorded by SetScanProgress.
func (g *Globals) ScanProgress() float64 {
	return math.Float64frombits(g.scanProgress.Load())
}

// widestFlagForDataType narrows a parsed user literal to the flags that
// are meaningful for the session's selected data type, e.g. picking only
// the 32-bit flags out of a number literal when ScanDataType is
// DataInteger32.
func widestFlagForDataType(dt DataType) value.Flags {
	switch dt {
	case DataInteger8:
		return value.Flags8b
	case DataInteger16:
		return value.Flags16b
	case DataInteger32:
		return value.FlagsI32b
	case DataInteger64:
		return value.FlagsI64b
	case DataFloat32:
		return value.FlagF32b
	case DataFloat64:
		return value.FlagF64b
	case DataAnyInteger:
		return value.FlagsInteger
	case DataAnyFloat:
		return value.FlagsFloat
	default:
		return value.FlagsAll
	}
}

// NarrowToDataType masks uv's flags down to those relevant for dt,
// mirroring how the original's scan routine selection implicitly
// ignores flags outside the chosen scan_data_type.
func NarrowToDataType(uv *value.UserValue, dt DataType) {
	uv.Flags &= widestFlagForDataType(dt)
}
