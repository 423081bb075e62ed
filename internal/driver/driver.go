// Package driver implements the scan driver (C6): it wires the region
// enumerator, target I/O, match store and scan routines together into the
// two scan entry points, searchregions (initial scan) and checkmatches
// (narrowing rescan), the Go-native equivalent of scanmem's scanmem.c
// driving loop.
package driver

import (
	"github.com/pkg/errors"

	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/diag"
	"github.com/xyproto/swathscan/internal/region"
	"github.com/xyproto/swathscan/internal/scan"
	"github.com/xyproto/swathscan/internal/store"
	"github.com/xyproto/swathscan/internal/target"
	"github.com/xyproto/swathscan/internal/value"
)

// regionReadOverallocation is the extra tail padding scanmem reads past a
// region's nominal size so that the last in-region byte can still be read
// as a full 8-byte quantity, mirroring searchregions()'s "+7" buffer.
const regionReadOverallocation = 7

// Driver ties the globals, target and diagnostic reporter together for a
// scan session; one Driver exists per attached pid.
type Driver struct {
	Globals *config.Globals
	Target  *target.Target
	Diag    diag.Reporter
}

// New returns a Driver bound to g.Pid, reporting through d.
func New(g *config.Globals, d diag.Reporter) *Driver {
	return &Driver{Globals: g, Target: target.New(g.Pid), Diag: d}
}

// SearchRegions performs the initial scan (spec.md §4.6): it enumerates
// regions at the configured scan level, precomputes an upper bound on the
// match-store capacity, reads each region into an over-allocated buffer,
// and applies the chosen routine at every candidate offset, carrying
// forward the w-1 trailing bytes of any w-byte match so they remain
// available to reconstruct the old value on a later narrowing pass.
func (d *Driver) SearchRegions(dt config.DataType, mt scan.MatchType, uv *value.UserValue, rng *value.Range) (*store.Array, error) {
	routine, ok := scan.ChooseRoutine(dt, mt, uv, d.Globals.Options.ReverseEndianness)
	if !ok {
		return nil, errors.New("driver: unsupported data type / match relation combination")
	}

	regions, err := region.Enumerate(d.Globals.Pid, region.ScanLevel(d.Globals.Options.RegionScanLevel))
	if err != nil {
		return nil, errors.Wrap(err, "driver: failed to enumerate regions")
	}

	var totalBytes uint64
	for _, r := range regions {
		totalBytes += uint64(r.Size)
	}
	arr := store.NewArray(totalBytes)

	if err := d.Target.Attach(); err != nil {
		return nil, errors.Wrap(err, "driver: failed to attach for initial scan")
	}
	defer d.Target.Detach()

	d.Globals.ClearStop()
	d.Globals.SetScanProgress(0)

	var bytesDone uint64
	for _, r := range regions {
		if d.Globals.StopRequested() {
			break
		}

		buf := make([]byte, uint64(r.Size)+regionReadOverallocation)
		n, rerr := target.ReadRegion(d.Globals.Pid, buf, r.Start)
		if rerr != nil {
			// a region we can no longer read is skipped, not fatal.
			d.Diag.Warn("could not read region at %#x: %v", r.Start, rerr)
			bytesDone += uint64(r.Size)
			d.reportProgress(bytesDone, totalBytes)
			continue
		}

		carry := 0
		for off := 0; off < n && off < int(r.Size); off++ {
			addr := r.Start + uintptr(off)

			if carry > 0 {
				arr.AddElement(addr, buf[off], value.FlagsEmpty)
				carry--
				continue
			}

			avail := n - off
			if avail > 8 {
				avail = 8
			}
			var mem value.Value
			copy(mem.Bytes[:], buf[off:off+avail])

			// raw spans the rest of the over-read region buffer, not just
			// the 8 bytes mem decodes, so BYTEARRAY/STRING patterns longer
			// than 8 bytes are still fully visible to their routine.
			var save value.Flags
			width := routine(&mem, buf[off:n], nil, uv, rng, &save)
			if width == 0 {
				continue
			}

			arr.AddElement(addr, buf[off], save)
			carry = width - 1
		}

		bytesDone += uint64(r.Size)
		d.reportProgress(bytesDone, totalBytes)
	}

	if err := arr.NullTerminate(); err != nil {
		return nil, errors.Wrap(err, "driver: match store left in an inconsistent state")
	}

	return arr, nil
}

// CheckMatches performs a narrowing rescan (spec.md §4.6): it walks the
// existing match store, reconstructs each candidate's old value, peeks up
// to 8 fresh bytes from the live target, truncates both to the flags the
// previous pass left behind, and rewrites the surviving entry back into
// the store in place. Because narrowing never grows the store, the
// rewrite never needs to reallocate mid-walk.
func (d *Driver) CheckMatches(arr *store.Array, dt config.DataType, mt scan.MatchType, uv *value.UserValue, rng *value.Range) error {
	routine, ok := scan.ChooseRoutine(dt, mt, uv, d.Globals.Options.ReverseEndianness)
	if !ok {
		return errors.New("driver: unsupported data type / match relation combination")
	}

	var totalBytes uint64
	for _, sw := range arr.Swaths {
		totalBytes += uint64(len(sw.Data))
	}

	if err := d.Target.Attach(); err != nil {
		return errors.Wrap(err, "driver: failed to attach for narrowing scan")
	}
	defer d.Target.Detach()

	d.Globals.ClearStop()
	d.Globals.SetScanProgress(0)

	var bytesDone uint64
	for si := range arr.Swaths {
		if d.Globals.StopRequested() {
			break
		}
		sw := &arr.Swaths[si]

		for i := range sw.Data {
			if sw.Data[i].Flags == value.FlagsEmpty {
				bytesDone++
				continue
			}

			addr := sw.FirstAddr + uintptr(i)
			old := store.DataToValue(sw, i)

			mem, err := d.Target.PeekData(addr)
			if err != nil {
				d.Diag.Warn("could not access address %#x: %v", addr, err)
				sw.Data[i].Flags = value.FlagsEmpty
				bytesDone++
				continue
			}
			mem.Flags &= old.Flags

			var save value.Flags
			width := routine(&mem, mem.Bytes[:], &old, uv, rng, &save)
			if width == 0 {
				sw.Data[i].Flags = value.FlagsEmpty
			} else {
				sw.Data[i].Flags &= save
			}

			bytesDone++
		}
		d.reportProgress(bytesDone, totalBytes)
	}

	arr.Recount()
	return nil
}

func (d *Driver) reportProgress(done, total uint64) {
	if d.Diag == nil {
		return
	}
	d.Diag.Progress(done, total)
	if total > 0 {
		d.Globals.SetScanProgress(float64(done) / float64(total))
	}
}

