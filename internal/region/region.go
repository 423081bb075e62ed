// Package region enumerates the writable memory regions of a target
// process from /proc/<pid>/maps, the Go-native equivalent of scanmem's
// maps.c.
package region

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ScanLevel selects how aggressively regions are collected.
type ScanLevel int

const (
	// LevelHeapStackExecutable restricts enumeration to [heap], [stack],
	// and the region backing the target executable.
	LevelHeapStackExecutable ScanLevel = iota
	// LevelHeapStackExecutableBSS additionally includes anonymous
	// (no backing file) regions, i.e. BSS-like segments.
	LevelHeapStackExecutableBSS
	// LevelAll includes every readable+writable non-empty region.
	LevelAll
)

// Kind classifies a region by its backing, mirroring region_type.
type Kind int

const (
	KindMisc Kind = iota
	KindCode
	KindExe
	KindHeap
	KindStack
)

// Flags records the permission bits parsed from the maps line.
type Flags struct {
	Read, Write, Exec, Shared, Private bool
}

// Region describes one mapped range of the target's address space.
type Region struct {
	ID       int
	Start    uintptr
	Size     uintptr
	Flags    Flags
	Kind     Kind
	LoadAddr uintptr
	Filename string
}

// End returns the address one past the last byte of the region.
func (r Region) End() uintptr { return r.Start + r.Size }

// Contains reports whether addr falls within [Start, End).
func (r Region) Contains(addr uintptr) bool { return addr >= r.Start && addr < r.End() }

// Enumerate reads /proc/<pid>/maps and returns the regions selected by
// level, assigning ids in discovery order, mirroring readmaps().
func Enumerate(pid int, level ScanLevel) ([]Region, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "region: failed to open %s", path)
	}
	defer f.Close()

	var exePath string
	if level == LevelHeapStackExecutable || level == LevelHeapStackExecutableBSS {
		exePath, err = os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
		if err != nil {
			return nil, errors.Wrap(err, "region: failed to read executable link")
		}
	}

	var regions []Region
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		r, ok, perr := parseMapsLine(sc.Text())
		if perr != nil {
			return nil, perr
		}
		if !ok {
			continue
		}
		if !isUseful(r, level, exePath) {
			continue
		}
		r.ID = len(regions)
		r.Kind = classify(r, exePath)
		regions = append(regions, r)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "region: failed reading maps")
	}

	return regions, nil
}

// parseMapsLine parses one "start-end perms offset dev:minor inode path?"
// line, returning ok=false for regions not readable+writable or of zero
// size (the ones scanmem's readmaps ignores outright).
func parseMapsLine(line string) (Region, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Region{}, false, nil
	}

	addrParts := strings.SplitN(fields[0], "-", 2)
	if len(addrParts) != 2 {
		return Region{}, false, errors.Errorf("region: malformed address range %q", fields[0])
	}
	start, err := strconv.ParseUint(addrParts[0], 16, 64)
	if err != nil {
		return Region{}, false, errors.Wrapf(err, "region: bad start address %q", addrParts[0])
	}
	end, err := strconv.ParseUint(addrParts[1], 16, 64)
	if err != nil {
		return Region{}, false, errors.Wrapf(err, "region: bad end address %q", addrParts[1])
	}

	perms := fields[1]
	if len(perms) < 4 {
		return Region{}, false, nil
	}

	read := perms[0] == 'r'
	write := perms[1] == 'w'
	exec := perms[2] == 'x'
	shared := perms[3] == 's'
	private := perms[3] == 'p'

	if !read || !write || end <= start {
		return Region{}, false, nil
	}

	filename := ""
	if len(fields) >= 6 {
		filename = strings.Join(fields[5:], " ")
	}

	return Region{
		Start:    uintptr(start),
		Size:     uintptr(end - start),
		Flags:    Flags{Read: read, Write: write, Exec: exec, Shared: shared, Private: private},
		LoadAddr: uintptr(start),
		Filename: filename,
	}, true, nil
}

func isUseful(r Region, level ScanLevel, exePath string) bool {
	switch level {
	case LevelAll:
		return true
	case LevelHeapStackExecutableBSS:
		if r.Filename == "" {
			return true
		}
		fallthrough
	case LevelHeapStackExecutable:
		if r.Filename == "[heap]" || r.Filename == "[stack]" {
			return true
		}
		return exePath != "" && r.Filename == exePath
	}
	return false
}

func classify(r Region, exePath string) Kind {
	switch r.Filename {
	case "[heap]":
		return KindHeap
	case "[stack]":
		return KindStack
	case "":
		return KindMisc
	}
	if exePath != "" && r.Filename == exePath {
		if r.Flags.Exec {
			return KindExe
		}
		return KindCode
	}
	if r.Flags.Exec {
		return KindCode
	}
	return KindMisc
}
