// Package repl implements the external command surface (spec.md §6): a
// line-oriented dispatcher wiring internal/driver, internal/store,
// internal/sets and internal/target onto the command table, the same
// division of labor as the original's handlers.c sitting on top of
// scanroutines.c and target_mem.c.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/diag"
	"github.com/xyproto/swathscan/internal/driver"
	"github.com/xyproto/swathscan/internal/region"
	"github.com/xyproto/swathscan/internal/scan"
	"github.com/xyproto/swathscan/internal/sets"
	"github.com/xyproto/swathscan/internal/store"
	"github.com/xyproto/swathscan/internal/target"
	"github.com/xyproto/swathscan/internal/value"
)

// Target is the subset of *target.Target's behavior the command surface
// depends on. Tests substitute a fake implementation so command logic can
// be exercised without a live ptraced process, the same way store_test.go
// exercises internal/store without one.
type Target interface {
	SetAddr(addr uintptr, to *value.Value) error
	PeekData(addr uintptr) (value.Value, error)
	ReadArray(addr uintptr, buf []byte) error
	WriteArray(addr uintptr, data []byte) error
}

// REPL holds the session state a command dispatch mutates: the globals,
// the live match store, the last-enumerated region list, and the
// diagnostic side channel commands report through.
type REPL struct {
	Globals *config.Globals
	Diag    diag.Reporter

	store     *store.Array
	regions   []region.Region
	newTarget func(pid int) Target
}

// New returns a REPL bound to g, reporting through d.
func New(g *config.Globals, d diag.Reporter) *REPL {
	return &REPL{
		Globals:   g,
		Diag:      d,
		newTarget: func(pid int) Target { return target.New(pid) },
	}
}

// Run reads one command per line from in until EOF, dispatching each to
// Dispatch and printing exactly one diagnostic per failing command,
// mirroring spec.md §7's "each command emits exactly one diagnostic on
// failure and returns to the prompt" contract.
func (r *REPL) Run(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := r.Dispatch(line); err != nil {
			r.Diag.Error("%v\n", err)
		}
	}
}

// Dispatch parses and executes one command line.
func (r *REPL) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch {
	case cmd == "pid":
		return r.cmdPid(args)
	case cmd == "reset":
		return r.cmdReset()
	case cmd == "snapshot":
		return r.scan(scan.MatchAny, nil, nil)
	case cmd == "update":
		return r.scan(scan.MatchUpdate, nil, nil)
	case cmd == "list":
		return r.cmdList()
	case cmd == "delete":
		return r.cmdDelete(args)
	case cmd == "dregion":
		return r.cmdDregion(args)
	case cmd == "set":
		return r.cmdSet(args)
	case cmd == "watch":
		return r.cmdWatch(args)
	case cmd == "dump":
		return r.cmdDump(args)
	case cmd == "write":
		return r.cmdWrite(args)
	case cmd == "option":
		return r.cmdOption(args)
	case strings.HasPrefix(line, `"`):
		return r.cmdStringScan(strings.TrimPrefix(line, `"`))
	case cmd == ">" || cmd == "<" || cmd == "=" || cmd == "!=" || cmd == "+" || cmd == "-":
		return r.cmdOperatorScan(cmd, args)
	default:
		return r.cmdNumberScan(line)
	}
}

func (r *REPL) cmdPid(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: pid N")
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrap(err, "pid: bad pid")
	}
	r.Globals.Pid = pid
	r.store = nil
	r.regions = nil
	return nil
}

func (r *REPL) cmdReset() error {
	r.store = nil
	regions, err := region.Enumerate(r.Globals.Pid, region.ScanLevel(r.Globals.Options.RegionScanLevel))
	if err != nil {
		return errors.Wrap(err, "reset: failed to enumerate regions")
	}
	r.regions = regions
	return nil
}

func (r *REPL) newDriver() *driver.Driver {
	return driver.New(r.Globals, r.Diag)
}

// scan runs either the initial or the narrowing pass depending on whether
// a match store already exists, mirroring the command table's "number
// literal: initial or narrowing scan" rule.
func (r *REPL) scan(mt scan.MatchType, uv *value.UserValue, rng *value.Range) error {
	d := r.newDriver()
	dt := r.Globals.Options.ScanDataType

	if r.store == nil {
		arr, err := d.SearchRegions(dt, mt, uv, rng)
		if err != nil {
			return errors.Wrap(err, "scan")
		}
		r.store = arr
		return nil
	}

	if err := d.CheckMatches(r.store, dt, mt, uv, rng); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

func (r *REPL) cmdNumberScan(literal string) error {
	uv, ok := value.ParseNumber(literal)
	if !ok {
		return errors.Errorf("not a number: %q", literal)
	}
	config.NarrowToDataType(&uv, r.Globals.Options.ScanDataType)
	return r.scan(scan.MatchEqualTo, &uv, nil)
}

func (r *REPL) cmdStringScan(text string) error {
	uv := value.UserValue{String: text, Flags: value.Flags(len(text))}
	return r.scan(scan.MatchEqualTo, &uv, nil)
}

func (r *REPL) cmdOperatorScan(op string, args []string) error {
	var uv *value.UserValue
	var mt scan.MatchType

	hasArg := len(args) > 0

	switch op {
	case ">":
		mt = scan.MatchIncreased
		if hasArg {
			mt = scan.MatchGreaterThan
		}
	case "<":
		mt = scan.MatchDecreased
		if hasArg {
			mt = scan.MatchLessThan
		}
	case "+":
		mt = scan.MatchIncreased
		if hasArg {
			mt = scan.MatchIncreasedBy
		}
	case "-":
		mt = scan.MatchDecreased
		if hasArg {
			mt = scan.MatchDecreasedBy
		}
	case "=":
		mt = scan.MatchEqualTo
	case "!=":
		mt = scan.MatchNotEqualTo
	}

	if hasArg {
		parsed, ok := value.ParseNumber(args[0])
		if !ok {
			return errors.Errorf("not a number: %q", args[0])
		}
		config.NarrowToDataType(&parsed, r.Globals.Options.ScanDataType)
		uv = &parsed
	} else if mt == scan.MatchEqualTo || mt == scan.MatchNotEqualTo {
		return errors.Errorf("%s requires a value", op)
	}

	return r.scan(mt, uv, nil)
}

func (r *REPL) cmdList() error {
	if r.store == nil {
		return errors.New("list: no scan has been run yet")
	}
	n := r.store.NumMatches()
	for i := uint64(0); i < n; i++ {
		loc, ok := r.store.NthMatch(i)
		if !ok {
			break
		}
		addr := r.store.AddressOf(loc)
		v := store.DataToValue(&r.store.Swaths[loc.SwathIndex], loc.Index)
		r.Diag.User("[%d] %#x: %s\n", i, addr, v.String())
	}
	return nil
}

func (r *REPL) cmdDelete(args []string) error {
	if r.store == nil {
		return errors.New("delete: no scan has been run yet")
	}
	if len(args) != 1 {
		return errors.New("usage: delete set")
	}
	set, err := sets.Parse(args[0], r.store.NumMatches())
	if err != nil {
		return errors.Wrap(err, "delete")
	}
	for _, n := range set.Members() {
		loc, ok := r.store.NthMatch(n)
		if !ok {
			continue
		}
		addr := r.store.AddressOf(loc)
		r.store.DeleteInAddressRange(addr, addr+1)
	}
	return nil
}

func (r *REPL) cmdDregion(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dregion set")
	}
	set, err := sets.Parse(args[0], uint64(len(r.regions)))
	if err != nil {
		return errors.Wrap(err, "dregion")
	}

	var kept []region.Region
	for _, reg := range r.regions {
		if set.Contains(uint64(reg.ID)) {
			if r.store != nil {
				r.store.DeleteInAddressRange(reg.Start, reg.End())
			}
			continue
		}
		kept = append(kept, reg)
	}
	r.regions = kept
	return nil
}

// cmdSet writes v to the listed matches (or all matches if ids is
// omitted), optionally repeating every delay seconds until the globals'
// stop-flag is raised, mirroring the `set [ids=]v[/delay]` command.
func (r *REPL) cmdSet(args []string) error {
	if r.store == nil {
		return errors.New("set: no scan has been run yet")
	}
	if len(args) != 1 {
		return errors.New("usage: set [ids=]v[/delay]")
	}

	spec := args[0]
	idsPart, rest, hasIDs := strings.Cut(spec, "=")
	if !hasIDs {
		rest = spec
	}

	valuePart, delayPart, hasDelay := strings.Cut(rest, "/")

	uv, ok := value.ParseNumber(valuePart)
	if !ok {
		return errors.Errorf("set: not a number: %q", valuePart)
	}
	config.NarrowToDataType(&uv, r.Globals.Options.ScanDataType)

	var set *sets.Set
	if hasIDs {
		parsedSet, err := sets.Parse(idsPart, r.store.NumMatches())
		if err != nil {
			return errors.Wrap(err, "set")
		}
		set = parsedSet
	}

	writeOnce := func() error {
		t := r.newTarget(r.Globals.Pid)
		n := r.store.NumMatches()
		for i := uint64(0); i < n; i++ {
			if set != nil && !set.Contains(i) {
				continue
			}
			loc, ok := r.store.NthMatch(i)
			if !ok {
				continue
			}

			// each match keeps its own recorded width; the write must use
			// that match's flags, not one global width for every match,
			// mirroring handlers.c's setaddr(): old = data_to_val(...);
			// v.flags = old.flags; uservalue2value(&v, &userval).
			old := store.DataToValue(&r.store.Swaths[loc.SwathIndex], loc.Index)
			if old.Flags == value.FlagsEmpty {
				continue
			}
			var v value.Value
			v.Flags = old.Flags
			value.ToValue(&v, &uv)

			addr := r.store.AddressOf(loc)
			if err := t.SetAddr(addr, &v); err != nil {
				r.Diag.Warn("set: failed at %#x: %v", addr, err)
			}
		}
		return nil
	}

	if !hasDelay {
		return writeOnce()
	}

	delaySeconds, err := strconv.ParseFloat(delayPart, 64)
	if err != nil {
		return errors.Wrap(err, "set: bad delay")
	}

	r.Globals.ClearStop()
	for {
		if err := writeOnce(); err != nil {
			return err
		}
		if r.Globals.StopRequested() {
			return nil
		}
		time.Sleep(time.Duration(delaySeconds * float64(time.Second)))
		if r.Globals.StopRequested() {
			return nil
		}
	}
}

// cmdWatch polls the given match once per second until the stop-flag is
// raised, emitting a timestamped line whenever the value changes.
func (r *REPL) cmdWatch(args []string) error {
	if r.store == nil {
		return errors.New("watch: no scan has been run yet")
	}
	if len(args) != 1 {
		return errors.New("usage: watch id")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "watch: bad id")
	}
	loc, ok := r.store.NthMatch(id)
	if !ok {
		return errors.Errorf("watch: no such match %d", id)
	}
	addr := r.store.AddressOf(loc)

	t := r.newTarget(r.Globals.Pid)
	var last value.Value
	haveLast := false

	r.Globals.ClearStop()
	for {
		cur, err := t.PeekData(addr)
		if err == nil && (!haveLast || cur.Bytes != last.Bytes) {
			r.Diag.User("[%s] %#x: %s\n", time.Now().Format(time.RFC3339), addr, cur.String())
			last = cur
			haveLast = true
		}
		if r.Globals.StopRequested() {
			return nil
		}
		time.Sleep(time.Second)
		if r.Globals.StopRequested() {
			return nil
		}
	}
}

// cmdDump performs a linear hex dump of len bytes starting at addr, 16
// bytes per line, with an optional ASCII gutter gated by the
// dump_with_ascii option, writing to a file if one is given or stdout
// otherwise.
func (r *REPL) cmdDump(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: dump addr len [file]")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return errors.Wrap(err, "dump: bad address")
	}
	length, err := strconv.Atoi(args[1])
	if err != nil || length <= 0 {
		return errors.New("dump: bad length")
	}

	buf := make([]byte, length)
	t := r.newTarget(r.Globals.Pid)
	if err := t.ReadArray(uintptr(addr), buf); err != nil {
		return errors.Wrap(err, "dump")
	}

	out := io.Writer(os.Stdout)
	if len(args) >= 3 {
		f, err := os.Create(args[2])
		if err != nil {
			return errors.Wrap(err, "dump: failed to create output file")
		}
		defer f.Close()
		out = f
	}

	for off := 0; off < len(buf); off += 16 {
		end := off + 16
		if end > len(buf) {
			end = len(buf)
		}
		line := buf[off:end]
		fmt.Fprintf(out, "%08x:", uint64(addr)+uint64(off))
		for _, b := range line {
			fmt.Fprintf(out, " %02x", b)
		}
		if r.Globals.Options.DumpWithASCII {
			fmt.Fprint(out, "  ")
			for _, b := range line {
				if b >= 0x20 && b < 0x7f {
					fmt.Fprintf(out, "%c", b)
				} else {
					fmt.Fprint(out, ".")
				}
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

// cmdWrite performs a typed write bypassing the match store entirely,
// for poking an address the user already knows.
func (r *REPL) cmdWrite(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: write type addr v")
	}
	typ, addrStr, valStr := args[0], args[1], args[2]

	addr, err := strconv.ParseUint(strings.TrimPrefix(addrStr, "0x"), 16, 64)
	if err != nil {
		return errors.Wrap(err, "write: bad address")
	}

	t := r.newTarget(r.Globals.Pid)

	switch typ {
	case "bytearray":
		tokens := strings.Split(valStr, ",")
		uv, ok := value.ParseByteArray(tokens)
		if !ok {
			return errors.New("write: bad bytearray literal")
		}
		return t.WriteArray(uintptr(addr), uv.ByteArray)
	case "string":
		return t.WriteArray(uintptr(addr), []byte(valStr))
	default:
		uv, ok := value.ParseNumber(valStr)
		if !ok {
			return errors.Errorf("write: not a number: %q", valStr)
		}
		var v value.Value
		v.Flags = flagForWriteType(typ)
		if v.Flags == value.FlagsEmpty {
			return errors.Errorf("write: unknown type %q", typ)
		}
		value.ToValue(&v, &uv)
		return t.WriteArray(uintptr(addr), v.Bytes[:byteWidthFor(v.Flags)])
	}
}

func (r *REPL) cmdOption(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: option key value")
	}
	key, val := args[0], args[1]

	switch key {
	case "scan_data_type":
		dt, ok := parseDataType(val)
		if !ok {
			return errors.Errorf("option: unknown scan_data_type %q", val)
		}
		r.Globals.Options.ScanDataType = dt
	case "region_scan_level":
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrap(err, "option: bad region_scan_level")
		}
		r.Globals.Options.RegionScanLevel = n
	case "detect_reverse_change":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Wrap(err, "option: bad detect_reverse_change")
		}
		r.Globals.Options.DetectReverseChange = b
	case "dump_with_ascii":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Wrap(err, "option: bad dump_with_ascii")
		}
		r.Globals.Options.DumpWithASCII = b
	default:
		return errors.Errorf("option: unknown key %q", key)
	}
	return nil
}

func parseDataType(s string) (config.DataType, bool) {
	switch s {
	case "anynumber":
		return config.DataAnyNumber, true
	case "anyinteger":
		return config.DataAnyInteger, true
	case "anyfloat":
		return config.DataAnyFloat, true
	case "int8":
		return config.DataInteger8, true
	case "int16":
		return config.DataInteger16, true
	case "int32":
		return config.DataInteger32, true
	case "int64":
		return config.DataInteger64, true
	case "float32":
		return config.DataFloat32, true
	case "float64":
		return config.DataFloat64, true
	case "bytearray":
		return config.DataByteArray, true
	case "string":
		return config.DataString, true
	}
	return config.DataAnyNumber, false
}

func flagForWriteType(typ string) value.Flags {
	switch typ {
	case "i8":
		return value.FlagU8b
	case "i16":
		return value.FlagU16b
	case "i32":
		return value.FlagU32b
	case "i64":
		return value.FlagU64b
	case "f32":
		return value.FlagF32b
	case "f64":
		return value.FlagF64b
	}
	return value.FlagsEmpty
}

func byteWidthFor(f value.Flags) int {
	switch {
	case f.Has(value.FlagU64b), f.Has(value.FlagF64b):
		return 8
	case f.Has(value.FlagU32b), f.Has(value.FlagF32b):
		return 4
	case f.Has(value.FlagU16b):
		return 2
	default:
		return 1
	}
}

