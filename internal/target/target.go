// Package target implements I/O against a live target process: ptrace
// attach/detach, a cached ptrace peek path, and a /proc/<pid>/mem pread
// path, the Go-native equivalent of scanmem's ptrace.c.
package target

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/xyproto/swathscan/internal/value"
)

// maxPeekbufSize bounds the ptrace peek cache, mirroring MAX_PEEKBUF_SIZE.
const maxPeekbufSize = 1024

// wordSize is sizeof(long) on the platforms this cache is tuned for.
const wordSize = 8

// Target represents an attached process and its peek cache.
type Target struct {
	Pid int

	cache []byte
	base  uintptr
	have  bool // whether cache/base refer to this Pid at all
}

// New returns a Target bound to pid, with an empty peek cache.
func New(pid int) *Target {
	return &Target{Pid: pid}
}

// Attach stops the target via PTRACE_ATTACH and waits for the resulting
// SIGSTOP, mirroring attach(). The peek cache is flushed.
func (t *Target) Attach() error {
	if err := unix.PtraceAttach(t.Pid); err != nil {
		return errors.Wrapf(err, "target: failed to attach to %d", t.Pid)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(t.Pid, &ws, 0, nil); err != nil {
		return errors.Wrap(err, "target: error waiting for target to stop")
	}
	if !ws.Stopped() {
		return errors.Errorf("target: process %d did not stop as expected", t.Pid)
	}

	t.cache = nil
	t.base = 0
	t.have = false
	return nil
}

// Detach resumes the target via PTRACE_DETACH, mirroring detach().
func (t *Target) Detach() error {
	if err := unix.PtraceDetach(t.Pid); err != nil {
		return errors.Wrapf(err, "target: failed to detach from %d", t.Pid)
	}
	return nil
}

// isRecoverable reports whether a ptrace errno indicates an unreadable
// address rather than a fatal failure (EIO/EFAULT near page boundaries).
func isRecoverable(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && (errno == syscall.EIO || errno == syscall.EFAULT)
}

// peekWord issues a single PTRACE_PEEKDATA for one machine word at addr.
func (t *Target) peekWord(addr uintptr) (uint64, error) {
	var word [wordSize]byte
	if _, err := unix.PtracePeekData(t.Pid, addr, word[:]); err != nil {
		return 0, err
	}
	return leU64(word[:]), nil
}

// PeekData reads up to 8 bytes at addr through the sliding peek cache,
// mirroring peekdata(): a full cache hit is a pure memcpy, a partial hit
// shifts the cached frame forward (and, if it would overflow
// maxPeekbufSize, compacts the frame first), and a miss reseeds the cache
// from scratch. Bytes that cannot be read because addr+8 crosses an
// unmapped page are recovered by retrying progressively shifted reads,
// and any width that straddles the unreadable boundary has its
// possibility flags cleared rather than failing outright.
func (t *Target) PeekData(addr uintptr) (value.Value, error) {
	var result value.Value
	result.Flags = 0xFFFF

	// full cache hit
	if t.have && addr >= t.base && addr+8-t.base <= uintptr(len(t.cache)) {
		off := addr - t.base
		copy(result.Bytes[:], t.cache[off:off+8])
		return result, nil
	}

	var shiftSize1, shiftSize2 uintptr

	if t.have && addr >= t.base && addr-t.base < uintptr(len(t.cache)) {
		// partial hit: extend the cached frame forward
		shiftSize1 = (addr + 8) - (t.base + uintptr(len(t.cache)))
		shiftSize1 = wordSize * (1 + (shiftSize1-1)/wordSize)

		if uintptr(len(t.cache))+shiftSize1 > maxPeekbufSize {
			shiftSize2 = addr - t.base
			shiftSize2 = wordSize * (shiftSize2 / wordSize)
			t.cache = append([]byte(nil), t.cache[shiftSize2:]...)
			t.base += shiftSize2
		}
	} else {
		// cache miss: invalidate and reseed
		shiftSize1 = 8
		t.cache = t.cache[:0]
		t.base = addr
		t.have = true
	}

	var lastGathered uintptr
	haveLast := false

wordLoop:
	for i := uintptr(0); i < shiftSize1; i += wordSize {
		ptraceAddr := t.base + uintptr(len(t.cache))
		word, err := t.peekWord(ptraceAddr)
		if err != nil {
			if !isRecoverable(err) {
				return value.Value{}, nil
			}
			for j := uintptr(1); j < wordSize; j++ {
				shifted, err2 := t.peekWord(ptraceAddr - j)
				if err2 != nil {
					if isRecoverable(err2) {
						continue
					}
					return value.Value{}, nil
				}

				var buf [wordSize]byte
				putLeU64(buf[:], shifted)

				// the shifted word overlaps the last j cached bytes and adds
				// wordSize-j new ones; either way the cache grows by wordSize-j.
				if uintptr(len(t.cache)) >= j {
					t.cache = append(t.cache[:uintptr(len(t.cache))-j], buf[:]...)
				} else {
					t.cache = append([]byte{}, buf[:]...)
					t.base -= j
				}
				lastGathered = ptraceAddr + wordSize - j
				haveLast = true
				break wordLoop
			}
			// exhausted every shift without a readable word
			return value.Value{}, nil
		}

		var buf [wordSize]byte
		putLeU64(buf[:], word)
		t.cache = append(t.cache, buf[:]...)
		lastGathered = ptraceAddr + wordSize
		haveLast = true
	}

	if !haveLast {
		return value.Value{}, errors.New("target: peekdata made no progress")
	}

	if addr+8 <= lastGathered {
		off := addr - t.base
		copy(result.Bytes[:], t.cache[off:off+8])
		return result, nil
	}

	successful := int(lastGathered - addr)
	off := addr - t.base
	for i := 0; i < 8; i++ {
		if i < successful {
			result.Bytes[i] = t.cache[int(off)+i]
		} else {
			result.Bytes[i] = 0
		}
	}

	if successful < 8 {
		result.Flags &^= value.Flags64b
	}
	if successful < 4 {
		result.Flags &^= value.Flags32b
	}
	if successful < 2 {
		result.Flags &^= value.Flags16b
	}
	if successful < 1 {
		result.Flags = value.FlagsEmpty
	}

	return result, nil
}

// ReadRegion reads count bytes at offset from /proc/<pid>/mem, mirroring
// readregion(). This is the preferred bulk-read path used by a full
// region scan; PeekData remains the fallback/narrowing-scan path.
func ReadRegion(pid int, buf []byte, offset uintptr) (int, error) {
	path := fmt.Sprintf("/proc/%d/mem", pid)
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "target: unable to open %s", path)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return 0, errors.Wrapf(err, "target: failed reading %s at %#x", path, offset)
	}
	return n, nil
}

// SetAddr overwrites the target address with the widest flag shared
// between the currently observed value and the caller's intended value,
// mirroring setaddr()'s "overwrite as much of the data as makes sense,
// and no more" policy. It attaches and detaches around the write.
func (t *Target) SetAddr(addr uintptr, to *value.Value) error {
	if err := t.Attach(); err != nil {
		return err
	}
	defer t.Detach()

	saved, err := t.PeekData(addr)
	if err != nil {
		return errors.Wrapf(err, "target: could not access address %#x", addr)
	}

	switch {
	case saved.Flags.Has(value.FlagU64b) && to.Flags.Has(value.FlagU64b):
		saved.SetU64(to.U64())
	case saved.Flags.Has(value.FlagS64b) && to.Flags.Has(value.FlagS64b):
		saved.SetS64(to.S64())
	case saved.Flags.Has(value.FlagF64b) && to.Flags.Has(value.FlagF64b):
		saved.SetF64(to.F64())
	case saved.Flags.Has(value.FlagU32b) && to.Flags.Has(value.FlagU32b):
		saved.SetU32(to.U32())
	case saved.Flags.Has(value.FlagS32b) && to.Flags.Has(value.FlagS32b):
		saved.SetS32(to.S32())
	case saved.Flags.Has(value.FlagF32b) && to.Flags.Has(value.FlagF32b):
		saved.SetF32(to.F32())
	case saved.Flags.Has(value.FlagU16b) && to.Flags.Has(value.FlagU16b):
		saved.SetU16(to.U16())
	case saved.Flags.Has(value.FlagS16b) && to.Flags.Has(value.FlagS16b):
		saved.SetS16(to.S16())
	case saved.Flags.Has(value.FlagU8b) && to.Flags.Has(value.FlagU8b):
		saved.SetU8(to.U8())
	case saved.Flags.Has(value.FlagS8b) && to.Flags.Has(value.FlagS8b):
		saved.SetS8(to.S8())
	default:
		return errors.New("target: could not determine type to poke")
	}

	for i := 0; i < 8; i += wordSize {
		if _, err := unix.PtracePokeData(t.Pid, addr+uintptr(i), saved.Bytes[i:i+wordSize]); err != nil {
			return errors.Wrapf(err, "target: poke failed at %#x", addr+uintptr(i))
		}
	}

	return nil
}

// ReadArray attaches and reads len(buf) bytes at addr via PeekData,
// word-granular, mirroring read_array()'s ptrace fallback path.
func (t *Target) ReadArray(addr uintptr, buf []byte) error {
	if err := t.Attach(); err != nil {
		return err
	}
	defer t.Detach()

	for i := 0; i < len(buf); i += wordSize {
		v, err := t.PeekData(addr + uintptr(i))
		if err != nil {
			return err
		}
		copy(buf[i:], v.Bytes[:])
	}
	return nil
}

// WriteArray attaches and writes data to addr, word-granular, mirroring
// write_array(). When data is longer than a word, a trailing partial word
// is handled by rewriting the last full word of data (overlapping the
// previous one); when data fits in one word, a word that covers it is
// peeked at a shifted address, modified and written back.
func (t *Target) WriteArray(addr uintptr, data []byte) error {
	if err := t.Attach(); err != nil {
		return err
	}
	defer t.Detach()

	n := len(data)
	i := 0
	for ; i+wordSize < n; i += wordSize {
		if _, err := unix.PtracePokeData(t.Pid, addr+uintptr(i), data[i:i+wordSize]); err != nil {
			return errors.Wrapf(err, "target: write_array poke failed at %#x", addr+uintptr(i))
		}
	}

	if n-i <= 0 {
		return nil
	}

	if n > wordSize {
		if _, err := unix.PtracePokeData(t.Pid, addr+uintptr(n-wordSize), data[n-wordSize:n]); err != nil {
			return errors.Wrapf(err, "target: write_array tail poke failed at %#x", addr+uintptr(n-wordSize))
		}
		return nil
	}

	for j := 0; j <= wordSize-(n-i); j++ {
		var peeked [wordSize]byte
		if _, err := unix.PtracePeekData(t.Pid, addr-uintptr(j), peeked[:]); err != nil {
			if isRecoverable(err) {
				continue
			}
			return errors.Wrap(err, "target: write_array failed")
		}
		copy(peeked[j:], data[i:n])
		if _, err := unix.PtracePokeData(t.Pid, addr-uintptr(j), peeked[:]); err != nil {
			return errors.Wrap(err, "target: write_array failed")
		}
		return nil
	}

	return errors.New("target: write_array could not find a readable alignment")
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
