// Package diag implements the diagnostic side channel described in
// spec.md §7: the show_error/show_warn/show_info/show_user split of the
// original, reworked as a small Reporter interface with a human-readable
// terminal implementation and a backend-mode (machine-readable) one.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Verbose gates show_debug-equivalent tracing, mirroring the teacher's
// package-level VerboseMode flag: a plain bool checked before writes,
// no structured logger.
var Verbose bool

// Reporter is the diagnostic side channel a command surface writes
// through; every scanning/matching error, warning, and info line crosses
// one of these methods instead of going straight to stderr.
type Reporter interface {
	Error(format string, args ...any)
	Warn(format string, args ...any)
	Info(format string, args ...any)
	User(format string, args ...any)
	Debug(format string, args ...any)
	// Progress reports scan completion as bytesDone out of bytesTotal;
	// human mode prints a dot every ~10%, backend mode emits a line the
	// front-end can parse on every call.
	Progress(bytesDone, bytesTotal uint64)
}

// Human writes terminal-friendly text to Out/Err (os.Stdout/os.Stderr by
// default), mirroring the original's default (non-backend) show_* mode.
type Human struct {
	Out io.Writer
	Err io.Writer

	lastDecile int
}

// NewHuman returns a Human reporter writing to stdout/stderr.
func NewHuman() *Human {
	return &Human{Out: os.Stdout, Err: os.Stderr}
}

func (h *Human) Error(format string, args ...any) {
	fmt.Fprintf(h.errw(), "error: "+format, args...)
}

func (h *Human) Warn(format string, args ...any) {
	fmt.Fprintf(h.errw(), "warn: "+format, args...)
}

func (h *Human) Info(format string, args ...any) {
	fmt.Fprintf(h.errw(), format, args...)
}

func (h *Human) User(format string, args ...any) {
	fmt.Fprintf(h.outw(), format, args...)
}

func (h *Human) Debug(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(h.errw(), "debug: "+format, args...)
}

func (h *Human) Progress(bytesDone, bytesTotal uint64) {
	if bytesTotal == 0 {
		return
	}
	decile := int(bytesDone * 10 / bytesTotal)
	if decile <= h.lastDecile && !(bytesDone == bytesTotal && h.lastDecile < 10) {
		return
	}
	h.lastDecile = decile
	fmt.Fprint(h.errw(), ".")
	if bytesDone >= bytesTotal {
		fmt.Fprint(h.errw(), "\n")
		h.lastDecile = 0
	}
}

func (h *Human) outw() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stdout
}

func (h *Human) errw() io.Writer {
	if h.Err != nil {
		return h.Err
	}
	return os.Stderr
}

// Backend writes machine-readable lines (one tagged line per call) to
// Out, for driving a GameConqueror-style GUI front-end, mirroring the
// original's options.backend == 1 behaviour.
type Backend struct {
	Out io.Writer
}

// NewBackend returns a Backend reporter writing to stdout.
func NewBackend() *Backend {
	return &Backend{Out: os.Stdout}
}

func (b *Backend) w() io.Writer {
	if b.Out != nil {
		return b.Out
	}
	return os.Stdout
}

func (b *Backend) Error(format string, args ...any) {
	fmt.Fprintf(b.w(), "ERROR:"+format+"\n", args...)
}

func (b *Backend) Warn(format string, args ...any) {
	fmt.Fprintf(b.w(), "WARN:"+format+"\n", args...)
}

func (b *Backend) Info(format string, args ...any) {
	fmt.Fprintf(b.w(), "INFO:"+format+"\n", args...)
}

func (b *Backend) User(format string, args ...any) {
	fmt.Fprintf(b.w(), "USER:"+format+"\n", args...)
}

func (b *Backend) Debug(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(b.w(), "DEBUG:"+format+"\n", args...)
}

func (b *Backend) Progress(bytesDone, bytesTotal uint64) {
	fmt.Fprintf(b.w(), "PROGRESS:%d/%d\n", bytesDone, bytesTotal)
}
