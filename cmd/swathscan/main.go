// Command swathscan is an interactive ptrace-based memory scanner for
// Linux, the Go-native equivalent of scanmem's command-line front end.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/swathscan/internal/config"
	"github.com/xyproto/swathscan/internal/diag"
	"github.com/xyproto/swathscan/internal/repl"
)

const versionString = "swathscan 0.1.0"

var VerboseMode bool

func main() {
	var (
		pidFlag       = flag.Int("pid", config.DefaultPid(), "pid of the target process to attach to")
		backendFlag   = flag.Bool("backend", false, "machine-readable output, for driving a front-end")
		verbose       = flag.Bool("v", false, "verbose mode (show debug tracing)")
		verboseLong   = flag.Bool("verbose", false, "verbose mode (show debug tracing)")
		versionShort  = flag.Bool("V", false, "print version information and exit")
		version       = flag.Bool("version", false, "print version information and exit")
		commandFlag   = flag.String("c", "", "run a single command non-interactively and exit")
	)
	flag.Parse()

	if *version || *versionShort {
		fmt.Println(versionString)
		os.Exit(0)
	}

	VerboseMode = *verbose || *verboseLong
	diag.Verbose = VerboseMode

	globals := config.NewGlobals()
	if *pidFlag != 0 {
		globals.Pid = *pidFlag
	}
	globals.Options.Backend = *backendFlag

	var reporter diag.Reporter
	if globals.Options.Backend {
		reporter = diag.NewBackend()
	} else {
		reporter = diag.NewHuman()
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "debug main: pid=%d backend=%v\n", globals.Pid, globals.Options.Backend)
	}

	session := repl.New(globals, reporter)

	if *commandFlag != "" {
		if err := session.Dispatch(*commandFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	session.Run(bufio.NewReader(os.Stdin))
}
