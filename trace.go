package galloc

import (
	"fmt"
	"os"
)

// Trace, when set to true, makes every public entry point write a one-line
// call trace to stderr. It is a package-level switch rather than a
// per-Allocator field so it can be flipped from a debugger session or a
// failing test without threading it through every call site.
var Trace bool

func logCall(format string, args ...interface{}) {
	if !Trace {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
}
