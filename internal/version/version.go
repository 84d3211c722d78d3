// Package version holds build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/larsks/carcontrol/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a one line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}

// Fprint writes the program name and build information to w.
func Fprint(w io.Writer, program string) {
	fmt.Fprintf(w, "%s %s\n", program, String()) //nolint:errcheck
}

// ShowVersion prints build information to stdout.
func ShowVersion() {
	Fprint(os.Stdout, "carcontrol")
}
