// Package logsetup configures the standard logger. Import it for side effects:
//
//	import _ "github.com/larsks/carcontrol/internal/logsetup"
//
// Set CARCONTROL_LOG_TIMESTAMPS=false when running under a supervisor that
// already timestamps output (e.g. journald), and CARCONTROL_LOG_PREFIX to
// tag every line.
package logsetup

import (
	"log"
	"os"
	"strconv"
	"strings"
)

func init() {
	Configure(os.Getenv("CARCONTROL_LOG_TIMESTAMPS"))
	SetPrefix(os.Getenv("CARCONTROL_LOG_PREFIX"))
}

// SetPrefix sets the standard logger prefix. An empty prefix clears it.
func SetPrefix(prefix string) {
	if prefix != "" && !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}
	log.SetPrefix(prefix)
}

// Configure sets the standard logger flags.
func Configure(timestamps string) {
	enabled := true
	if v, err := strconv.ParseBool(timestamps); err == nil {
		enabled = v
	}

	if enabled {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(0)
	}
}
