// Package logs provides the verbosity-gated debug logging used across the
// program. Timestamps are in UTC; local-time conversion is avoided because
// the logger can be reached from signal-edge handling paths.
package logs

import (
	"log"
	"os"

	"github.com/dustin/go-humanize"
)

// Verbose enables debug output when set from the command line.
var Verbose bool

func init() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}

// Debug prints a formatted debug message only when verbose logging is
// enabled.
func Debug(format string, args ...interface{}) {
	if Verbose {
		log.Printf(format, args...)
	}
}

// Size renders a byte count in human-readable IEC form for debug messages.
func Size(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
