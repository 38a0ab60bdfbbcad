package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// programName prefixes error messages, mirroring how the shell invoked us.
var programName = filepath.Base(os.Args[0])

// terminalSize probes the terminal attached to f, falling back to the
// classic 80x25 when there is no terminal to ask.
func terminalSize(f *os.File) (width, height int) {
	width, height = 80, 25
	if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
		width, height = w, h
	}
	return width, height
}

// terminalSupportsUTF8 checks the locale environment for a UTF-8 charmap.
func terminalSupportsUTF8() bool {
	for _, name := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if value := os.Getenv(name); value != "" {
			lower := strings.ToLower(value)
			return strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8")
		}
	}
	return false
}

// terminalSupportsColour is a boolean capability probe: a terminal on
// stderr whose TERM is set and not "dumb".
func terminalSupportsColour(f *os.File) bool {
	if !isatty.IsTerminal(f.Fd()) {
		return false
	}
	termEnv := os.Getenv("TERM")
	return termEnv != "" && termEnv != "dumb"
}

// InForeground reports whether we are in the terminal's foreground
// process group, and so allowed to write to it.
func InForeground() bool {
	fd := int(os.Stderr.Fd())
	pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		// Not a terminal: nothing will stop our writes.
		return true
	}
	return pgrp == unix.Getpgrp()
}

// writeTTY writes to the error stream unless output is suspended by a
// background-write condition.
func (d *Display) writeTTY(b []byte) {
	if d.suspended != nil && d.suspended() {
		return
	}
	_, _ = d.out.Write(b)
}

// Emit writes the rendered line if the display rules allow: only in the
// foreground or when forced. Numeric mode ends each update with a newline
// (one line per update); otherwise a carriage return lets the next refresh
// overwrite the line.
func (d *Display) Emit(line []byte) {
	if d.control.NoDisplay {
		return
	}
	if !d.control.Force {
		if d.foreground != nil && !d.foreground() {
			return
		}
	}
	if d.control.Numeric {
		d.writeTTY(append(append([]byte{}, line...), '\n'))
		d.outputProduced = true
		return
	}
	d.writeTTY(append(append([]byte{}, line...), '\r'))
	d.outputProduced = true
}

// Close finishes the display: a final newline so the shell prompt does not
// land on top of the status line, unless updates were already line-based.
func (d *Display) Close() {
	if d.control.Numeric || d.control.NoDisplay || !d.outputProduced {
		return
	}
	d.writeTTY([]byte("\n"))
}

// Errorf reports an error on the error stream, prefixed with the program
// name. When progress output has been produced, a leading newline moves
// the error below the status line instead of overwriting it in place.
func (d *Display) Errorf(format string, args ...interface{}) {
	var b strings.Builder
	if d.outputProduced {
		b.WriteByte('\n')
	}
	b.WriteString(programName)
	b.WriteString(": ")
	fmt.Fprintf(&b, format, args...)
	b.WriteByte('\n')
	_, _ = d.out.WriteString(b.String())
}

// WriteStats emits a raw line to the error stream, for the end-of-run
// statistics summary.
func (d *Display) WriteStats(line string) {
	d.writeTTY([]byte(line))
}
