// Package display turns transfer state into a single status line: it
// parses the format template, renders fixed-width segments, divides the
// remaining terminal width among dynamic segments, and writes the result
// to the terminal's error stream.
package display

import (
	"os"
	"strings"

	"github.com/svanichkin/pv/calc"
	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
	"github.com/svanichkin/pv/units"
)

// State is the engine-side snapshot a render works from. The display and
// the engine share it for the duration of one pass only.
type State struct {
	ElapsedSeconds float64
	Transferred    int64

	ReadPos    int
	WritePos   int
	BufferSize int
	SpliceUsed bool

	LastWritten  []byte
	PreviousLine []byte
}

// sgrReset is appended when a template left SGR codes active, so colour
// does not bleed onto whatever the terminal shows next.
const sgrReset = "\x1b[m"

// Display holds the parsed format and the rendering state.
type Display struct {
	control   *conf.Control
	out       *os.File
	countType units.Count

	segments  []segment
	assembly  []byte
	barStyles []BarStyle

	// Feature flags recorded by the zero pass; the engine consults them
	// to decide which accumulators to maintain.
	ShowingTimer        bool
	ShowingBytes        bool
	ShowingRate         bool
	ShowingLastWritten  bool
	ShowingPreviousLine bool

	lastWrittenBytes int
	formatUsesColour bool
	sgrActive        bool
	finalUpdate      bool

	utf8OK   bool
	colourOK bool

	buffer          []byte
	stringWidth     int
	stringBytes     int
	prevScreenWidth int

	outputProduced bool
	initialOffset  int64

	// suspended reports whether terminal output is currently suppressed
	// by a background-write condition; foreground reports whether we own
	// the terminal. Either may be nil.
	suspended  func() bool
	foreground func() bool
}

// New builds a Display for the given control, probing the terminal and
// running the zero pass over the parsed template so feature flags are
// available before the first byte moves.
func New(control *conf.Control) *Display {
	d := &Display{
		control:   control,
		out:       os.Stderr,
		countType: units.CountType(control.LineMode, control.DecimalUnits),
		utf8OK:    terminalSupportsUTF8(),
	}

	if control.Width <= 0 || control.Height <= 0 {
		width, height := terminalSize(d.out)
		if !control.WidthSet {
			control.Width = width
		}
		if !control.HeightSet {
			control.Height = height
		}
	}

	d.colourOK = control.Force || terminalSupportsColour(d.out)

	d.reparse()
	return d
}

// SetSuspendedCheck installs the suspended-output probe.
func (d *Display) SetSuspendedCheck(f func() bool) { d.suspended = f }

// SetForegroundCheck installs the foreground-process-group probe.
func (d *Display) SetForegroundCheck(f func() bool) { d.foreground = f }

// SetInitialOffset records a starting offset so percentages and estimates
// measure only what this invocation transferred.
func (d *Display) SetInitialOffset(offset int64) { d.initialOffset = offset }

// LastWrittenBytes returns the widest last-written window any segment
// asked for during the zero pass.
func (d *Display) LastWrittenBytes() int { return d.lastWrittenBytes }

// OutputProduced reports whether any progress line has been emitted.
func (d *Display) OutputProduced() bool { return d.outputProduced }

// format returns the active template.
func (d *Display) format() string {
	if d.control.Format != "" {
		return d.control.Format
	}
	return d.control.DefaultFormat
}

// reparse rebuilds the segment list from the template and re-runs the
// zero pass for the side-effect flags.
func (d *Display) reparse() {
	d.ShowingTimer = false
	d.ShowingBytes = false
	d.ShowingRate = false
	d.ShowingLastWritten = false
	d.ShowingPreviousLine = false
	d.formatUsesColour = false

	d.segments = parseFormat(d.format())

	var zero State
	zeroCalc := calc.New(d.control.RateWindow)
	for i := range d.segments {
		seg := &d.segments[i]
		if seg.name == "" {
			continue
		}
		a := &fmtArgs{d: d, seg: seg, st: &zero, calc: zeroCalc}
		seg.fn(a)
	}

	logs.Debug("format parsed: %d segments from [%s]", len(d.segments), d.format())
}

// Reparse re-reads the template; used when the format is changed at
// runtime.
func (d *Display) Reparse() { d.reparse() }

// Resize refreshes the terminal dimensions after a resize signal, unless
// the user pinned them.
func (d *Display) Resize() {
	width, height := terminalSize(d.out)
	if !d.control.WidthSet {
		d.control.Width = width
	}
	if !d.control.HeightSet {
		d.control.Height = height
	}
	logs.Debug("display resized to %dx%d", d.control.Width, d.control.Height)
}

// bufTail returns the free region of the assembly buffer from offset.
func bufTail(b []byte, offset int) []byte {
	if offset >= len(b) {
		return nil
	}
	return b[offset:]
}

// Render regenerates the status line from the given snapshot. The result
// stays valid until the next Render.
func (d *Display) Render(st *State, c *calc.Calc, final bool) []byte {
	d.finalUpdate = final
	d.sgrActive = false

	need := 4*d.control.Width + 4096
	if cap(d.assembly) < need {
		d.assembly = make([]byte, need)
	}
	assembly := d.assembly[:cap(d.assembly)]

	// First pass: everything whose width is known up front.
	offset := 0
	staticWidth := 0
	dynamicCount := 0
	for i := range d.segments {
		seg := &d.segments[i]
		if seg.name == "" {
			staticWidth += seg.width
			continue
		}
		if seg.dyn && seg.chosenSize == 0 {
			dynamicCount++
			continue
		}

		seg.width = seg.chosenSize
		a := &fmtArgs{d: d, seg: seg, st: st, calc: c, buf: bufTail(assembly, offset)}
		n := seg.fn(a)
		seg.offset = offset
		seg.bytes = n
		seg.width = 0
		if n > 0 {
			seg.width = StringWidth(assembly[offset : offset+n])
		}
		offset += n
		staticWidth += seg.width
	}

	// Second pass: divide what remains of the terminal width among the
	// dynamic segments.
	dynamicWidth := 0
	if d.control.Width > staticWidth {
		dynamicWidth = d.control.Width - staticWidth
	}
	if dynamicCount > 1 {
		dynamicWidth /= dynamicCount
	}

	for i := range d.segments {
		seg := &d.segments[i]
		if seg.name == "" || !seg.dyn || seg.chosenSize != 0 {
			continue
		}
		seg.width = dynamicWidth
		a := &fmtArgs{d: d, seg: seg, st: st, calc: c, buf: bufTail(assembly, offset)}
		n := seg.fn(a)
		seg.offset = offset
		seg.bytes = n
		if n > 0 {
			seg.width = StringWidth(assembly[offset : offset+n])
		} else {
			seg.width = 0
		}
		offset += n
	}

	// Compose the line from the segments in template order.
	line := d.buffer[:0]
	newWidth := 0
	for i := range d.segments {
		seg := &d.segments[i]
		if seg.bytes == 0 {
			continue
		}
		if seg.name == "" {
			line = append(line, seg.text...)
		} else {
			line = append(line, assembly[seg.offset:seg.offset+seg.bytes]...)
		}
		newWidth += seg.width
	}

	if d.sgrActive {
		line = append(line, sgrReset...)
		d.sgrActive = false
	}

	// When a render shrinks under an unchanged terminal width, pad with
	// spaces so leftovers from the previous line are overwritten.
	if newWidth < d.stringWidth && d.control.Width >= d.prevScreenWidth {
		pad := d.stringWidth - newWidth
		if pad > 15 {
			pad = 15
		}
		line = append(line, strings.Repeat(" ", pad)...)
		newWidth += pad
	}

	d.buffer = line
	d.stringBytes = len(line)
	d.stringWidth = newWidth
	d.prevScreenWidth = d.control.Width

	return line
}
