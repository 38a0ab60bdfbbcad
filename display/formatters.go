package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/svanichkin/pv/calc"
	"github.com/svanichkin/pv/transfer"
	"github.com/svanichkin/pv/units"
)

// Formatters write a directive's content into the assembly buffer and
// return the bytes written. Every formatter tolerates a zero-sized buffer,
// producing no output but still recording its "feature in use" flag, which
// the zero pass at parse time relies on.

func isPrint(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

// clampSeconds bounds a seconds value to [0, 100000 hours].
func clampSeconds(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > calc.ETABound {
		return calc.ETABound
	}
	return s
}

// hms renders whole seconds as H:MM:SS, with a leading day count when the
// value exceeds a day.
func hms(seconds int64) string {
	if seconds > 86400 {
		return fmt.Sprintf("%d:%02d:%02d:%02d",
			seconds/86400, (seconds/3600)%24, (seconds/60)%60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

func (a *fmtArgs) formatTimer() int {
	a.d.ShowingTimer = true
	if len(a.buf) == 0 {
		return 0
	}

	elapsed := clampSeconds(a.st.ElapsedSeconds)
	if a.d.control.Numeric {
		return a.put([]byte(strconv.FormatFloat(elapsed, 'f', 4, 64)))
	}
	return a.put([]byte(hms(int64(elapsed))))
}

func (a *fmtArgs) formatETA() int {
	if a.d.control.Size < 1 || len(a.buf) == 0 {
		return 0
	}

	eta := calc.SecondsRemaining(a.st.Transferred-a.d.initialOffset,
		a.d.control.Size-a.d.initialOffset, a.calc.CurrentAvgRate())
	content := "ETA " + hms(int64(clampSeconds(eta)))

	// The final update blanks the estimate rather than shifting the
	// segments around it.
	if a.d.finalUpdate {
		content = strings.Repeat(" ", len(content))
	}
	return a.put([]byte(content))
}

func (a *fmtArgs) formatFinETA() int {
	if a.d.control.Size < 1 || len(a.buf) == 0 {
		return 0
	}

	eta := clampSeconds(calc.SecondsRemaining(a.st.Transferred-a.d.initialOffset,
		a.d.control.Size-a.d.initialOffset, a.calc.CurrentAvgRate()))

	// Include the date only when completion is more than six hours out.
	layout := "15:04:05"
	if eta > 6*3600 {
		layout = "2006-01-02 15:04:05"
	}
	then := time.Now().Add(time.Duration(eta * float64(time.Second)))
	return a.put([]byte("FIN " + then.Format(layout)))
}

func (a *fmtArgs) formatRate() int {
	a.d.ShowingRate = true
	if len(a.buf) == 0 {
		return 0
	}

	if a.d.control.Numeric {
		mult := 1.0
		if a.d.control.Bits {
			mult = 8.0
		}
		return a.put([]byte(strconv.FormatFloat(mult*a.calc.Rate, 'f', 4, 64)))
	}
	if a.d.control.Bits && !a.d.control.LineMode {
		return a.put([]byte(units.Amount("[%s]", 8*a.calc.Rate, "", "b/s", a.d.countType)))
	}
	return a.put([]byte(units.Amount("[%s]", a.calc.Rate, "/s", "B/s", a.d.countType)))
}

func (a *fmtArgs) formatAverageRate() int {
	if len(a.buf) == 0 {
		return 0
	}

	if a.d.control.Numeric {
		mult := 1.0
		if a.d.control.Bits {
			mult = 8.0
		}
		return a.put([]byte(strconv.FormatFloat(mult*a.calc.AvgRate, 'f', 4, 64)))
	}
	if a.d.control.Bits && !a.d.control.LineMode {
		return a.put([]byte(units.Amount("(%s)", 8*a.calc.AvgRate, "", "b/s", a.d.countType)))
	}
	return a.put([]byte(units.Amount("(%s)", a.calc.AvgRate, "/s", "B/s", a.d.countType)))
}

func (a *fmtArgs) formatBytes() int {
	a.d.ShowingBytes = true
	if len(a.buf) == 0 {
		return 0
	}

	if a.d.control.Numeric {
		mult := int64(1)
		if a.d.control.Bits {
			mult = 8
		}
		return a.put([]byte(strconv.FormatInt(mult*a.st.Transferred, 10)))
	}
	if a.d.control.Bits && !a.d.control.LineMode {
		return a.put([]byte(units.Amount("%s", float64(a.st.Transferred*8), "", "b", a.d.countType)))
	}
	return a.put([]byte(units.Amount("%s", float64(a.st.Transferred), "", "B", a.d.countType)))
}

func (a *fmtArgs) formatBufferPercent() int {
	if len(a.buf) == 0 {
		return 0
	}

	if a.st.SpliceUsed {
		// Data bypassed the buffer entirely this pass.
		return a.put([]byte("{----}"))
	}
	if a.st.BufferSize > 0 {
		pct := calc.Percentage(int64(a.st.ReadPos-a.st.WritePos), int64(a.st.BufferSize))
		return a.put([]byte(fmt.Sprintf("{%3.0f%%}", pct)))
	}
	return 0
}

func (a *fmtArgs) formatLastWritten() int {
	a.d.ShowingLastWritten = true

	bytesToShow := a.seg.chosenSize
	if bytesToShow == 0 {
		bytesToShow = a.seg.width
	}
	if bytesToShow > transfer.LastWrittenBufSize {
		bytesToShow = transfer.LastWrittenBufSize
	}
	if bytesToShow > a.d.lastWrittenBytes {
		a.d.lastWrittenBytes = bytesToShow
	}
	if bytesToShow == 0 || len(a.buf) == 0 {
		return 0
	}
	if bytesToShow > len(a.buf) {
		return 0
	}

	content := make([]byte, bytesToShow)
	window := a.st.LastWritten
	for i := 0; i < bytesToShow; i++ {
		var b byte = ' '
		if off := len(window) - bytesToShow + i; off >= 0 && off < len(window) {
			b = window[off]
		}
		if !isPrint(b) {
			b = '.'
		}
		content[i] = b
	}
	return a.put(content)
}

func (a *fmtArgs) formatPreviousLine() int {
	a.d.ShowingPreviousLine = true

	bytesToShow := a.seg.chosenSize
	if bytesToShow == 0 {
		bytesToShow = a.seg.width
	}
	if bytesToShow > transfer.PrevLineBufSize {
		bytesToShow = transfer.PrevLineBufSize
	}
	if bytesToShow == 0 || len(a.buf) == 0 {
		return 0
	}
	if bytesToShow > len(a.buf) {
		return 0
	}

	content := make([]byte, bytesToShow)
	for i := 0; i < bytesToShow; i++ {
		var b byte = ' '
		if i < len(a.st.PreviousLine) {
			b = a.st.PreviousLine[i]
		}
		if !isPrint(b) {
			b = ' '
		}
		content[i] = b
	}
	return a.put(content)
}

func (a *fmtArgs) formatName() int {
	if len(a.buf) == 0 {
		return 0
	}

	fieldWidth := a.seg.chosenSize
	if fieldWidth < 1 {
		fieldWidth = 9
	}
	if fieldWidth > 500 {
		fieldWidth = 500
	}
	if a.d.control.Name == "" {
		return 0
	}
	name := a.d.control.Name
	if len(name) > 500 {
		name = name[:500]
	}
	return a.put([]byte(fmt.Sprintf("%*s:", fieldWidth, name)))
}

// sgrKeywords maps colour and attribute names to their ECMA-48 SGR codes.
var sgrKeywords = map[string]int{
	"reset": 0, "none": 0,
	"bold": 1, "dim": 2, "italic": 3,
	"underscore": 4, "underline": 4,
	"blink": 5, "reverse": 7,
	"no-bold": 22, "no-dim": 22, "no-italic": 23,
	"no-underscore": 24, "no-underline": 24,
	"no-blink": 25, "no-reverse": 27,
	"black": 30, "red": 31, "green": 32, "brown": 33, "yellow": 33,
	"blue": 34, "magenta": 35, "cyan": 36, "white": 37,
	"fg-black": 30, "fg-red": 31, "fg-green": 32, "fg-brown": 33,
	"fg-yellow": 33, "fg-blue": 34, "fg-magenta": 35, "fg-cyan": 36,
	"fg-white": 37, "fg-default": 39,
	"bg-black": 40, "bg-red": 41, "bg-green": 42, "bg-brown": 43,
	"bg-yellow": 43, "bg-blue": 44, "bg-magenta": 45, "bg-cyan": 46,
	"bg-white": 47, "bg-default": 49,
}

func (a *fmtArgs) formatSGR() int {
	a.d.formatUsesColour = true

	if !a.d.colourOK || a.seg.arg == "" || len(a.buf) == 0 {
		return 0
	}

	var codes []string
	lastCode := -1
	for _, word := range strings.FieldsFunc(a.seg.arg, func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		code := -1
		if n, err := strconv.Atoi(word); err == nil && n >= 0 && n < 255 {
			code = n
		} else if n, ok := sgrKeywords[word]; ok {
			code = n
		}
		if code < 0 {
			continue
		}
		codes = append(codes, strconv.Itoa(code))
		lastCode = code
	}
	if len(codes) == 0 {
		return 0
	}

	// A trailing reset leaves nothing active, so the assembler need not
	// append its own reset.
	a.d.sgrActive = lastCode != 0

	return a.put([]byte("\x1b[" + strings.Join(codes, ";") + "m"))
}

// Bar formatters. The parameter field caches the resolved style so a
// template can mix up to four styles.

func (a *fmtArgs) resolveStyle(name string) {
	if a.seg.parameter == 0 {
		a.seg.parameter = 1 + a.d.barStyleIndex(name)
	}
}

func (a *fmtArgs) formatProgressWith(barSides, includeBar, includeAmount bool) int {
	if len(a.buf) == 0 {
		return 0
	}
	var content []byte
	if a.d.control.Size > 0 || a.d.control.RateGauge {
		content = a.renderBarKnown(barSides, includeBar, includeAmount)
	} else {
		content = a.renderBarUnknown(barSides)
	}
	return a.put(content)
}

func (a *fmtArgs) formatProgress() int {
	a.resolveStyle(a.d.control.BarStyleName)
	return a.formatProgressWith(true, true, true)
}

func (a *fmtArgs) formatProgressBarOnly() int {
	a.resolveStyle(a.d.control.BarStyleName)
	return a.formatProgressWith(false, true, false)
}

func (a *fmtArgs) formatProgressAmountOnly() int {
	if len(a.buf) == 0 {
		return 0
	}
	if a.d.control.Numeric {
		return a.put([]byte(strconv.FormatFloat(a.calc.Percentage, 'f', 0, 64)))
	}
	if a.d.control.Size > 0 || a.d.control.RateGauge {
		return a.formatProgressWith(false, false, true)
	}
	// Unknown size: there is no meaningful number to show.
	return 0
}

func (a *fmtArgs) formatBarPlain() int {
	a.resolveStyle("plain")
	return a.formatProgressWith(false, true, false)
}

func (a *fmtArgs) formatBarBlock() int {
	a.resolveStyle("block")
	return a.formatProgressWith(false, true, false)
}

func (a *fmtArgs) formatBarGranular() int {
	a.resolveStyle("granular")
	return a.formatProgressWith(false, true, false)
}

func (a *fmtArgs) formatBarShaded() int {
	a.resolveStyle("shaded")
	return a.formatProgressWith(false, true, false)
}
