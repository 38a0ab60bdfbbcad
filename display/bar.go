package display

import (
	"fmt"

	"github.com/svanichkin/pv/units"
)

// maxBarStyles bounds how many distinct bar styles one template may load.
const maxBarStyles = 4

// glyph is one drawable element of a bar style.
type glyph struct {
	str   string
	width int
}

// BarStyle describes how a progress bar is drawn. filler[0] is the empty
// cell and filler[len-1] the full cell; intermediate entries give sub-cell
// granularity. The tip is drawn at the leading edge of the filled region
// when the style has only empty and full cells. The indicator is the
// moving element for unknown-size transfers.
type BarStyle struct {
	id        int
	indicator glyph
	tip       glyph
	filler    []glyph
}

// barStyleByName returns the named style. Styles beyond plain need a
// UTF-8 terminal; without one the plain style is silently substituted.
func barStyleByName(name string, utf8OK bool) BarStyle {
	if utf8OK {
		switch name {
		case "block":
			return BarStyle{
				id:        2,
				indicator: glyph{"◀▶", 2},
				filler:    []glyph{{" ", 1}, {"█", 1}},
			}
		case "granular":
			return BarStyle{
				id:        3,
				indicator: glyph{"◀▶", 2},
				filler: []glyph{
					{" ", 1}, {"▏", 1}, {"▎", 1}, {"▍", 1},
					{"▌", 1}, {"▋", 1}, {"▊", 1}, {"▉", 1}, {"█", 1},
				},
			}
		case "shaded":
			return BarStyle{
				id:        4,
				indicator: glyph{"▒▓▒", 3},
				filler:    []glyph{{"░", 1}, {"▒", 1}, {"▓", 1}, {"█", 1}},
			}
		}
	}
	return BarStyle{
		id:        1,
		indicator: glyph{"<=>", 3},
		tip:       glyph{">", 1},
		filler:    []glyph{{" ", 1}, {"=", 1}},
	}
}

// barStyleIndex returns the index of the named style in the display's
// loaded-style array, loading it on first use. With no room left, the
// first style is reused.
func (d *Display) barStyleIndex(name string) int {
	style := barStyleByName(name, d.utf8OK)
	for i, loaded := range d.barStyles {
		if loaded.id == style.id {
			return i
		}
	}
	if len(d.barStyles) >= maxBarStyles {
		return 0
	}
	d.barStyles = append(d.barStyles, style)
	return len(d.barStyles) - 1
}

// segmentStyle resolves the bar style for a segment, defaulting to the
// display's configured style name.
func (d *Display) segmentStyle(seg *segment) *BarStyle {
	if seg.parameter > 0 && seg.parameter <= len(d.barStyles) {
		return &d.barStyles[seg.parameter-1]
	}
	if len(d.barStyles) == 0 {
		d.barStyles = append(d.barStyles, barStyleByName(d.control.BarStyleName, d.utf8OK))
	}
	return &d.barStyles[0]
}

// appendGlyph appends one glyph and advances the pad count by its width,
// treating a zero-width glyph as one cell so callers' fill loops always
// progress.
func appendGlyph(buf []byte, g glyph, pad *int) []byte {
	buf = append(buf, g.str...)
	if g.width == 0 {
		*pad++
	} else {
		*pad += g.width
	}
	return buf
}

// renderBarKnown draws a bar for a known size or rate gauge: the bar body
// and, when includeAmount is set, a trailing percentage (known size) or
// current-vs-maximum rate (gauge). The output is bounded to seg.width
// display cells.
func (a *fmtArgs) renderBarKnown(barSides, includeBar, includeAmount bool) []byte {
	style := a.d.segmentStyle(a.seg)

	fullCell := len(style.filler) - 1
	if fullCell < 0 {
		fullCell = 0
	}
	hasTip := fullCell == 1 && style.tip.width > 0

	var afterBar string
	var barPercentage float64
	if a.d.control.Size > 0 {
		barPercentage = a.calc.Percentage
		afterBar = fmt.Sprintf(" %3d%%", int(barPercentage))
	} else {
		if a.calc.RateMax > 0 {
			barPercentage = 100.0 * a.calc.Rate / a.calc.RateMax
		}
		if a.d.control.Bits && !a.d.control.LineMode {
			afterBar = units.Amount("/%s", 8.0*a.calc.RateMax, "", "b/s", a.d.countType)
		} else {
			afterBar = units.Amount("/%s", a.calc.RateMax, "/s", "B/s", a.d.countType)
		}
	}

	if !includeAmount {
		afterBar = ""
	}
	afterBarWidth := StringWidth([]byte(afterBar))

	if !includeBar {
		// Only the amount, without its first character: the leading
		// space of a percentage, or the "/" before a maximum rate.
		if len(afterBar) > 1 {
			return []byte(afterBar[1:])
		}
		return nil
	}

	var barAreaWidth int
	if barSides {
		if a.seg.width < afterBarWidth+2 {
			return nil
		}
		barAreaWidth = a.seg.width - afterBarWidth - 2
	} else {
		if a.seg.width < afterBarWidth {
			return nil
		}
		barAreaWidth = a.seg.width - afterBarWidth
	}

	filledWidth := barAreaWidth * int(barPercentage) / 100
	if hasTip && filledWidth > 0 {
		filledWidth -= style.tip.width
	}

	buf := make([]byte, 0, barAreaWidth*3+len(afterBar)+2)
	if barSides {
		buf = append(buf, '[')
	}

	pad := 0
	for pad < filledWidth && pad < barAreaWidth {
		buf = appendGlyph(buf, style.filler[fullCell], &pad)
	}

	if hasTip && pad < barAreaWidth {
		buf = appendGlyph(buf, style.tip, &pad)
	}

	// A partial cell for styles with intermediate glyphs.
	if pad < barAreaWidth && fullCell > 1 && !hasTip {
		exactWidth := float64(barAreaWidth) * barPercentage / 100.0
		cellPortion := exactWidth - float64(filledWidth)
		cellIndex := int(float64(fullCell) * cellPortion)
		if cellIndex > fullCell {
			cellIndex = fullCell
		}
		buf = appendGlyph(buf, style.filler[cellIndex], &pad)
	}

	for pad < barAreaWidth {
		buf = appendGlyph(buf, style.filler[0], &pad)
	}

	if barSides {
		buf = append(buf, ']')
	}
	buf = append(buf, afterBar...)
	return buf
}

// renderBarUnknown draws the back-and-forth indicator used when the total
// size is unknown.
func (a *fmtArgs) renderBarUnknown(barSides bool) []byte {
	style := a.d.segmentStyle(a.seg)

	var barAreaWidth int
	if barSides {
		if a.seg.width < style.indicator.width+3 {
			return nil
		}
		barAreaWidth = a.seg.width - style.indicator.width - 2
	} else {
		if a.seg.width < style.indicator.width+2 {
			return nil
		}
		barAreaWidth = a.seg.width - style.indicator.width
	}

	// The calculator sweeps the percentage 0..200; values above 100 are
	// reflected so the indicator moves back and forth.
	position := a.calc.Percentage
	for position > 200 {
		position -= 200
	}
	if position > 100 {
		position = 200 - position
	}
	if position < 0 {
		position = 0
	}

	buf := make([]byte, 0, barAreaWidth*3+8)
	if barSides {
		buf = append(buf, '[')
	}

	paddingWidth := float64(barAreaWidth) * position / 100.0
	pad := 0
	for pad < barAreaWidth && float64(pad) < paddingWidth {
		buf = appendGlyph(buf, style.filler[0], &pad)
	}

	buf = append(buf, style.indicator.str...)

	for pad < barAreaWidth {
		buf = appendGlyph(buf, style.filler[0], &pad)
	}

	if barSides {
		buf = append(buf, ']')
	}
	return buf
}
