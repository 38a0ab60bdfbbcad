package display

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// StringWidth returns the number of terminal cells the byte string
// occupies. Multi-byte characters are measured by their cell width, and
// CSI escape sequences (such as the SGR colour codes a template may emit)
// occupy no cells at all.
func StringWidth(b []byte) int {
	width := 0
	for i := 0; i < len(b); {
		if b[i] == 0x1b && i+1 < len(b) && b[i+1] == '[' {
			// Skip the CSI introducer, parameters and intermediates,
			// up to and including the final byte (0x40-0x7e).
			i += 2
			for i < len(b) && (b[i] < 0x40 || b[i] > 0x7e) {
				i++
			}
			if i < len(b) {
				i++
			}
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			width++
			i++
			continue
		}
		width += runewidth.RuneWidth(r)
		i += size
	}
	return width
}
