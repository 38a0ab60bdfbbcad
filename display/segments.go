package display

import "github.com/svanichkin/pv/calc"

// segment is one piece of the parsed template: either a literal slice of
// the template text, or a directive rendered into the shared assembly
// buffer at each refresh.
type segment struct {
	name string // directive name; empty for a literal
	fn   formatterFn
	dyn  bool

	chosenSize int    // fixed width chosen in the template; 0 = dynamic
	arg        string // the {name:arg} argument
	parameter  int    // bar style index + 1, resolved at first use

	text []byte // literal content

	// Slot in the assembly buffer filled by the most recent render.
	offset int
	bytes  int
	width  int
}

// fmtArgs is what a formatter sees: the display, its segment, the transfer
// snapshot and calculator for this pass, and the free region of the
// assembly buffer. During the zero pass buf is empty; formatters must
// still record their side-effect flags then.
type fmtArgs struct {
	d    *Display
	seg  *segment
	st   *State
	calc *calc.Calc
	buf  []byte
}

// put bounds content to the available buffer space and copies it in,
// returning the number of bytes stored.
func (a *fmtArgs) put(content []byte) int {
	if len(a.buf) == 0 {
		return 0
	}
	n := copy(a.buf, content)
	return n
}

type formatterFn func(a *fmtArgs) int

// directiveEntry ties a template name to its formatter. The dynamic bit is
// a property of the directive kind, not of an individual use.
type directiveEntry struct {
	dynamic bool
	fn      formatterFn
}

// directiveTable maps braced names to their formatters.
var directiveTable = map[string]directiveEntry{
	"progress":             {dynamic: true, fn: (*fmtArgs).formatProgress},
	"progress-bar-only":    {dynamic: true, fn: (*fmtArgs).formatProgressBarOnly},
	"progress-amount-only": {dynamic: false, fn: (*fmtArgs).formatProgressAmountOnly},
	"bar-plain":            {dynamic: true, fn: (*fmtArgs).formatBarPlain},
	"bar-block":            {dynamic: true, fn: (*fmtArgs).formatBarBlock},
	"bar-granular":         {dynamic: true, fn: (*fmtArgs).formatBarGranular},
	"bar-shaded":           {dynamic: true, fn: (*fmtArgs).formatBarShaded},
	"timer":                {dynamic: false, fn: (*fmtArgs).formatTimer},
	"eta":                  {dynamic: false, fn: (*fmtArgs).formatETA},
	"fineta":               {dynamic: false, fn: (*fmtArgs).formatFinETA},
	"rate":                 {dynamic: false, fn: (*fmtArgs).formatRate},
	"average-rate":         {dynamic: false, fn: (*fmtArgs).formatAverageRate},
	"bytes":                {dynamic: false, fn: (*fmtArgs).formatBytes},
	"transferred":          {dynamic: false, fn: (*fmtArgs).formatBytes},
	"buffer-percent":       {dynamic: false, fn: (*fmtArgs).formatBufferPercent},
	"last-written":         {dynamic: true, fn: (*fmtArgs).formatLastWritten},
	"previous-line":        {dynamic: true, fn: (*fmtArgs).formatPreviousLine},
	"name":                 {dynamic: false, fn: (*fmtArgs).formatName},
	"sgr":                  {dynamic: false, fn: (*fmtArgs).formatSGR},
}

// letterNames maps single-letter directives to their braced equivalents.
var letterNames = map[byte]string{
	'p': "progress",
	't': "timer",
	'e': "eta",
	'I': "fineta",
	'r': "rate",
	'a': "average-rate",
	'b': "bytes",
	'T': "buffer-percent",
	'A': "last-written",
	'L': "previous-line",
	'N': "name",
}

// parseFormat splits a template into literal and directive segments. A
// directive is "%" plus an optional decimal size, then a letter or a
// braced "{name}" or "{name:arg}". "%%" collapses to a literal percent;
// anything unrecognised passes through verbatim.
func parseFormat(format string) []segment {
	var segments []segment
	raw := []byte(format)

	appendLiteral := func(text []byte) {
		if len(text) == 0 {
			return
		}
		segments = append(segments, segment{
			text:  text,
			bytes: len(text),
			width: StringWidth(text),
		})
	}

	for pos := 0; pos < len(raw); {
		if raw[pos] != '%' {
			// Take the literal run up to the next directive.
			end := pos
			for end < len(raw) && raw[end] != '%' {
				end++
			}
			appendLiteral(raw[pos:end])
			pos = end
			continue
		}

		percentAt := pos
		pos++

		if pos >= len(raw) {
			// A bare trailing "%" passes through.
			appendLiteral(raw[percentAt:])
			break
		}

		if raw[pos] == '%' {
			appendLiteral(raw[percentAt : percentAt+1])
			pos++
			continue
		}

		chosenSize := 0
		for pos < len(raw) && raw[pos] >= '0' && raw[pos] <= '9' {
			chosenSize = chosenSize*10 + int(raw[pos]-'0')
			pos++
		}
		if pos >= len(raw) {
			appendLiteral(raw[percentAt:])
			break
		}

		var name, arg string
		var matched bool
		seqEnd := pos + 1

		if raw[pos] == '{' {
			// Scan to the closing brace, stopping at '%' so a broken
			// "%{foo%p" passes the prefix through and reparses at the
			// percent.
			end := pos + 1
			colon := -1
			for end < len(raw) && raw[end] != '}' && raw[end] != '%' {
				if raw[end] == ':' && colon < 0 {
					colon = end
				}
				end++
			}
			if end < len(raw) && raw[end] == '}' {
				if colon >= 0 {
					name = string(raw[pos+1 : colon])
					arg = string(raw[colon+1 : end])
				} else {
					name = string(raw[pos+1 : end])
				}
				if _, ok := directiveTable[name]; ok {
					matched = true
					seqEnd = end + 1
				}
			}
			if !matched {
				seqEnd = end
			}
		} else if braced, ok := letterNames[raw[pos]]; ok {
			name = braced
			matched = true
			seqEnd = pos + 1
		}

		if !matched {
			// Unknown sequence: pass it through verbatim.
			appendLiteral(raw[percentAt:seqEnd])
			pos = seqEnd
			continue
		}

		entry := directiveTable[name]
		segments = append(segments, segment{
			name:       name,
			fn:         entry.fn,
			dyn:        entry.dynamic,
			chosenSize: chosenSize,
			arg:        arg,
		})
		pos = seqEnd
	}

	return segments
}
