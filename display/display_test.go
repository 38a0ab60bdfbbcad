package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pv/calc"
	"github.com/svanichkin/pv/conf"
)

func testControl(format string, width int) *conf.Control {
	return &conf.Control{
		Format:     format,
		Interval:   time.Second,
		RateWindow: 30,
		Width:      width,
		WidthSet:   true,
		Height:     25,
		HeightSet:  true,
		BarStyleName: "plain",
	}
}

func testCalc() *calc.Calc {
	c := calc.New(30)
	c.Update(1.0, 1024, 0, false, 0, false)
	return c
}

func TestParseFormatLiterals(t *testing.T) {
	segs := parseFormat("hello world")
	require.Len(t, segs, 1)
	assert.Equal(t, "hello world", string(segs[0].text))
	assert.Equal(t, 11, segs[0].width)
}

func TestParseFormatDirectives(t *testing.T) {
	segs := parseFormat("%N %b %t %r %a %p %e %I")
	var names []string
	for _, s := range segs {
		if s.name != "" {
			names = append(names, s.name)
		}
	}
	assert.Equal(t, []string{"name", "bytes", "timer", "rate",
		"average-rate", "progress", "eta", "fineta"}, names)
}

func TestParseFormatBraced(t *testing.T) {
	segs := parseFormat("%{timer} %{sgr:bold,red} %16{last-written}")
	require.Len(t, segs, 5)
	assert.Equal(t, "timer", segs[0].name)
	assert.Equal(t, "sgr", segs[2].name)
	assert.Equal(t, "bold,red", segs[2].arg)
	assert.Equal(t, "last-written", segs[4].name)
	assert.Equal(t, 16, segs[4].chosenSize)
}

func TestParseFormatPercentEscape(t *testing.T) {
	segs := parseFormat("100%% done")
	var text strings.Builder
	for _, s := range segs {
		text.Write(s.text)
	}
	assert.Equal(t, "100% done", text.String())
}

func TestParseFormatUnknownPassthrough(t *testing.T) {
	segs := parseFormat("%x %{nosuch}")
	var text strings.Builder
	for _, s := range segs {
		require.Empty(t, s.name)
		text.Write(s.text)
	}
	assert.Equal(t, "%x %{nosuch}", text.String())
}

func TestZeroPassFlags(t *testing.T) {
	d := New(testControl("%t %b %r %64A %L %{sgr:bold}", 80))
	assert.True(t, d.ShowingTimer)
	assert.True(t, d.ShowingBytes)
	assert.True(t, d.ShowingRate)
	assert.True(t, d.ShowingLastWritten)
	assert.True(t, d.ShowingPreviousLine)
	assert.Equal(t, 64, d.LastWrittenBytes())
}

func TestRenderTimer(t *testing.T) {
	d := New(testControl("%t", 80))
	line := d.Render(&State{ElapsedSeconds: 3725}, testCalc(), false)
	assert.Equal(t, "1:02:05", string(line))
}

func TestRenderTimerWithDays(t *testing.T) {
	d := New(testControl("%t", 80))
	line := d.Render(&State{ElapsedSeconds: 90061}, testCalc(), false)
	assert.Equal(t, "1:01:01:01", string(line))
}

func TestRenderBytes(t *testing.T) {
	d := New(testControl("%b", 80))
	line := d.Render(&State{Transferred: 1536}, testCalc(), false)
	assert.Equal(t, "1.50KiB", string(line))
}

func TestRenderRateBracketed(t *testing.T) {
	d := New(testControl("%r", 80))
	c := calc.New(30)
	c.Update(1.0, 2048, 0, false, 0, false)
	line := d.Render(&State{Transferred: 2048, ElapsedSeconds: 1}, c, false)
	assert.Equal(t, "[2.00KiB/s]", string(line))
}

func TestRenderProgressBarFillsWidth(t *testing.T) {
	ctl := testControl("%p", 40)
	ctl.Size = 100
	d := New(ctl)
	c := calc.New(30)
	c.Update(1.0, 50, 100, false, 0, false)

	line := d.Render(&State{Transferred: 50, ElapsedSeconds: 1}, c, false)
	width := StringWidth(line)
	assert.Equal(t, 40, width, "dynamic bar fills the whole terminal width")
	assert.Contains(t, string(line), " 50%")
	assert.Contains(t, string(line), "[")
	assert.Contains(t, string(line), "]")
	assert.Contains(t, string(line), ">")
}

func TestRenderNeverExceedsTerminalWidth(t *testing.T) {
	ctl := testControl("%b %t %r %p %e", 45)
	ctl.Size = 1000
	d := New(ctl)
	c := calc.New(30)
	st := &State{}
	for i := 1; i <= 20; i++ {
		st.ElapsedSeconds = float64(i)
		st.Transferred = int64(i * 50)
		c.Update(st.ElapsedSeconds, st.Transferred, 1000, false, 0, false)
		line := d.Render(st, c, false)
		assert.LessOrEqual(t, StringWidth(line), 45, "pass %d: %q", i, line)
	}
}

func TestRenderUnknownSizeIndicator(t *testing.T) {
	d := New(testControl("%p", 30))
	c := calc.New(30)
	c.Update(1.0, 100, 0, false, 0, false)
	line := d.Render(&State{Transferred: 100, ElapsedSeconds: 1}, c, false)
	assert.Contains(t, string(line), "<=>")
	assert.Equal(t, 30, StringWidth(line))
}

func TestRenderShrinkPadsWithSpaces(t *testing.T) {
	d := New(testControl("a longer literal text", 80))
	line := d.Render(&State{}, testCalc(), false)
	assert.Equal(t, 21, StringWidth(line))

	// The format shrinks under the same terminal width: trailing spaces
	// overwrite what the longer render left behind.
	d.control.Format = "short"
	d.Reparse()
	line = d.Render(&State{}, testCalc(), false)
	assert.Equal(t, "short"+strings.Repeat(" ", 15), string(line))
}

func TestRenderNamePadding(t *testing.T) {
	ctl := testControl("%N", 80)
	ctl.Name = "data"
	d := New(ctl)
	line := d.Render(&State{}, testCalc(), false)
	assert.Equal(t, "     data:", string(line))
}

func TestRenderETA(t *testing.T) {
	ctl := testControl("%e", 80)
	ctl.Size = 1000
	d := New(ctl)
	c := calc.New(30)
	c.Update(1.0, 500, 1000, false, 0, false)
	// 500 bytes left at 500/s: one second remaining.
	line := d.Render(&State{Transferred: 500, ElapsedSeconds: 1}, c, false)
	assert.Equal(t, "ETA 0:00:01", string(line))
}

func TestRenderETABlankOnFinal(t *testing.T) {
	ctl := testControl("%e", 80)
	ctl.Size = 1000
	d := New(ctl)
	c := calc.New(30)
	c.Update(1.0, 1000, 1000, false, 0, true)
	line := d.Render(&State{Transferred: 1000, ElapsedSeconds: 1}, c, true)
	assert.Equal(t, strings.Repeat(" ", len("ETA 0:00:00")), string(line))
}

func TestRenderBufferPercent(t *testing.T) {
	d := New(testControl("%T", 80))
	line := d.Render(&State{ReadPos: 512, WritePos: 0, BufferSize: 1024}, testCalc(), false)
	assert.Equal(t, "{ 50%}", string(line))

	line = d.Render(&State{SpliceUsed: true, BufferSize: 1024}, testCalc(), false)
	assert.Equal(t, "{----}", string(line))
}

func TestRenderLastWritten(t *testing.T) {
	d := New(testControl("%8A", 80))
	line := d.Render(&State{LastWritten: []byte("xyz\x01abcd")}, testCalc(), false)
	assert.Equal(t, "xyz.abcd", string(line))
}

func TestRenderPreviousLine(t *testing.T) {
	d := New(testControl("%16L", 80))
	line := d.Render(&State{PreviousLine: []byte("hello")}, testCalc(), false)
	assert.Equal(t, "hello"+strings.Repeat(" ", 11), string(line))
}

func TestSGRReset(t *testing.T) {
	ctl := testControl("%{sgr:bold,red}text", 80)
	ctl.Force = true // colour is assumed when forcing
	d := New(ctl)
	line := d.Render(&State{}, testCalc(), false)
	assert.Equal(t, "\x1b[1;31mtext\x1b[m", string(line))
}

func TestSGRTrailingResetSuppressesTail(t *testing.T) {
	ctl := testControl("%{sgr:bold}x%{sgr:reset}", 80)
	ctl.Force = true
	d := New(ctl)
	line := d.Render(&State{}, testCalc(), false)
	assert.Equal(t, "\x1b[1mx\x1b[0m", string(line))
}

func TestSGRWithoutColourSupport(t *testing.T) {
	// No terminal on stderr in tests and no force: colour is off, so the
	// sgr directive emits nothing at all.
	d := New(testControl("%{sgr:bold}text", 80))
	line := d.Render(&State{}, testCalc(), false)
	assert.Equal(t, "text", string(line))
}

func TestNumericPercentage(t *testing.T) {
	ctl := testControl("%{progress-amount-only}", 80)
	ctl.Numeric = true
	ctl.Size = 200
	d := New(ctl)
	c := calc.New(30)
	c.Update(1.0, 100, 200, false, 0, false)
	line := d.Render(&State{Transferred: 100, ElapsedSeconds: 1}, c, false)
	assert.Equal(t, "50", string(line))
}

func TestRenderReparseFixedPoint(t *testing.T) {
	// A template with no dynamic segments renders identically when
	// re-parsed and re-rendered from the same state.
	ctl := testControl("%t %b static", 80)
	d := New(ctl)
	st := &State{ElapsedSeconds: 10, Transferred: 4096}
	c := testCalc()
	first := append([]byte{}, d.Render(st, c, false)...)
	d.Reparse()
	second := d.Render(st, c, false)
	assert.Equal(t, string(first), string(second))
}

func TestStringWidth(t *testing.T) {
	assert.Equal(t, 5, StringWidth([]byte("hello")))
	assert.Equal(t, 4, StringWidth([]byte("\x1b[1;31mtext\x1b[m")))
	assert.Equal(t, 2, StringWidth([]byte("◀▶")))
	assert.Equal(t, 1, StringWidth([]byte("█")))
}
