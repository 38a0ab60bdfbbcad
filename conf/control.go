package conf

import (
	"fmt"
	"strings"
	"time"
)

// Limits and defaults for the transfer controls.
const (
	// MinInterval and MaxInterval bound the display refresh interval.
	MinInterval = 100 * time.Millisecond
	MaxInterval = 600 * time.Second

	// DefaultBufferSize is used when the output block size cannot be
	// determined; BufferSizeMax caps the block-size-derived default.
	DefaultBufferSize = 409600
	BufferSizeMax     = 524288

	// MinRateWindow is the smallest allowed average-rate window.
	MinRateWindow = 1

	// MaxLastWritten bounds the last-written preview size.
	MaxLastWritten = 256
)

// Control holds the full configuration of a transfer. Before the transfer
// starts, main fills in Size from the inputs when none was given and
// TargetBufferSize from the output block size when it is zero. After that
// only Width and Height change, tracking the terminal across resize
// signals unless pinned.
type Control struct {
	// Display toggles.
	ShowProgress    bool
	ShowTimer       bool
	ShowETA         bool
	ShowFinETA      bool
	ShowRate        bool
	ShowAverageRate bool
	ShowBytes       bool
	ShowBufPercent  bool
	ShowLastWritten uint
	ShowStats       bool
	RateGauge       bool
	Numeric         bool
	NoDisplay       bool
	Bits            bool
	DecimalUnits    bool
	Force           bool
	Cursor          bool

	// Format controls.
	Format        string // user-supplied template, empty for default
	DefaultFormat string // synthesised from the toggles above
	BarStyleName  string

	// Transfer modifiers.
	RateLimit        int64
	TargetBufferSize int
	NoSplice         bool
	SkipErrors       uint // 0 off, 1 quiet, >=2 verbose
	ErrorSkipBlock   int64
	StopAtSize       bool
	SyncAfterWrite   bool
	DirectIO         bool
	SparseOutput     bool
	DiscardInput     bool

	// Metadata.
	Size       int64
	Name       string
	Interval   time.Duration
	Width      int
	Height     int
	WidthSet   bool // pinned by the user, not auto-sized
	HeightSet  bool
	Wait       bool
	DelayStart time.Duration
	RateWindow int // seconds
	OutputPath string // empty or "-" means stdout
	LineMode   bool
	NullLines  bool

	// Input files; "-" means stdin.
	Files []string
}

// LineSeparator returns the byte that terminates a line under the current
// line controls.
func (c *Control) LineSeparator() byte {
	if c.NullLines {
		return 0
	}
	return '\n'
}

// HistoryInterval returns the sample spacing in seconds for the
// average-rate history ring.
func (c *Control) HistoryInterval() int {
	if c.RateWindow < 20 {
		return 1
	}
	return 5
}

// HistoryLen returns the ring capacity for the average-rate history.
func (c *Control) HistoryLen() int {
	if c.RateWindow < 20 {
		return c.RateWindow + 1
	}
	return c.RateWindow/5 + 1
}

// synthesiseDefaultFormat builds the default display template from the
// enabled toggles, in the fixed segment order the display uses.
func (c *Control) synthesiseDefaultFormat() {
	var parts []string
	add := func(enabled bool, seg string) {
		if enabled {
			parts = append(parts, seg)
		}
	}

	if c.Numeric {
		add(c.ShowTimer, "%t")
		add(c.ShowBytes, "%b")
		add(c.ShowRate, "%r")
		add(!(c.ShowBytes || c.ShowRate), "%{progress-amount-only}")
	} else {
		add(c.Name != "", "%N")
		add(c.ShowBytes, "%b")
		add(c.ShowBufPercent, "%T")
		add(c.ShowTimer, "%t")
		add(c.ShowRate, "%r")
		add(c.ShowAverageRate, "%a")
		add(c.ShowProgress, "%p")
		add(c.ShowETA, "%e")
		add(c.ShowFinETA, "%I")
		if c.ShowLastWritten > 0 {
			parts = append(parts, fmt.Sprintf("%%%dA", c.ShowLastWritten))
		}
	}

	c.DefaultFormat = strings.Join(parts, " ")
}

// validate applies the bounds and mutual-exclusion rules, and fills in the
// defaults that depend on other options.
func (c *Control) validate() error {
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.Interval > MaxInterval {
		c.Interval = MaxInterval
	}
	if c.RateWindow < MinRateWindow {
		c.RateWindow = MinRateWindow
	}
	if c.ShowLastWritten > MaxLastWritten {
		c.ShowLastWritten = MaxLastWritten
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative", ErrConfig)
	}
	if c.Numeric && c.ShowLastWritten > 0 {
		return fmt.Errorf("%w: numeric output cannot include the last bytes written", ErrConfig)
	}
	if c.LineMode && c.SparseOutput {
		return fmt.Errorf("%w: line mode cannot be used with sparse output", ErrConfig)
	}
	if c.DiscardInput && c.OutputPath != "" && c.OutputPath != "-" {
		return fmt.Errorf("%w: an output file cannot be used when discarding input", ErrConfig)
	}
	if c.StopAtSize && c.Size <= 0 {
		return fmt.Errorf("%w: stopping at a size requires the size to be known", ErrConfig)
	}

	// With no display switches at all, show everything the classic way.
	// Numeric and quiet modes count as display switches themselves.
	if !c.Numeric && !c.NoDisplay &&
		!c.ShowProgress && !c.ShowTimer && !c.ShowETA && !c.ShowFinETA &&
		!c.ShowRate && !c.ShowAverageRate && !c.ShowBytes &&
		!c.ShowBufPercent && c.ShowLastWritten == 0 && c.Format == "" {
		c.ShowProgress = true
		c.ShowTimer = true
		c.ShowETA = true
		c.ShowRate = true
		c.ShowBytes = true
	}

	c.synthesiseDefaultFormat()
	return nil
}
