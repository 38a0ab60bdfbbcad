package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/svanichkin/pv/logs"
)

// ParseCLI parses command-line arguments into a validated Control. The
// args slice excludes the program name.
func ParseCLI(args []string) (*Control, error) {
	c := &Control{
		Interval:   time.Second,
		RateWindow: 30,
	}

	fs := pflag.NewFlagSet("pv", pflag.ContinueOnError)
	fs.SortFlags = false

	// Display switches.
	fs.BoolVarP(&c.ShowProgress, "progress", "p", false, "show progress bar")
	fs.BoolVarP(&c.ShowTimer, "timer", "t", false, "show elapsed time")
	fs.BoolVarP(&c.ShowETA, "eta", "e", false, "show estimated time of arrival (completion)")
	fs.BoolVarP(&c.ShowFinETA, "fineta", "I", false, "show absolute estimated time of arrival")
	fs.BoolVarP(&c.ShowRate, "rate", "r", false, "show data transfer rate counter")
	fs.BoolVarP(&c.ShowAverageRate, "average-rate", "a", false, "show data transfer average rate counter")
	fs.BoolVarP(&c.ShowBytes, "bytes", "b", false, "show number of bytes transferred")
	fs.BoolVarP(&c.ShowBufPercent, "buffer-percent", "T", false, "show percentage of transfer buffer in use")
	lastWritten := fs.UintP("last-written", "A", 0, "show the last NUM bytes written")
	fs.BoolVarP(&c.Bits, "bits", "8", false, "show bits instead of bytes")
	fs.BoolVarP(&c.DecimalUnits, "si", "k", false, "use powers of 1000, not 1024")
	fs.BoolVarP(&c.Numeric, "numeric", "n", false, "output percentages, not a visual bar")
	fs.BoolVarP(&c.NoDisplay, "quiet", "q", false, "do not output any transfer information")
	fs.BoolVar(&c.ShowStats, "stats", false, "show transfer rate statistics on completion")
	fs.BoolVar(&c.RateGauge, "rate-gauge", false, "show the bar as rate against maximum rate")
	fs.StringVarP(&c.Format, "format", "F", "", "set output format to FORMAT")
	fs.StringVar(&c.BarStyleName, "bar-style", "plain", "set the default progress bar style")
	fs.BoolVarP(&c.Force, "force", "f", false, "output even if standard error is not a terminal")
	fs.BoolVarP(&c.Cursor, "cursor", "c", false, "use cursor positioning escape sequences")

	// Transfer modifiers.
	rateLimit := fs.StringP("rate-limit", "L", "", "limit transfer to RATE bytes per second")
	bufferSize := fs.StringP("buffer-size", "B", "", "use a buffer size of BYTES")
	fs.BoolVarP(&c.NoSplice, "no-splice", "C", false, "never use splice, always use read/write")
	skipErrors := fs.CountP("skip-errors", "E", "skip read errors in input (repeat to report each skip)")
	errorSkipBlock := fs.StringP("error-skip-block", "Z", "", "skip BYTES blocks past read errors")
	fs.BoolVarP(&c.StopAtSize, "stop-at-size", "S", false, "stop after --size bytes have been transferred")
	fs.BoolVarP(&c.SyncAfterWrite, "sync", "Y", false, "flush cache after every write")
	fs.BoolVarP(&c.DirectIO, "direct-io", "K", false, "use direct I/O to bypass cache")
	fs.BoolVar(&c.SparseOutput, "sparse", false, "make the output file sparse where possible")
	fs.BoolVarP(&c.DiscardInput, "discard", "X", false, "discard input instead of writing it")

	// Metadata.
	size := fs.StringP("size", "s", "", "set estimated data size to SIZE bytes (or @FILE)")
	fs.StringVarP(&c.Name, "name", "N", "", "prefix visual information with NAME")
	interval := fs.StringP("interval", "i", "", "update every SEC seconds")
	width := fs.StringP("width", "w", "", "assume terminal is WIDTH characters wide")
	height := fs.StringP("height", "H", "", "assume terminal is HEIGHT rows high")
	fs.BoolVarP(&c.Wait, "wait", "W", false, "display nothing until first byte transferred")
	delayStart := fs.StringP("delay-start", "D", "", "display nothing until SEC seconds have passed")
	rateWindow := fs.StringP("average-rate-window", "m", "", "compute average rate over the past SEC seconds")
	fs.StringVarP(&c.OutputPath, "output", "o", "", "output to FILE instead of standard output")
	fs.BoolVarP(&c.LineMode, "line-mode", "l", false, "count lines instead of bytes")
	fs.BoolVarP(&c.NullLines, "null", "0", false, "lines are null-terminated")

	fs.BoolVarP(&logs.Verbose, "verbose", "v", false, "enable debug output")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	c.ShowLastWritten = *lastWritten
	c.SkipErrors = uint(*skipErrors)

	var err error
	if c.RateLimit, err = parseSizeArg(*rateLimit, "rate-limit", c.DecimalUnits); err != nil {
		return nil, err
	}
	var bufSize int64
	if bufSize, err = parseSizeArg(*bufferSize, "buffer-size", c.DecimalUnits); err != nil {
		return nil, err
	}
	c.TargetBufferSize = int(bufSize)
	if c.ErrorSkipBlock, err = parseSizeArg(*errorSkipBlock, "error-skip-block", c.DecimalUnits); err != nil {
		return nil, err
	}

	if *size != "" {
		if strings.HasPrefix(*size, "@") {
			c.Size, err = SizeFromFile(strings.TrimPrefix(*size, "@"))
			if err != nil {
				return nil, err
			}
		} else {
			if c.Size, err = parseSizeArg(*size, "size", c.DecimalUnits); err != nil {
				return nil, err
			}
		}
	}

	if *interval != "" {
		if err := CheckNum(*interval, NumAny); err != nil {
			return nil, err
		}
		c.Interval = time.Duration(ParseFraction(*interval) * float64(time.Second))
	}
	if *delayStart != "" {
		if err := CheckNum(*delayStart, NumAny); err != nil {
			return nil, err
		}
		c.DelayStart = time.Duration(ParseFraction(*delayStart) * float64(time.Second))
	}
	if *rateWindow != "" {
		if err := CheckNum(*rateWindow, NumInteger); err != nil {
			return nil, err
		}
		c.RateWindow = int(ParseSize(*rateWindow, true))
	}
	if *width != "" {
		if err := CheckNum(*width, NumInteger); err != nil {
			return nil, err
		}
		c.Width = int(ParseSize(*width, true))
		c.WidthSet = true
	}
	if *height != "" {
		if err := CheckNum(*height, NumInteger); err != nil {
			return nil, err
		}
		c.Height = int(ParseSize(*height, true))
		c.HeightSet = true
	}

	c.Files = fs.Args()
	if len(c.Files) == 0 {
		c.Files = []string{"-"}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseSizeArg validates and parses a size-with-suffix option value;
// empty input yields zero.
func parseSizeArg(value, option string, decimalUnits bool) (int64, error) {
	if value == "" {
		return 0, nil
	}
	if err := CheckNum(value, NumAnyWithSuffix); err != nil {
		return 0, fmt.Errorf("%w (--%s)", err, option)
	}
	return ParseSize(value, decimalUnits), nil
}
