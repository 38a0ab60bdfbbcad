package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeBinary(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"100", 100},
		{"1k", 1024},
		{"1K", 1024},
		{"1M", 1048576},
		{"1G", 1073741824},
		{"1T", 1099511627776},
		{"1.5K", 1536},
		{"2,5K", 2560},
		{"1.0001M", 1048680},
		{"10 K", 10240},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseSize(c.in, false), "input %q", c.in)
	}
}

func TestParseSizeDecimal(t *testing.T) {
	assert.Equal(t, int64(1000), ParseSize("1k", true))
	assert.Equal(t, int64(1500000), ParseSize("1.5M", true))
	assert.Equal(t, int64(2000000000), ParseSize("2G", true))
}

func TestParseSizeRoundTrip(t *testing.T) {
	// Parsing a formatted amount yields the original value for exact
	// magnitudes. The keys are what units.Amount prints for each value.
	cases := map[string]int64{
		"1.00KiB": 1024,
		"10.0KiB": 10240,
		"1.00MiB": 1048576,
		"1.00GiB": 1073741824,
	}
	for formatted, n := range cases {
		assert.Equal(t, n, ParseSize(formatted, false))
	}
}

func TestParseFraction(t *testing.T) {
	assert.InDelta(t, 1.5, ParseFraction("1.5"), 0.000001)
	assert.InDelta(t, 0.1, ParseFraction("0.1"), 0.000001)
	assert.InDelta(t, 2.0, ParseFraction("2"), 0.000001)
	assert.InDelta(t, 3.25, ParseFraction("3,25"), 0.000001)
}

func TestCheckNum(t *testing.T) {
	assert.NoError(t, CheckNum("100", NumInteger))
	assert.Error(t, CheckNum("1.5", NumInteger))
	assert.NoError(t, CheckNum("1.5", NumAny))
	assert.Error(t, CheckNum("1.5K", NumAny))
	assert.NoError(t, CheckNum("1.5K", NumAnyWithSuffix))
	assert.Error(t, CheckNum("1.5X", NumAnyWithSuffix))
	assert.Error(t, CheckNum("abc", NumAny))
	assert.Error(t, CheckNum("", NumAny))
	assert.Error(t, CheckNum("1Kx", NumAnyWithSuffix))
}

func TestParseCLIDefaults(t *testing.T) {
	c, err := ParseCLI(nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.Interval)
	assert.Equal(t, []string{"-"}, c.Files)
	// No display switches given, so the classic set is enabled.
	assert.True(t, c.ShowProgress)
	assert.True(t, c.ShowTimer)
	assert.True(t, c.ShowETA)
	assert.True(t, c.ShowRate)
	assert.True(t, c.ShowBytes)
	assert.Equal(t, "%b %t %r %p %e", c.DefaultFormat)
}

func TestParseCLIToggles(t *testing.T) {
	c, err := ParseCLI([]string{"-p", "-t", "-N", "backup", "file1", "file2"})
	require.NoError(t, err)
	assert.True(t, c.ShowProgress)
	assert.True(t, c.ShowTimer)
	assert.False(t, c.ShowRate)
	assert.Equal(t, "backup", c.Name)
	assert.Equal(t, []string{"file1", "file2"}, c.Files)
	assert.Equal(t, "%N %t %p", c.DefaultFormat)
}

func TestParseCLISizes(t *testing.T) {
	c, err := ParseCLI([]string{"-s", "10M", "-L", "1M", "-B", "64K"})
	require.NoError(t, err)
	assert.Equal(t, int64(10485760), c.Size)
	assert.Equal(t, int64(1048576), c.RateLimit)
	assert.Equal(t, 65536, c.TargetBufferSize)
}

func TestParseCLIIntervalClamp(t *testing.T) {
	c, err := ParseCLI([]string{"-i", "0.01"})
	require.NoError(t, err)
	assert.Equal(t, MinInterval, c.Interval)

	c, err = ParseCLI([]string{"-i", "100000"})
	require.NoError(t, err)
	assert.Equal(t, MaxInterval, c.Interval)
}

func TestParseCLISkipErrorsCount(t *testing.T) {
	c, err := ParseCLI([]string{"-E"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), c.SkipErrors)

	c, err = ParseCLI([]string{"-E", "-E"})
	require.NoError(t, err)
	assert.Equal(t, uint(2), c.SkipErrors)
}

func TestParseCLIInvalid(t *testing.T) {
	_, err := ParseCLI([]string{"-L", "fish"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = ParseCLI([]string{"-S"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = ParseCLI([]string{"-n", "-A", "16"})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNumericDefaultFormat(t *testing.T) {
	c, err := ParseCLI([]string{"-n"})
	require.NoError(t, err)
	assert.Equal(t, "%{progress-amount-only}", c.DefaultFormat)

	c, err = ParseCLI([]string{"-n", "-t", "-b"})
	require.NoError(t, err)
	assert.Equal(t, "%t %b", c.DefaultFormat)
}

func TestHistorySizing(t *testing.T) {
	c := &Control{RateWindow: 10}
	assert.Equal(t, 1, c.HistoryInterval())
	assert.Equal(t, 11, c.HistoryLen())

	c.RateWindow = 60
	assert.Equal(t, 5, c.HistoryInterval())
	assert.Equal(t, 13, c.HistoryLen())
}

func TestLineSeparator(t *testing.T) {
	c := &Control{}
	assert.Equal(t, byte('\n'), c.LineSeparator())
	c.NullLines = true
	assert.Equal(t, byte(0), c.LineSeparator())
}
