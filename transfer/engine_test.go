package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/pv/conf"
)

func testControl() *conf.Control {
	return &conf.Control{
		Interval:         time.Second,
		TargetBufferSize: 4096,
		// The fast path bypasses the buffer, which most of these tests
		// inspect; splice has its own coverage in splice_linux_test.go.
		NoSplice: true,
	}
}

// runEngine pumps the engine until both EOFs are set or it gives up,
// returning the number of bytes reported written.
func runEngine(t *testing.T, e *Engine, inFD int, lines *int64) int64 {
	t.Helper()
	var eofIn, eofOut bool
	var total int64
	for i := 0; i < 10000 && !(eofIn && eofOut); i++ {
		n := e.Transfer(inFD, &eofIn, &eofOut, 0, lines)
		require.GreaterOrEqual(t, n, int64(0), "fatal write error")
		total += n
	}
	require.True(t, eofIn && eofOut, "engine did not finish")
	return total
}

func tempFileWith(t *testing.T, data []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "in")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestTransferCopiesBytes(t *testing.T) {
	data := []byte("hello\n")
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	e := New(testControl(), int(out.Fd()), false)
	total := runEngine(t, e, int(in.Fd()), nil)

	assert.Equal(t, int64(len(data)), total)
	assert.Equal(t, int64(len(data)), e.TotalBytesRead())

	written, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestTransferLargeInputPreservesContent(t *testing.T) {
	data := make([]byte, 100000)
	for i := range data {
		data[i] = byte(i * 31)
	}
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	e := New(testControl(), int(out.Fd()), false)
	total := runEngine(t, e, int(in.Fd()), nil)

	assert.Equal(t, int64(len(data)), total)
	written, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, written), "output differs from input")
}

func TestBufferInvariant(t *testing.T) {
	data := make([]byte, 50000)
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	e := New(testControl(), int(out.Fd()), false)
	var eofIn, eofOut bool
	for i := 0; i < 10000 && !(eofIn && eofOut); i++ {
		e.Transfer(int(in.Fd()), &eofIn, &eofOut, 0, nil)
		readPos, writePos, size := e.BufferState()
		assert.GreaterOrEqual(t, writePos, 0)
		assert.LessOrEqual(t, writePos, readPos)
		assert.LessOrEqual(t, readPos, size)
	}
}

func TestAllowedCapsWrite(t *testing.T) {
	data := make([]byte, 10000)
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	ctl := testControl()
	ctl.RateLimit = 1 // any positive value enables the cap
	e := New(ctl, int(out.Fd()), false)

	var eofIn, eofOut bool
	// One pass to fill the buffer, then passes capped at 100 bytes.
	for i := 0; i < 50 && !(eofIn && eofOut); i++ {
		n := e.Transfer(int(in.Fd()), &eofIn, &eofOut, 100, nil)
		assert.LessOrEqual(t, n, int64(100))
	}
}

func TestLineModeAlignment(t *testing.T) {
	// Trailing partial line is held until EOF, then flushed.
	data := []byte("A\nB\nC\nD")
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	ctl := testControl()
	ctl.LineMode = true
	e := New(ctl, int(out.Fd()), false)

	var lines int64
	var eofIn, eofOut bool
	for i := 0; i < 10000 && !(eofIn && eofOut); i++ {
		var passLines int64
		e.Transfer(int(in.Fd()), &eofIn, &eofOut, 0, &passLines)
		lines += passLines
		if !eofIn {
			// Before EOF only whole lines may have been written.
			content, _ := os.ReadFile(out.Name())
			if len(content) > 0 && content[len(content)-1] != '\n' {
				t.Fatalf("partial line written before EOF: %q", content)
			}
		}
	}

	assert.Equal(t, int64(3), lines, "three complete lines")
	written, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, data, written, "trailing partial flushed at EOF")
}

func TestNullTerminatedLines(t *testing.T) {
	data := []byte("one\x00two\x00")
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	ctl := testControl()
	ctl.LineMode = true
	ctl.NullLines = true
	e := New(ctl, int(out.Fd()), false)

	var eofIn, eofOut bool
	var lines int64
	for i := 0; i < 10000 && !(eofIn && eofOut); i++ {
		var passLines int64
		e.Transfer(int(in.Fd()), &eofIn, &eofOut, 0, &passLines)
		lines += passLines
	}
	assert.Equal(t, int64(2), lines)
}

func TestDiscardInput(t *testing.T) {
	data := make([]byte, 5000)
	in := tempFileWith(t, data)

	ctl := testControl()
	ctl.DiscardInput = true
	e := New(ctl, -1, false)

	total := runEngine(t, e, int(in.Fd()), nil)
	assert.Equal(t, int64(len(data)), total, "discarded bytes still counted")
}

func TestSparseOutput(t *testing.T) {
	data := make([]byte, 8192)
	copy(data[:5], "start")
	copy(data[8000:], "end")
	in := tempFileWith(t, data)

	outPath := filepath.Join(t.TempDir(), "sparse")
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer out.Close()

	ctl := testControl()
	ctl.SparseOutput = true
	ctl.TargetBufferSize = 1024
	e := New(ctl, int(out.Fd()), false)

	runEngine(t, e, int(in.Fd()), nil)
	require.NoError(t, e.FinishOutput())

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, data, written, "sparse output reads back identically")

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestStopAtSizeCapsRead(t *testing.T) {
	data := make([]byte, 10000)
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	ctl := testControl()
	ctl.StopAtSize = true
	ctl.Size = 3000
	e := New(ctl, int(out.Fd()), false)

	var eofIn, eofOut bool
	for i := 0; i < 10000 && !(eofIn && eofOut); i++ {
		e.Transfer(int(in.Fd()), &eofIn, &eofOut, 0, nil)
		if e.TotalBytesRead() >= 3000 {
			break
		}
	}
	assert.LessOrEqual(t, e.TotalBytesRead(), int64(3000))
}

func TestLastWrittenWindow(t *testing.T) {
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	e := New(testControl(), int(out.Fd()), false)
	e.CollectLastWritten(8)

	runEngine(t, e, int(in.Fd()), nil)
	assert.Equal(t, []byte("stuvwxyz"), e.LastWritten())
}

func TestPreviousLine(t *testing.T) {
	data := []byte("first\nsecond\nthird\n")
	in := tempFileWith(t, data)
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	e := New(testControl(), int(out.Fd()), false)
	e.CollectPreviousLine(true)

	runEngine(t, e, int(in.Fd()), nil)
	assert.Equal(t, "third", string(e.PreviousLine()))
}

func TestBrokenPipeSetsFlagsSilently(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	defer w.Close()

	data := make([]byte, 100000)
	in := tempFileWith(t, data)

	var pipeClosed bool
	var reported []string
	e := New(testControl(), int(w.Fd()), true)
	e.SetPipeClosedHook(func() { pipeClosed = true })
	e.SetErrorSink(func(format string, args ...interface{}) {
		reported = append(reported, format)
	})

	var eofIn, eofOut bool
	for i := 0; i < 1000 && !(eofIn && eofOut); i++ {
		e.Transfer(int(in.Fd()), &eofIn, &eofOut, 0, nil)
	}

	assert.True(t, eofIn && eofOut)
	assert.True(t, pipeClosed)
	assert.Empty(t, reported, "a broken pipe is not an error")
}

func TestPipeBackpressureProbe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)

	unread, ok := PipeUnread(int(r.Fd()))
	if !ok {
		t.Skip("pipe probe not available on this platform")
	}
	assert.Equal(t, int64(10), unread)
}

func TestLinesNotConsumed(t *testing.T) {
	ctl := testControl()
	ctl.LineMode = true
	e := New(ctl, -1, true)

	// Simulate five written lines at offsets 9, 19, ..., 49.
	e.linePositions = make([]int64, 16)
	for i := 0; i < 5; i++ {
		e.linePositions[e.linePositionsHead] = int64(i*10 + 9)
		e.linePositionsHead++
		e.linePositionsLen++
	}
	e.lastOutputPosition = 50

	assert.Equal(t, int64(0), e.LinesNotConsumed(0))
	// Ten unread bytes cover the last separator only.
	assert.Equal(t, int64(1), e.LinesNotConsumed(10))
	assert.Equal(t, int64(5), e.LinesNotConsumed(50))
}

func TestErrorSkipAdaptiveSchedule(t *testing.T) {
	e := New(testControl(), -1, false)
	e.readErrorsInARow = 1
	assert.Equal(t, int64(1), e.skipAmount())
	e.readErrorsInARow = 5
	assert.Equal(t, int64(2), e.skipAmount())
	e.readErrorsInARow = 12
	assert.Equal(t, int64(4), e.skipAmount())
	e.readErrorsInARow = 19
	assert.Equal(t, int64(512), e.skipAmount())
	e.readErrorsInARow = 50
	assert.Equal(t, int64(512), e.skipAmount())

	e.control.ErrorSkipBlock = 512
	e.readErrorsInARow = 1
	assert.Equal(t, int64(512), e.skipAmount())
}
