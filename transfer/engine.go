// Package transfer moves bytes from input descriptors to the output with
// bounded reads and writes, an optional kernel splice fast path, error
// skipping, sparse output, and line-mode bookkeeping.
package transfer

import (
	"fmt"
	"os"
	"time"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
	"github.com/svanichkin/pv/poll"
)

// Bounds on a single transfer pass.
const (
	// MaxReadAtOnce and MaxWriteAtOnce cap a single read(2)/write(2).
	MaxReadAtOnce  = 512 * 1024
	MaxWriteAtOnce = 512 * 1024

	// ReadTimeout bounds the cumulative wall time of one bounded read;
	// WriteTimeout bounds one bounded write.
	ReadTimeout  = 90 * time.Millisecond
	WriteTimeout = 900 * time.Millisecond

	// maxLinePositions bounds the ring of remembered separator offsets.
	maxLinePositions = 100000

	// LastWrittenBufSize and PrevLineBufSize bound the display
	// accumulators fed by the write path.
	LastWrittenBufSize = 256
	PrevLineBufSize    = 1024
)

// transientDelay is how long the engine naps after a transient error.
const transientDelay = 10 * time.Millisecond

// Engine is the transfer state. It is owned by the main loop; nothing here
// is safe for concurrent use.
type Engine struct {
	control      *conf.Control
	outFD        int
	outputIsPipe bool

	buffer   []byte
	readPos  int
	writePos int
	toWrite  int

	totalBytesRead int64

	// written is the bytes (not lines) moved by the current pass.
	written int64

	// Error-skip state, reset when the input descriptor changes.
	readErrorsInARow int
	lastReadSkipFD   int
	readErrWarned    bool

	// Splice state.
	spliceSupported bool
	spliceFailedFD  int
	spliceUsed      bool

	outputNotSeekable bool

	// Line bookkeeping. linePositions is a ring of output offsets at
	// which a separator was written, allocated on first line write.
	linePositions      []int64
	linePositionsHead  int
	linePositionsLen   int
	lastOutputPosition int64

	// Display accumulators, maintained only when the format uses them.
	lastWrittenSize int
	lastWritten     []byte
	collectPrevLine bool
	previousLine    []byte
	nextLine        []byte

	fileName string
	exitBits int

	errorf       func(format string, args ...interface{})
	onPipeClosed func()
}

// New returns an engine writing to outFD. Under the discard-input control
// (where the caller passes a negative outFD) bytes are counted but never
// written.
func New(control *conf.Control, outFD int, outputIsPipe bool) *Engine {
	e := &Engine{
		control:         control,
		outFD:           outFD,
		outputIsPipe:    outputIsPipe,
		lastReadSkipFD:  -1,
		spliceFailedFD:  -1,
		spliceSupported: spliceAvailable,
	}
	e.errorf = func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	return e
}

// SetErrorSink routes the engine's error reports through f, so errors can
// be interleaved cleanly with the progress display.
func (e *Engine) SetErrorSink(f func(format string, args ...interface{})) { e.errorf = f }

// SetPipeClosedHook registers a callback for when the output pipe closes.
func (e *Engine) SetPipeClosedHook(f func()) { e.onPipeClosed = f }

// SetFileName records the name of the current input, for error messages.
func (e *Engine) SetFileName(name string) { e.fileName = name }

// CollectLastWritten asks the engine to maintain a rolling window of the
// last n bytes written, for the last-written display segment.
func (e *Engine) CollectLastWritten(n int) {
	if n > LastWrittenBufSize {
		n = LastWrittenBufSize
	}
	if n > e.lastWrittenSize {
		e.lastWrittenSize = n
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = ' '
		}
		copy(buf[n-len(e.lastWritten):], e.lastWritten)
		e.lastWritten = buf
	}
}

// CollectPreviousLine asks the engine to remember the most recently
// completed output line.
func (e *Engine) CollectPreviousLine(on bool) { e.collectPrevLine = on }

// ExitStatus returns the exit bits accumulated so far.
func (e *Engine) ExitStatus() int { return e.exitBits }

// TotalBytesRead returns all bytes read since the start, splice included.
func (e *Engine) TotalBytesRead() int64 { return e.totalBytesRead }

// BufferState reports the buffer indices for the buffer-percent segment.
func (e *Engine) BufferState() (readPos, writePos, size int) {
	return e.readPos, e.writePos, len(e.buffer)
}

// SpliceInUse reports whether the most recent pass moved data with splice.
func (e *Engine) SpliceInUse() bool { return e.spliceUsed }

// LastWritten returns the rolling window of recently written bytes.
func (e *Engine) LastWritten() []byte { return e.lastWritten }

// PreviousLine returns the most recently completed output line.
func (e *Engine) PreviousLine() []byte { return e.previousLine }

// LastOutputPosition returns the total number of bytes ever written to the
// output, used by the line-mode backpressure accounting.
func (e *Engine) LastOutputPosition() int64 { return e.lastOutputPosition }

// ensureBuffer allocates or grows the transfer buffer to the target size.
// Growth copies the pending region; the buffer never shrinks mid-transfer.
func (e *Engine) ensureBuffer() {
	target := e.control.TargetBufferSize
	if target <= 0 {
		target = conf.DefaultBufferSize
	}
	if e.buffer == nil {
		e.buffer = make([]byte, target)
		return
	}
	if len(e.buffer) < target {
		grown := make([]byte, target)
		copy(grown, e.buffer)
		e.buffer = grown
		logs.Debug("transfer buffer resized to %s", logs.Size(int64(target)))
	}
}

// Transfer moves data from fd towards the output, bounded to one poll
// round. "allowed" caps the bytes written this pass when positive (rate
// limiting, stop-at-size). Returns the bytes written by this pass, zero on
// a transient condition, or -1 on a fatal write error. Line counts are
// added to *linesWritten in line mode.
func (e *Engine) Transfer(fd int, eofIn, eofOut *bool, allowed int64, linesWritten *int64) int64 {
	// Error-skip state is per input file.
	if fd != e.lastReadSkipFD {
		e.lastReadSkipFD = fd
		e.readErrorsInARow = 0
		e.readErrWarned = false
	}

	e.ensureBuffer()

	if e.control.LineMode && linesWritten != nil {
		*linesWritten = 0
	}

	if *eofIn && *eofOut {
		return 0
	}

	checkRead := -1
	if !*eofIn && e.readPos < len(e.buffer) {
		checkRead = fd
	}

	e.toWrite = e.readPos - e.writePos
	if (e.control.RateLimit > 0 || allowed > 0) && int64(e.toWrite) > allowed {
		e.toWrite = int(allowed)
	}

	checkWrite := -1
	if !*eofOut && e.toWrite > 0 && !e.control.DiscardInput {
		checkWrite = e.outFD
	}

	readReady, writeReady, err := poll.WaitReady(checkRead, checkWrite, poll.MaxWait)
	if err != nil {
		e.errorf("%s: poll failed: %v", e.fileName, err)
		e.exitBits |= conf.ExitTransfer
		return -1
	}

	e.written = 0
	e.spliceUsed = false

	if readReady {
		if !e.read(fd, eofIn, eofOut, allowed) {
			return 0
		}
	}

	// In line mode, only write up to and including the last separator,
	// so output stays line-aligned.
	if e.toWrite > 0 && e.control.LineMode {
		sep := e.control.LineSeparator()
		pending := e.buffer[e.writePos : e.writePos+e.toWrite]
		last := -1
		for i := len(pending) - 1; i >= 0; i-- {
			if pending[i] == sep {
				last = i
				break
			}
		}
		if last >= 0 {
			e.toWrite = last + 1
		} else if !*eofIn && e.readPos < len(e.buffer) {
			// No complete line yet; hold the partial until more
			// arrives or the input ends. A line longer than the whole
			// buffer has to be flushed unaligned to make progress.
			e.toWrite = 0
		} else if !*eofIn && e.writePos > 0 {
			// The buffer is full but the partial line starts part-way
			// in; move it to the front so the rest of it can be read.
			copy(e.buffer, e.buffer[e.writePos:e.readPos])
			e.readPos -= e.writePos
			e.writePos = 0
			e.toWrite = 0
		}
	}

	writable := writeReady || e.control.DiscardInput
	if writable && !e.spliceUsed && e.readPos > e.writePos && e.toWrite > 0 {
		if !e.write(eofIn, eofOut, linesWritten) {
			return 0
		}
	}

	return e.written
}
