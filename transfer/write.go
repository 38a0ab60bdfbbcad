package transfer

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
)

// writeRepeated writes up to len(buf) bytes to fd, retrying on partial
// writes while the cumulative wall time stays under the deadline. The
// deadline is the display interval capped at WriteTimeout, so a slow
// consumer cannot starve the display refresh. An interrupted or
// would-block write returns what was written so far; a zero-byte write is
// also returned to the caller as-is.
func (e *Engine) writeRepeated(fd int, buf []byte) (int, error) {
	deadline := WriteTimeout
	if e.control.Interval < deadline {
		deadline = e.control.Interval
	}
	start := time.Now()
	total := 0

	for total < len(buf) {
		chunk := len(buf) - total
		if chunk > MaxWriteAtOnce {
			chunk = MaxWriteAtOnce
		}
		n, err := unix.Write(fd, buf[total:total+chunk])
		if err == nil && e.control.SyncAfterWrite {
			// Only a true I/O error from the sync matters; EINVAL
			// just means the descriptor cannot sync.
			if syncErr := unix.Fdatasync(fd); syncErr == unix.EIO {
				return -1, syncErr
			}
		}
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				return total, nil
			}
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if time.Since(start) > deadline {
			logs.Debug("fd %d: stopping write - deadline passed", fd)
			return total, nil
		}
	}
	return total, nil
}

// write pushes up to e.toWrite pending buffer bytes to the output,
// updating the line, last-written and sparse bookkeeping. Returns false
// when the caller should return 0 for a transient condition.
func (e *Engine) write(eofIn, eofOut *bool, linesWritten *int64) bool {
	var nwritten int
	var writeErr error

	switch {
	case e.control.DiscardInput:
		nwritten = e.toWrite
	case e.control.SparseOutput && !e.outputNotSeekable && e.allPendingZero():
		// A fully-zero range becomes a seek forward; the trailing hole
		// is materialised by a truncate at shutdown.
		if _, err := unix.Seek(e.outFD, int64(e.toWrite), unix.SEEK_CUR); err != nil {
			logs.Debug("output seek failed - disabling sparse writes: %v", err)
			e.outputNotSeekable = true
			nwritten, writeErr = e.writeRepeated(e.outFD, e.buffer[e.writePos:e.writePos+e.toWrite])
		} else {
			nwritten = e.toWrite
		}
	default:
		nwritten, writeErr = e.writeRepeated(e.outFD, e.buffer[e.writePos:e.writePos+e.toWrite])
	}

	if nwritten > 0 {
		e.accountWrite(nwritten, eofIn, eofOut, linesWritten)
		return true
	}

	// A blocked or interrupted write is transient; nap briefly so we
	// don't spin against a full pipe.
	if writeErr == nil || writeErr == unix.EINTR || writeErr == unix.EAGAIN {
		time.Sleep(transientDelay)
		return false
	}

	// The consumer going away is not an error; note it and finish.
	if writeErr == unix.EPIPE {
		*eofIn = true
		*eofOut = true
		if e.onPipeClosed != nil {
			e.onPipeClosed()
		}
		logs.Debug("broken pipe - consumer has gone")
		return false
	}

	e.errorf("write failed: %v", writeErr)
	e.exitBits |= conf.ExitTransfer
	*eofOut = true
	e.written = -1
	return true
}

// allPendingZero reports whether every pending byte is zero.
func (e *Engine) allPendingZero() bool {
	for _, b := range e.buffer[e.writePos : e.writePos+e.toWrite] {
		if b != 0 {
			return false
		}
	}
	return true
}

// accountWrite advances the buffer indices and maintains the line and
// last-written bookkeeping after a successful write of n bytes.
func (e *Engine) accountWrite(n int, eofIn, eofOut *bool, linesWritten *int64) {
	trackingLines := (e.control.LineMode && linesWritten != nil) || e.collectPrevLine

	if trackingLines {
		if e.linePositions == nil && e.control.LineMode && linesWritten != nil {
			e.linePositions = make([]int64, maxLinePositions)
		}

		sep := e.control.LineSeparator()
		var lines int64
		region := e.buffer[e.writePos : e.writePos+n]
		for _, b := range region {
			if b != sep {
				if e.collectPrevLine && len(e.nextLine) < PrevLineBufSize-1 {
					e.nextLine = append(e.nextLine, b)
				}
				e.lastOutputPosition++
				continue
			}

			lines++

			if e.collectPrevLine {
				e.previousLine = append(e.previousLine[:0], e.nextLine...)
				e.nextLine = e.nextLine[:0]
			}

			if e.linePositions != nil {
				e.linePositions[e.linePositionsHead] = e.lastOutputPosition
				e.linePositionsHead = (e.linePositionsHead + 1) % len(e.linePositions)
				if e.linePositionsLen < len(e.linePositions) {
					e.linePositionsLen++
				}
			}
			e.lastOutputPosition++
		}

		if linesWritten != nil {
			*linesWritten += lines
		}
	} else {
		e.lastOutputPosition += int64(n)
	}

	e.writePos += n
	e.written += int64(n)

	if e.lastWrittenSize > 0 {
		e.rollLastWritten(n)
	}

	// Buffer drained: reset to the start, and propagate EOF outward if
	// the input has ended.
	if e.writePos >= e.readPos {
		e.writePos = 0
		e.readPos = 0
		if *eofIn {
			*eofOut = true
		}
	}
}

// rollLastWritten shifts the last-written window and appends the tail of
// the bytes just written.
func (e *Engine) rollLastWritten(n int) {
	newPortion := n
	if newPortion > e.lastWrittenSize {
		newPortion = e.lastWrittenSize
	}
	keep := e.lastWrittenSize - newPortion
	if keep > 0 {
		copy(e.lastWritten, e.lastWritten[newPortion:])
	}
	copy(e.lastWritten[keep:], e.buffer[e.writePos-newPortion:e.writePos])
}

// FinishOutput truncates the output at its current offset so trailing
// sparse seeks become a hole of the right size. A no-op unless sparse
// output was in use and still seekable.
func (e *Engine) FinishOutput() error {
	if !e.control.SparseOutput || e.outputNotSeekable || e.outFD < 0 {
		return nil
	}
	offset, err := unix.Seek(e.outFD, 0, unix.SEEK_CUR)
	if err != nil {
		return nil
	}
	logs.Debug("truncating output to current offset %d", offset)
	if err := unix.Ftruncate(e.outFD, offset); err != nil {
		return err
	}
	return nil
}
