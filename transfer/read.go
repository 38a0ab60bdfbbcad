package transfer

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
	"github.com/svanichkin/pv/poll"
)

// readRepeated reads up to len(buf) bytes from fd, retrying while the
// descriptor stays readable without blocking and the cumulative wall time
// is under ReadTimeout, so the buffer fills as far as it cheaply can.
func readRepeated(fd int, buf []byte) (int, error) {
	start := time.Now()
	total := 0

	for total < len(buf) {
		chunk := len(buf) - total
		if chunk > MaxReadAtOnce {
			chunk = MaxReadAtOnce
		}
		n, err := unix.Read(fd, buf[total:total+chunk])
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if n == 0 {
			return total, nil
		}
		total += n

		if time.Since(start) > ReadTimeout {
			logs.Debug("fd %d: stopping read - timer expired", fd)
			return total, nil
		}
		if total < len(buf) {
			ready, _, _ := poll.WaitReady(fd, -1, 0)
			if !ready {
				break
			}
		}
	}
	return total, nil
}

// read pulls data from fd into the buffer, using splice when possible.
// Returns false if the caller should return 0 for a transient condition.
func (e *Engine) read(fd int, eofIn, eofOut *bool, maxToWrite int64) bool {
	doNotSkipErrors := e.control.SkipErrors == 0

	bytesCanRead := len(e.buffer) - e.readPos

	// Don't read past the declared size under stop-at-size. Not workable
	// in line mode, where the size counts lines.
	if e.control.StopAtSize && !e.control.LineMode {
		remaining := e.control.Size - e.totalBytesRead
		if int64(bytesCanRead) > remaining {
			bytesCanRead = int(remaining)
			if bytesCanRead < 0 {
				bytesCanRead = 0
			}
		}
	}

	var nread int
	var readErr error

	tried := e.trySplice(fd, bytesCanRead, maxToWrite, &nread, &readErr, &doNotSkipErrors)
	if !tried {
		nread, readErr = readRepeated(fd, e.buffer[e.readPos:e.readPos+bytesCanRead])
	}

	if readErr == nil && nread == 0 {
		// End of this input file. If the buffer has drained too, the
		// output side is finished with this file as well.
		*eofIn = true
		if e.writePos >= e.readPos {
			*eofOut = true
		}
		return true
	}

	if readErr == nil {
		e.readErrorsInARow = 0
		if !e.spliceUsed {
			e.readPos += nread
		}
		e.totalBytesRead += int64(nread)
		return true
	}

	// Transient errors just delay briefly.
	if readErr == unix.EINTR || readErr == unix.EAGAIN {
		logs.Debug("fd %d: transient read error - waiting briefly: %v", fd, readErr)
		time.Sleep(transientDelay)
		return false
	}

	// A real read error always marks the transfer as having failed,
	// even when we go on to skip past it.
	e.exitBits |= conf.ExitTransfer
	e.readErrorsInARow++

	if doNotSkipErrors {
		e.errorf("%s: read failed: %v", e.fileName, readErr)
		*eofIn = true
		if e.writePos >= e.readPos {
			*eofOut = true
		}
		return true
	}

	e.skipReadError(fd, readErr, bytesCanRead, eofIn, eofOut)
	return true
}

// skipAmount returns how far to skip for the current run of errors: a
// fixed block size if configured, else 1, 2, then doubling to 512.
func (e *Engine) skipAmount() int64 {
	if e.control.ErrorSkipBlock > 0 {
		return e.control.ErrorSkipBlock
	}
	switch {
	case e.readErrorsInARow < 5:
		return 1
	case e.readErrorsInARow < 10:
		return 2
	case e.readErrorsInARow < 20:
		return int64(1) << uint(e.readErrorsInARow-10)
	default:
		return 512
	}
}

// skipReadError seeks past a failing region, writing zeroes into the
// buffer in its place so the output keeps its shape.
func (e *Engine) skipReadError(fd int, readErr error, bytesCanRead int, eofIn, eofOut *bool) {
	if !e.readErrWarned {
		e.errorf("%s: warning: read errors detected: %v", e.fileName, readErr)
		e.readErrWarned = true
	}

	origOffset, err := unix.Seek(fd, 0, unix.SEEK_CUR)
	if err != nil {
		e.errorf("%s: file is not seekable: %v", e.fileName, err)
		*eofIn = true
		if e.writePos >= e.readPos {
			*eofOut = true
		}
		return
	}

	amountToSkip := e.skipAmount()

	// Round the target down to a block boundary of the skip size, so
	// skips line up with the device's failing blocks.
	if amountToSkip > 1 {
		skipTo := origOffset + amountToSkip
		skipTo -= skipTo % amountToSkip
		if skipTo > origOffset {
			amountToSkip = skipTo - origOffset
		}
	}

	if amountToSkip > int64(bytesCanRead) {
		amountToSkip = int64(bytesCanRead)
	}

	skipOffset, err := unix.Seek(fd, origOffset+amountToSkip, unix.SEEK_SET)
	if err != nil {
		// Possibly past the end of the file; retry with a single byte.
		amountToSkip = 1
		skipOffset, err = unix.Seek(fd, origOffset+amountToSkip, unix.SEEK_SET)
	}
	if err != nil {
		*eofIn = true
		if err != unix.EINVAL {
			e.errorf("%s: failed to seek past error: %v", e.fileName, err)
		}
		if e.writePos >= e.readPos {
			*eofOut = true
		}
		return
	}

	amountSkipped := skipOffset - origOffset
	if amountSkipped <= 0 {
		*eofIn = true
		if e.writePos >= e.readPos {
			*eofOut = true
		}
		return
	}

	zeroFrom := e.readPos
	for i := int64(0); i < amountSkipped; i++ {
		e.buffer[zeroFrom+int(i)] = 0
	}
	e.readPos += int(amountSkipped)
	e.totalBytesRead += amountSkipped

	if e.control.SkipErrors >= 2 {
		e.errorf("%s: skipped past read error: %d - %d (%d B)",
			e.fileName, origOffset, skipOffset, amountSkipped)
	}
}
