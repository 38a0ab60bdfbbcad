//go:build linux

package transfer

import (
	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
)

const spliceAvailable = true

// trySplice attempts a zero-copy kernel splice from fd to the output.
// It applies only when line mode is off, splicing is enabled, this fd has
// not previously failed to splice, and the buffer holds no pending bytes.
// Returns true when the splice path handled the read attempt (successfully
// or with an error in *nread / *readErr), false when the caller should
// fall back to an ordinary read.
func (e *Engine) trySplice(fd int, bytesCanRead int, maxToWrite int64, nread *int, readErr *error, doNotSkipErrors *bool) bool {
	if !e.spliceSupported || e.control.LineMode || e.control.NoSplice ||
		e.control.DiscardInput || fd == e.spliceFailedFD || e.toWrite != 0 {
		return false
	}

	var bytesToSplice int
	if e.control.RateLimit > 0 || maxToWrite != 0 {
		bytesToSplice = int(maxToWrite)
	} else {
		bytesToSplice = bytesCanRead
	}
	if bytesToSplice < 0 {
		bytesToSplice = 0
	}

	n, err := unix.Splice(fd, nil, e.outFD, nil, bytesToSplice, unix.SPLICE_F_MORE)

	e.spliceUsed = true
	switch {
	case err == unix.EINVAL:
		// This pairing of descriptors cannot splice; don't try again
		// for this input.
		logs.Debug("fd %d: splice failed with EINVAL - disabling", fd)
		e.spliceFailedFD = fd
		e.spliceUsed = false
		return false
	case err == nil && n > 0:
		// The data went straight to the output; the buffer indices are
		// untouched. The caller accounts the bytes read.
		e.written = n
		*nread = int(n)
		*readErr = nil
		if e.control.SyncAfterWrite {
			// Only an I/O error from the sync is fatal; EINVAL just
			// means the output cannot sync (such as a pipe).
			if syncErr := unix.Fdatasync(e.outFD); syncErr == unix.EIO {
				*nread = -1
				*readErr = syncErr
				*doNotSkipErrors = true
				e.exitBits |= conf.ExitTransfer
			}
		}
		return true
	case err == unix.EAGAIN:
		// Nothing could move yet; report transient.
		*nread = -1
		*readErr = unix.EAGAIN
		return true
	default:
		// A zero-byte splice is not trusted as end-of-file; fall back
		// to an ordinary read to decide, since for some sources EOF
		// here might not really be EOF.
		e.spliceUsed = false
		return false
	}
}
