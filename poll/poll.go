// Package poll waits, with a bounded deadline, for an input descriptor to
// become readable and/or an output descriptor to become writable.
package poll

import (
	"time"

	"golang.org/x/sys/unix"
)

// MaxWait bounds any single readiness wait so the caller can service
// signal flags, the display interval and the rate check promptly.
const MaxWait = 90 * time.Millisecond

// WaitReady waits up to "timeout" (capped at MaxWait) for fdIn to become
// readable and fdOut writable. Either descriptor may be negative to skip
// that side. A transient interrupt is reported as nothing ready rather
// than as an error.
func WaitReady(fdIn, fdOut int, timeout time.Duration) (inReady, outReady bool, err error) {
	if timeout > MaxWait {
		timeout = MaxWait
	}
	if timeout < 0 {
		timeout = 0
	}

	fds := make([]unix.PollFd, 0, 2)
	inIdx, outIdx := -1, -1
	if fdIn >= 0 {
		inIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(fdIn), Events: unix.POLLIN})
	}
	if fdOut >= 0 {
		outIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(fdOut), Events: unix.POLLOUT})
	}
	if len(fds) == 0 {
		time.Sleep(timeout)
		return false, false, nil
	}

	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return false, false, nil
		}
		return false, false, err
	}
	if n <= 0 {
		return false, false, nil
	}

	// Hangup and error conditions count as ready so the caller's next
	// read or write observes them directly.
	if inIdx >= 0 && fds[inIdx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		inReady = true
	}
	if outIdx >= 0 && fds[outIdx].Revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
		outReady = true
	}
	return inReady, outReady, nil
}
