//go:build linux

package transfer

import "golang.org/x/sys/unix"

// PipeUnread asks the kernel how many bytes are sitting in the pipe
// buffer of fd, unread by the consumer. The second result is false when
// the probe is unavailable, in which case the caller should treat
// everything written as consumed.
func PipeUnread(fd int) (int64, bool) {
	n, err := unix.IoctlGetInt(fd, unix.TIOCINQ)
	if err != nil || n < 0 {
		return 0, false
	}
	return int64(n), true
}
