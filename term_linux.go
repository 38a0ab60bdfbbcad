//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/logs"
)

// enableTOSTOP turns on TOSTOP on the terminal so a background instance
// writing to it receives SIGTTOU instead of scribbling over the
// foreground job. The returned function undoes the change, but only if we
// were the ones who made it.
func enableTOSTOP() func() {
	fd := int(os.Stderr.Fd())
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return func() {}
	}
	if tio.Lflag&unix.TOSTOP != 0 {
		return func() {}
	}

	tio.Lflag |= unix.TOSTOP
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		logs.Debug("could not set TOSTOP: %v", err)
		return func() {}
	}

	return func() {
		if tio, err := unix.IoctlGetTermios(fd, unix.TCGETS); err == nil {
			tio.Lflag &^= unix.TOSTOP
			_ = unix.IoctlSetTermios(fd, unix.TCSETS, tio)
		}
	}
}
