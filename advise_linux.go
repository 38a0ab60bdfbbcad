//go:build linux

package main

import (
	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/logs"
)

// adviseInput tells the kernel we will read the new input sequentially,
// and applies the direct-I/O control to it.
func adviseInput(control *conf.Control, fd int) {
	if fd < 0 {
		return
	}
	if err := unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL); err != nil {
		logs.Debug("fadvise(%d): %v", fd, err)
	}
	applyDirectIO(control, fd)
}

// applyDirectIO sets or clears O_DIRECT on fd per the current control.
func applyDirectIO(control *conf.Control, fd int) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return
	}
	if control.DirectIO {
		flags |= unix.O_DIRECT
	} else {
		flags &^= unix.O_DIRECT
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags); err != nil {
		logs.Debug("fcntl(%d, F_SETFL): %v", fd, err)
	}
}
