package main

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/display"
	"github.com/svanichkin/pv/logs"
)

// openInput opens the input file at index idx, closing the previous
// descriptor first. "-" means standard input. Returns a negative
// descriptor on failure, mirroring cat(1): the error is reported, the
// ACCESS bit is noted, and the caller moves on to the next file.
func openInput(control *conf.Control, idx int, previousFD int, disp *display.Display, exitStatus *int) int {
	if previousFD >= 0 && previousFD != int(os.Stdin.Fd()) {
		_ = unix.Close(previousFD)
	}

	name := control.Files[idx]
	if name == "-" {
		return int(os.Stdin.Fd())
	}

	fd, err := unix.Open(name, unix.O_RDONLY, 0)
	if err != nil {
		disp.Errorf("%s: %v", name, err)
		*exitStatus |= conf.ExitAccess
		return -1
	}
	return fd
}

// guessTotalSize derives the total transfer size from the input files:
// the sum of the regular files' sizes in byte mode, or their line counts
// in line mode. Non-regular inputs make the total unknowable.
func guessTotalSize(control *conf.Control) int64 {
	var total int64
	for _, name := range control.Files {
		if name == "-" {
			return 0
		}
		info, err := os.Stat(name)
		if err != nil || !info.Mode().IsRegular() {
			return 0
		}
		if control.LineMode {
			n, err := countLines(name, control.LineSeparator())
			if err != nil {
				return 0
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	logs.Debug("total size derived from inputs: %s", logs.Size(total))
	return total
}

// countLines counts separator bytes in the named file.
func countLines(name string, sep byte) (int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var count int64
	buf := make([]byte, 65536)
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			if b == sep {
				count++
			}
		}
		if err != nil {
			break
		}
	}
	return count, nil
}
