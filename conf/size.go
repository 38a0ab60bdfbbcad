package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/logs"
)

// SizeFromFile returns the size in bytes of the file at path, for the
// "--size @FILE" form. Regular files report their stat size. For block
// devices, the sysfs "size" entry (in 512-byte sectors) is consulted
// first, falling back to seeking to the end of the device.
func SizeFromFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	if info.Mode().IsRegular() {
		return info.Size(), nil
	}

	if info.Mode()&os.ModeDevice != 0 && info.Mode()&os.ModeCharDevice == 0 {
		if size, ok := blockDeviceSizeSysfs(path); ok {
			return size, nil
		}
		return blockDeviceSizeSeek(path)
	}

	return 0, fmt.Errorf("%w: %s: not a regular file or block device", ErrConfig, path)
}

// blockDeviceSizeSysfs looks up /sys/class/block/<name>/size, which holds
// the device size in 512-byte sectors.
func blockDeviceSizeSysfs(path string) (int64, bool) {
	name := filepath.Base(path)
	raw, err := os.ReadFile(filepath.Join("/sys/class/block", name, "size"))
	if err != nil {
		logs.Debug("%s: no sysfs size entry: %v", name, err)
		return 0, false
	}
	sectors := ParseSize(strings.TrimSpace(string(raw)), true)
	if sectors <= 0 {
		return 0, false
	}
	return sectors * 512, true
}

// blockDeviceSizeSeek opens the device and seeks to the end to find its
// size.
func blockDeviceSizeSeek(path string) (int64, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	defer unix.Close(fd)

	size, err := unix.Seek(fd, 0, 2)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return size, nil
}
