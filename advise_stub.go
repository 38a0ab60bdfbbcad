//go:build !linux

package main

import "github.com/svanichkin/pv/conf"

// Sequential-read advice and O_DIRECT are Linux-only.
func adviseInput(control *conf.Control, fd int) {}

func applyDirectIO(control *conf.Control, fd int) {}
