//go:build !linux

package main

import "syscall"

// setParentDeathSignal is unsupported off Linux; --exit-with-parent is
// accepted and ignored.
func setParentDeathSignal(syscall.Signal) error { return nil }
