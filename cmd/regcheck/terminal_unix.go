//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// disableCtrlCEcho turns off ECHOCTL on an interactive stdin, so interrupting a run
// doesn't leave "^C" in the middle of the summary. The returned func restores the terminal.
func disableCtrlCEcho() func() {
	noop := func() {}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return noop
	}
	saved, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return noop
	}
	quiet := *saved
	quiet.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &quiet); err != nil {
		return noop
	}
	return func() { _ = unix.IoctlSetTermios(fd, ioctlWriteTermios, saved) }
}
