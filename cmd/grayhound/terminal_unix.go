//go:build !windows

package main

import (
	"os"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// disableCtrlCEcho turns off ECHOCTL on a terminal stdin so Ctrl+C during a prompt
// does not leave "^C" in the shell output. the returned func restores the saved flags.
func disableCtrlCEcho() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}

	saved, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		lgr.Printf("[DEBUG] read termios: %v", err)
		return func() {}
	}

	modified := *saved
	modified.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &modified); err != nil {
		lgr.Printf("[DEBUG] write termios: %v", err)
		return func() {}
	}

	return func() {
		if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, saved); err != nil {
			lgr.Printf("[DEBUG] restore termios: %v", err)
		}
	}
}
