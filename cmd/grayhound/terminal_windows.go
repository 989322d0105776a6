//go:build windows

package main

// disableCtrlCEcho does nothing on windows, the console does not echo ^C.
func disableCtrlCEcho() func() {
	return func() {}
}
