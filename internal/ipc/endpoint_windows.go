//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// PipeName is the control endpoint. One interposer per machine/user is the
// expected deployment; a second instance fails to listen and runs inert.
const PipeName = `\\.\pipe\frameweave-control`

// Listen opens the named-pipe control endpoint restricted to the current
// user and built-in administrators.
func Listen() (net.Listener, error) {
	cfg := &winio.PipeConfig{
		// Owner and administrators only.
		SecurityDescriptor: "D:P(A;;GA;;;BA)(A;;GA;;;OW)",
		MessageMode:        false,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	}
	return winio.ListenPipe(PipeName, cfg)
}

// Dial connects to a running interposer's control endpoint.
func Dial(timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(PipeName, &timeout)
}
