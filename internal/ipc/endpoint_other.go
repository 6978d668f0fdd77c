//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// SocketPath returns the per-user control socket location.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "frameweave-control.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("frameweave-control-%d.sock", os.Getuid()))
}

// Listen opens the unix-socket control endpoint, replacing a stale socket
// left by a crashed instance.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if _, err := os.Stat(path); err == nil {
		if _, derr := net.DialTimeout("unix", path, 250*time.Millisecond); derr != nil {
			os.Remove(path)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	os.Chmod(path, 0600)
	return ln, nil
}

// Dial connects to a running interposer's control endpoint.
func Dial(timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", SocketPath(), timeout)
}
