//go:build !windows

package hotkeys

// keyDown never fires off Windows; there is no hooked host to poll.
func keyDown(int) bool {
	return false
}
