//go:build windows && !cgo

package hook

import (
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL                    = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32DLL.NewProc("EnumWindows")
	procGetWindowTextW           = user32DLL.NewProc("GetWindowTextW")
	procGetWindowThreadProcessID = user32DLL.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible          = user32DLL.NewProc("IsWindowVisible")
)

type windowSearch struct {
	pid    uint32
	titles []string
	found  uintptr
}

// NewCallback allocations are permanent, so the enum thunk is created once.
var enumWindowsThunk = syscall.NewCallback(enumWindowsProc)

func enumWindowsProc(hwnd, lparam uintptr) uintptr {
	s := (*windowSearch)(unsafe.Pointer(lparam))

	var pid uint32
	procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid != s.pid {
		return 1 // continue enumeration
	}
	if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
		return 1
	}

	var buf [256]uint16
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return 1
	}
	title := strings.ToLower(windows.UTF16ToString(buf[:n]))

	if len(s.titles) == 0 {
		s.found = hwnd
		return 0 // stop
	}
	for _, want := range s.titles {
		if strings.Contains(title, strings.ToLower(want)) {
			s.found = hwnd
			return 0
		}
	}
	return 1
}

// findHostWindow scans top-level windows of the current process for one
// whose title contains any of the given substrings. With no substrings,
// the first visible titled window of this process wins.
func findHostWindow(titles []string) uintptr {
	s := &windowSearch{pid: windows.GetCurrentProcessId(), titles: titles}
	procEnumWindows.Call(enumWindowsThunk, uintptr(unsafe.Pointer(s)))
	return s.found
}
