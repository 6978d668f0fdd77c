//go:build windows && !cgo

package d3d

import (
	"fmt"
	"syscall"
	"unsafe"
)

// COM vtable calling infrastructure. Pure syscall, no cgo: the interposer
// must load into processes we do not build.

// GUID is a COM GUID (128-bit).
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// IUnknown vtable ordinals, fixed by the COM ABI.
const (
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2
)

// Call invokes a COM vtable method at the given index. obj is a COM
// interface pointer (pointer to pointer to vtable). Negative HRESULTs
// become errors; methods returning void or non-HRESULT values should use
// CallRaw.
func Call(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	ret := CallRaw(obj, vtableIdx, args...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// CallRaw invokes a COM vtable method and returns the raw result.
func CallRaw(obj uintptr, vtableIdx int, args ...uintptr) uintptr {
	fnPtr := VtblEntry(obj, vtableIdx)
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(fnPtr, allArgs...)
	return ret
}

// VtblEntry reads the function pointer at a vtable slot.
func VtblEntry(obj uintptr, vtableIdx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))
}

// Release calls IUnknown::Release, tolerating a zero handle.
func Release(obj uintptr) {
	if obj != 0 {
		CallRaw(obj, vtblRelease)
	}
}

// AddRef calls IUnknown::AddRef.
func AddRef(obj uintptr) {
	if obj != 0 {
		CallRaw(obj, vtblAddRef)
	}
}

// QueryInterface asks obj for another interface.
func QueryInterface(obj uintptr, iid *GUID) (uintptr, error) {
	var out uintptr
	_, err := Call(obj, vtblQueryInterface,
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return 0, err
	}
	return out, nil
}
