//go:build windows && !cgo

package d3d

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	d3dCompilerDLL = syscall.NewLazyDLL("d3dcompiler_47.dll")
	procD3DCompile = d3dCompilerDLL.NewProc("D3DCompile")
)

// ID3DBlob vtable ordinals.
const (
	vtblBlobGetBufferPointer = 3
	vtblBlobGetBufferSize    = 4
)

// CompileShader compiles HLSL source at runtime and returns the bytecode.
// The hosts we load into ship no offline-compiled artifacts of ours, so
// runtime compilation through d3dcompiler is the only option.
func CompileShader(source, entry, target string) ([]byte, error) {
	srcBytes := []byte(source)
	entryBytes := append([]byte(entry), 0)
	targetBytes := append([]byte(target), 0)

	var codeBlob, errBlob uintptr
	ret, _, _ := procD3DCompile.Call(
		uintptr(unsafe.Pointer(&srcBytes[0])),
		uintptr(len(srcBytes)),
		0, // source name
		0, // defines
		0, // includes
		uintptr(unsafe.Pointer(&entryBytes[0])),
		uintptr(unsafe.Pointer(&targetBytes[0])),
		0, // flags1
		0, // flags2
		uintptr(unsafe.Pointer(&codeBlob)),
		uintptr(unsafe.Pointer(&errBlob)))
	if int32(ret) < 0 {
		msg := "no diagnostics"
		if errBlob != 0 {
			msg = string(blobBytes(errBlob))
			Release(errBlob)
		}
		return nil, fmt.Errorf("D3DCompile %s/%s HRESULT 0x%08X: %s", entry, target, uint32(ret), msg)
	}
	if errBlob != 0 {
		Release(errBlob)
	}
	defer Release(codeBlob)

	code := make([]byte, len(blobBytes(codeBlob)))
	copy(code, blobBytes(codeBlob))
	return code, nil
}

func blobBytes(blob uintptr) []byte {
	ptr := CallRaw(blob, vtblBlobGetBufferPointer)
	size := CallRaw(blob, vtblBlobGetBufferSize)
	if ptr == 0 || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}
