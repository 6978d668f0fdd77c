//go:build !windows || cgo

package framegen

import (
	"fmt"

	"github.com/frameweave/agent/internal/d3d"
)

// NewGPUGenerator always fails off Windows; there is no presentation API
// to capture surfaces from.
func NewGPUGenerator(backend Backend, _ d3d.Handles, _ uintptr) (PresentProcessor, error) {
	return nil, fmt.Errorf("%w: backend %s needs a hooked graphics API", ErrNotSupported, backend)
}

// BackendSupported reports support for the CPU-reachable variants only.
// The vendor-native path needs an adapter probe, which needs DXGI.
func BackendSupported(b Backend, _ d3d.Handles) bool {
	switch b {
	case BackendNone, BackendSpatialTemporal, BackendOpticalFlow:
		return true
	default:
		return false
	}
}
