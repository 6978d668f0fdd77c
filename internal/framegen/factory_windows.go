//go:build windows && !cgo

package framegen

import (
	"fmt"

	"github.com/frameweave/agent/internal/d3d"
)

// NewGPUGenerator builds a generator for the requested backend over the
// captured handles. The vendor-native and optical-flow variants have no
// real implementation shipped; when their prerequisites hold they run the
// common compute pipeline under their own tag.
func NewGPUGenerator(backend Backend, h d3d.Handles, execOriginal uintptr) (PresentProcessor, error) {
	switch backend {
	case BackendSpatialTemporal, BackendOpticalFlow:
	case BackendVendorNative:
		info, err := adapterInfo(h)
		if err != nil {
			return nil, fmt.Errorf("%w: adapter probe: %v", ErrBackendUnsupported, err)
		}
		if !VendorHardwareSupported(info.VendorID, info.DeviceID) {
			return nil, fmt.Errorf("%w: adapter %04x:%04x", ErrBackendUnsupported, info.VendorID, info.DeviceID)
		}
	default:
		return nil, fmt.Errorf("%w: backend %s", ErrBackendUnsupported, backend)
	}

	switch h.API {
	case d3d.APID3D12:
		return NewD3D12Generator(backend, h, execOriginal)
	case d3d.APID3D11:
		return NewD3D11Generator(backend, h)
	default:
		return nil, fmt.Errorf("%w: no captured graphics API", ErrCaptureIncomplete)
	}
}

// BackendSupported reports whether the backend can run on this machine
// and adapter. None is "supported" in the sense that disabling always
// works.
func BackendSupported(b Backend, h d3d.Handles) bool {
	switch b {
	case BackendNone, BackendSpatialTemporal, BackendOpticalFlow:
		return true
	case BackendVendorNative:
		info, err := adapterInfo(h)
		if err != nil {
			return false
		}
		return VendorHardwareSupported(info.VendorID, info.DeviceID)
	default:
		return false
	}
}

// adapterInfo resolves the adapter the captured device sits on, falling
// back to the primary adapter when no D3D11 device is available. D3D12
// devices do not expose the IDXGIDevice walk.
func adapterInfo(h d3d.Handles) (d3d.AdapterInfo, error) {
	if h.API == d3d.APID3D11 && h.Device != 0 {
		return d3d.AdapterInfoForDevice(h.Device)
	}
	return d3d.FirstAdapterInfo()
}
