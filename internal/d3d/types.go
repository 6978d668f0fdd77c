// Package d3d carries the pure-Go COM interop for the hooked graphics
// APIs: GUIDs, vtable ordinals, struct layouts, and small helpers over
// syscall. Handles are raw COM interface pointers passed around as uintptr;
// ownership follows COM reference counting, with the owner responsible for
// Release.
package d3d

// API identifies the graphics API family of a captured host.
type API int

const (
	APIUnknown API = iota
	APID3D11
	APID3D12
)

func (a API) String() string {
	switch a {
	case APID3D11:
		return "d3d11"
	case APID3D12:
		return "d3d12"
	default:
		return "unknown"
	}
}

// Handles is the set of live COM pointers captured from the host process.
// Zero values mean not yet captured. Device/Context are D3D11-side,
// Device12/Queue are D3D12-side; SwapChain is common.
type Handles struct {
	API       API
	SwapChain uintptr
	Device    uintptr
	Context   uintptr
	Device12  uintptr
	Queue     uintptr
}

// Complete reports whether everything the active API needs is captured.
func (h Handles) Complete() bool {
	if h.SwapChain == 0 {
		return false
	}
	switch h.API {
	case APID3D11:
		return h.Device != 0 && h.Context != 0
	case APID3D12:
		return h.Device12 != 0 && h.Queue != 0
	default:
		return false
	}
}

// AdapterInfo identifies the GPU behind a device.
type AdapterInfo struct {
	VendorID    uint32
	DeviceID    uint32
	Description string
}
