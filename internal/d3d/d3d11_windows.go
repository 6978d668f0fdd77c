//go:build windows && !cgo

package d3d

import (
	"fmt"
	"syscall"
	"unsafe"
)

// ID3D11Device vtable ordinals.
const (
	VtblDeviceCreateBuffer              = 3
	VtblDeviceCreateTexture2D           = 5
	VtblDeviceCreateShaderResourceView  = 7
	VtblDeviceCreateUnorderedAccessView = 8
	VtblDeviceCreateRenderTargetView    = 9
	VtblDeviceCreateComputeShader       = 18
	VtblDeviceCreateSamplerState        = 23
	VtblDeviceCreateQuery               = 24
	VtblDeviceGetImmediateContext       = 40
)

// ID3D11DeviceContext vtable ordinals.
const (
	VtblContextMap                       = 14
	VtblContextUnmap                     = 15
	VtblContextBegin                     = 27
	VtblContextEnd                       = 28
	VtblContextGetData                   = 29
	VtblContextDispatch                  = 41
	VtblContextRSSetViewports            = 44
	VtblContextCopySubresourceRegion     = 46
	VtblContextCopyResource              = 47
	VtblContextCSSetShaderResources      = 67
	VtblContextCSSetUnorderedAccessViews = 68
	VtblContextCSSetShader               = 69
	VtblContextCSSetSamplers             = 70
	VtblContextCSSetConstantBuffers      = 71
	VtblContextFlush                     = 111
)

// D3D11 enums.
const (
	Usage11Default = 0
	Usage11Dynamic = 2
	Usage11Staging = 3

	Bind11ShaderResource  = 0x8
	Bind11UnorderedAccess = 0x80
	Bind11ConstantBuffer  = 0x4

	CPUAccess11Read  = 0x20000
	CPUAccess11Write = 0x10000

	Map11Read         = 1
	Map11WriteDiscard = 4

	Query11Event = 0 // D3D11_QUERY_EVENT
)

// Texture2DDesc matches D3D11_TEXTURE2D_DESC.
type Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleDesc     SampleDesc
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// BufferDesc matches D3D11_BUFFER_DESC.
type BufferDesc struct {
	ByteWidth           uint32
	Usage               uint32
	BindFlags           uint32
	CPUAccessFlags      uint32
	MiscFlags           uint32
	StructureByteStride uint32
}

// MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type MappedSubresource struct {
	Data       uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// QueryDesc matches D3D11_QUERY_DESC.
type QueryDesc struct {
	Query     uint32
	MiscFlags uint32
}

// Box matches D3D11_BOX.
type Box struct {
	Left, Top, Front    uint32
	Right, Bottom, Back uint32
}

// Viewport11 matches D3D11_VIEWPORT.
type Viewport11 struct {
	TopLeftX float32
	TopLeftY float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

var (
	user32DLL            = syscall.NewLazyDLL("user32.dll")
	procGetDesktopWindow = user32DLL.NewProc("GetDesktopWindow")
)

// CreateDummyDevice11 creates a throwaway D3D11 device plus swap chain so
// the live Present/ResizeBuffers vtable can be read. hwnd 0 targets the
// desktop window; the swap chain is windowed and never presented.
func CreateDummyDevice11(hwnd uintptr) (device, context, swapChain uintptr, err error) {
	if hwnd == 0 {
		hwnd, _, _ = procGetDesktopWindow.Call()
	}

	desc := SwapChainDesc{
		BufferDesc: ModeDesc{
			Width:       2,
			Height:      2,
			RefreshRate: Rational{Numerator: 60, Denominator: 1},
			Format:      FormatB8G8R8A8Unorm,
		},
		SampleDesc:   SampleDesc{Count: 1},
		BufferUsage:  UsageRenderTargetOutput,
		BufferCount:  1,
		OutputWindow: hwnd,
		Windowed:     1,
		SwapEffect:   SwapEffectDiscard,
	}

	level := uint32(featureLevel11_0)
	ret, _, _ := procD3D11CreateDeviceAndSwapChain.Call(
		0, // default adapter
		uintptr(d3dDriverTypeHardware),
		0, // no software module
		0, // no creation flags
		uintptr(unsafe.Pointer(&level)),
		1,
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&swapChain)),
		uintptr(unsafe.Pointer(&device)),
		0, // actual feature level
		uintptr(unsafe.Pointer(&context)))
	if int32(ret) < 0 {
		return 0, 0, 0, fmt.Errorf("D3D11CreateDeviceAndSwapChain HRESULT 0x%08X", uint32(ret))
	}
	return device, context, swapChain, nil
}

// DeviceForSwapChain11 fetches the D3D11 device and immediate context
// behind a live swap chain.
func DeviceForSwapChain11(swapChain uintptr) (device, context uintptr, err error) {
	iidDevice := GUID{0xdb6f6ddb, 0xac77, 0x4e88, [8]byte{0x82, 0x53, 0x81, 0x9d, 0xf9, 0xbb, 0xf1, 0x40}}
	if _, err := Call(swapChain, VtblSwapChainGetDevice,
		uintptr(unsafe.Pointer(&iidDevice)),
		uintptr(unsafe.Pointer(&device))); err != nil {
		return 0, 0, fmt.Errorf("IDXGISwapChain::GetDevice: %w", err)
	}
	CallRaw(device, VtblDeviceGetImmediateContext, uintptr(unsafe.Pointer(&context)))
	if context == 0 {
		Release(device)
		return 0, 0, fmt.Errorf("GetImmediateContext returned nil")
	}
	return device, context, nil
}

// CreateTexture2D11 allocates a texture on a D3D11 device.
func CreateTexture2D11(device uintptr, desc *Texture2DDesc) (uintptr, error) {
	var tex uintptr
	if _, err := Call(device, VtblDeviceCreateTexture2D,
		uintptr(unsafe.Pointer(desc)),
		0, // no initial data
		uintptr(unsafe.Pointer(&tex))); err != nil {
		return 0, fmt.Errorf("CreateTexture2D: %w", err)
	}
	return tex, nil
}

// CreateSRV11 creates a shader resource view with the default descriptor.
func CreateSRV11(device, resource uintptr) (uintptr, error) {
	var srv uintptr
	if _, err := Call(device, VtblDeviceCreateShaderResourceView,
		resource, 0, uintptr(unsafe.Pointer(&srv))); err != nil {
		return 0, fmt.Errorf("CreateShaderResourceView: %w", err)
	}
	return srv, nil
}

// CreateUAV11 creates an unordered access view with the default descriptor.
func CreateUAV11(device, resource uintptr) (uintptr, error) {
	var uav uintptr
	if _, err := Call(device, VtblDeviceCreateUnorderedAccessView,
		resource, 0, uintptr(unsafe.Pointer(&uav))); err != nil {
		return 0, fmt.Errorf("CreateUnorderedAccessView: %w", err)
	}
	return uav, nil
}

// CreateBuffer11 allocates a buffer, optionally with initial data.
func CreateBuffer11(device uintptr, desc *BufferDesc, data unsafe.Pointer) (uintptr, error) {
	var buf uintptr
	var initial uintptr
	type subresourceData struct {
		Mem         uintptr
		RowPitch    uint32
		SlicePitch  uint32
	}
	var sd subresourceData
	if data != nil {
		sd.Mem = uintptr(data)
		initial = uintptr(unsafe.Pointer(&sd))
	}
	if _, err := Call(device, VtblDeviceCreateBuffer,
		uintptr(unsafe.Pointer(desc)),
		initial,
		uintptr(unsafe.Pointer(&buf))); err != nil {
		return 0, fmt.Errorf("CreateBuffer: %w", err)
	}
	return buf, nil
}

// CreateComputeShader11 builds a compute shader from compiled bytecode.
func CreateComputeShader11(device uintptr, bytecode []byte) (uintptr, error) {
	var cs uintptr
	if _, err := Call(device, VtblDeviceCreateComputeShader,
		uintptr(unsafe.Pointer(&bytecode[0])),
		uintptr(len(bytecode)),
		0, // no class linkage
		uintptr(unsafe.Pointer(&cs))); err != nil {
		return 0, fmt.Errorf("CreateComputeShader: %w", err)
	}
	return cs, nil
}

// CreateEventQuery11 creates a D3D11_QUERY_EVENT used for bounded GPU
// completion waits.
func CreateEventQuery11(device uintptr) (uintptr, error) {
	desc := QueryDesc{Query: Query11Event}
	var query uintptr
	if _, err := Call(device, VtblDeviceCreateQuery,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&query))); err != nil {
		return 0, fmt.Errorf("CreateQuery(EVENT): %w", err)
	}
	return query, nil
}

// QuerySignaled polls an event query once. S_OK with data means done.
func QuerySignaled(context, query uintptr) bool {
	var done uint32
	ret := CallRaw(context, VtblContextGetData,
		query,
		uintptr(unsafe.Pointer(&done)),
		unsafe.Sizeof(done),
		0)
	return ret == 0 && done != 0
}
