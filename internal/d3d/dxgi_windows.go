//go:build windows && !cgo

package d3d

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	d3d11DLL = syscall.NewLazyDLL("d3d11.dll")
	d3d12DLL = syscall.NewLazyDLL("d3d12.dll")
	dxgiDLL  = syscall.NewLazyDLL("dxgi.dll")

	procD3D11CreateDeviceAndSwapChain = d3d11DLL.NewProc("D3D11CreateDeviceAndSwapChain")
	procD3D12CreateDevice             = d3d12DLL.NewProc("D3D12CreateDevice")
	procCreateDXGIFactory1            = dxgiDLL.NewProc("CreateDXGIFactory1")
)

// RuntimePresent reports which runtime DLLs the host has loaded. The lazy
// handles only load on first use; Load errors mean the DLL is absent.
func RuntimePresent(api API) bool {
	switch api {
	case APID3D11:
		return d3d11DLL.Load() == nil
	case APID3D12:
		return d3d12DLL.Load() == nil && dxgiDLL.Load() == nil
	default:
		return false
	}
}

// DXGI formats and enums used by the pipeline.
const (
	FormatB8G8R8A8Unorm = 87 // DXGI_FORMAT_B8G8R8A8_UNORM
	FormatR8G8B8A8Unorm = 28 // DXGI_FORMAT_R8G8B8A8_UNORM
	FormatR16G16Float   = 34 // DXGI_FORMAT_R16G16_FLOAT

	UsageRenderTargetOutput = 0x20 // DXGI_USAGE_RENDER_TARGET_OUTPUT

	SwapEffectDiscard = 0 // DXGI_SWAP_EFFECT_DISCARD

	d3dDriverTypeHardware = 1
	d3d11SDKVersion       = 7

	featureLevel11_0 = 0xb000
)

// Rational matches DXGI_RATIONAL.
type Rational struct {
	Numerator   uint32
	Denominator uint32
}

// ModeDesc matches DXGI_MODE_DESC.
type ModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      Rational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// SampleDesc matches DXGI_SAMPLE_DESC.
type SampleDesc struct {
	Count   uint32
	Quality uint32
}

// SwapChainDesc matches DXGI_SWAP_CHAIN_DESC.
type SwapChainDesc struct {
	BufferDesc   ModeDesc
	SampleDesc   SampleDesc
	BufferUsage  uint32
	BufferCount  uint32
	OutputWindow uintptr
	Windowed     int32
	SwapEffect   uint32
	Flags        uint32
}

// AdapterDesc matches DXGI_ADAPTER_DESC.
type AdapterDesc struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLUID           int64
}

// IDXGISwapChain vtable ordinals. IUnknown 0-2, IDXGIObject 3-6,
// IDXGIDeviceSubObject 7.
const (
	VtblSwapChainGetDevice     = 7
	VtblSwapChainPresent       = 8
	VtblSwapChainGetBuffer     = 9
	VtblSwapChainGetDesc       = 12
	VtblSwapChainResizeBuffers = 13

	// IDXGISwapChain3 extension.
	VtblSwapChain3GetCurrentBackBufferIndex = 36
)

// IDXGIDevice / IDXGIAdapter ordinals.
const (
	vtblDXGIDeviceGetAdapter = 7
	vtblDXGIAdapterGetDesc   = 8
)

// Interface IIDs.
var (
	IIDIDXGIDevice     = GUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	IIDIDXGISwapChain3 = GUID{0x94d99bdb, 0xf1f8, 0x4ab0, [8]byte{0xb2, 0x36, 0x7d, 0xa0, 0x17, 0x0e, 0xda, 0xb1}}
	IIDID3D11Texture2D = GUID{0x6f15aaf2, 0xd208, 0x4e89, [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	IIDID3D12Device    = GUID{0x189819f1, 0x1db6, 0x4b57, [8]byte{0xbe, 0x54, 0x18, 0x21, 0x33, 0x9b, 0x85, 0xf7}}
	IIDID3D12Resource  = GUID{0x696442be, 0xa72e, 0x4059, [8]byte{0xbc, 0x79, 0x5b, 0x5c, 0x98, 0x04, 0x0f, 0xad}}
)

// SwapChainDescFor reads DXGI_SWAP_CHAIN_DESC from a live swap chain.
func SwapChainDescFor(swapChain uintptr) (*SwapChainDesc, error) {
	var desc SwapChainDesc
	if _, err := Call(swapChain, VtblSwapChainGetDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		return nil, fmt.Errorf("IDXGISwapChain::GetDesc: %w", err)
	}
	return &desc, nil
}

// SwapChainBuffer fetches back buffer idx as the interface named by iid.
func SwapChainBuffer(swapChain uintptr, idx uint32, iid *GUID) (uintptr, error) {
	var buf uintptr
	if _, err := Call(swapChain, VtblSwapChainGetBuffer,
		uintptr(idx),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&buf))); err != nil {
		return 0, fmt.Errorf("IDXGISwapChain::GetBuffer(%d): %w", idx, err)
	}
	return buf, nil
}

// CurrentBackBufferIndex returns the active buffer index for flip-model
// swap chains, 0 when the IDXGISwapChain3 interface is unavailable.
func CurrentBackBufferIndex(swapChain uintptr) uint32 {
	sc3, err := QueryInterface(swapChain, &IIDIDXGISwapChain3)
	if err != nil {
		return 0
	}
	defer Release(sc3)
	return uint32(CallRaw(sc3, VtblSwapChain3GetCurrentBackBufferIndex))
}

// AdapterInfoForDevice walks device → IDXGIDevice → adapter → descriptor.
// Works for D3D11 devices; D3D12 callers go through AdapterInfoForLUID-free
// factory enumeration instead.
func AdapterInfoForDevice(device uintptr) (AdapterInfo, error) {
	dxgiDev, err := QueryInterface(device, &IIDIDXGIDevice)
	if err != nil {
		return AdapterInfo{}, fmt.Errorf("query IDXGIDevice: %w", err)
	}
	defer Release(dxgiDev)

	var adapter uintptr
	if _, err := Call(dxgiDev, vtblDXGIDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return AdapterInfo{}, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer Release(adapter)

	return adapterDesc(adapter)
}

// FirstAdapterInfo enumerates the primary adapter through a DXGI factory.
func FirstAdapterInfo() (AdapterInfo, error) {
	var factory uintptr
	iidFactory1 := GUID{0x770aae78, 0xf26f, 0x4dba, [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	ret, _, _ := procCreateDXGIFactory1.Call(
		uintptr(unsafe.Pointer(&iidFactory1)),
		uintptr(unsafe.Pointer(&factory)))
	if int32(ret) < 0 {
		return AdapterInfo{}, fmt.Errorf("CreateDXGIFactory1 HRESULT 0x%08X", uint32(ret))
	}
	defer Release(factory)

	// IDXGIFactory::EnumAdapters is ordinal 7 (IDXGIObject 3-6).
	var adapter uintptr
	if _, err := Call(factory, 7, 0, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return AdapterInfo{}, fmt.Errorf("IDXGIFactory::EnumAdapters(0): %w", err)
	}
	defer Release(adapter)

	return adapterDesc(adapter)
}

func adapterDesc(adapter uintptr) (AdapterInfo, error) {
	var desc AdapterDesc
	if _, err := Call(adapter, vtblDXGIAdapterGetDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		return AdapterInfo{}, fmt.Errorf("IDXGIAdapter::GetDesc: %w", err)
	}
	return AdapterInfo{
		VendorID:    desc.VendorID,
		DeviceID:    desc.DeviceID,
		Description: syscall.UTF16ToString(desc.Description[:]),
	}, nil
}
