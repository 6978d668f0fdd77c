//go:build windows && !cgo

package d3d

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ID3D12Device vtable ordinals. IUnknown 0-2, ID3D12Object 3-6,
// GetDevice/GetNodeCount 7.
const (
	VtblDevice12CreateCommandQueue         = 8
	VtblDevice12CreateCommandAllocator     = 9
	VtblDevice12CreateComputePipelineState = 11
	VtblDevice12CreateCommandList          = 12
	VtblDevice12CreateDescriptorHeap       = 14
	VtblDevice12DescriptorHandleIncrement  = 15
	VtblDevice12CreateRootSignature        = 16
	VtblDevice12CreateShaderResourceView   = 18
	VtblDevice12CreateUnorderedAccessView  = 19
	VtblDevice12CreateCommittedResource    = 27
	VtblDevice12CreateFence                = 36
)

// ID3D12CommandQueue vtable ordinals.
const (
	VtblQueueExecuteCommandLists = 10
	VtblQueueSignal              = 14
)

// ID3D12GraphicsCommandList vtable ordinals.
const (
	VtblListClose                         = 9
	VtblListReset                         = 10
	VtblListDispatch                      = 14
	VtblListCopyTextureRegion             = 16
	VtblListCopyResource                  = 17
	VtblListSetPipelineState              = 25
	VtblListResourceBarrier               = 26
	VtblListSetDescriptorHeaps            = 28
	VtblListSetComputeRootSignature       = 29
	VtblListSetComputeRootDescriptorTable = 31
	VtblListSetComputeRoot32BitConstants  = 35
)

// ID3D12CommandAllocator / ID3D12Fence ordinals.
const (
	VtblAllocatorReset = 8

	VtblFenceGetCompletedValue    = 8
	VtblFenceSetEventOnCompletion = 9

	vtblHeapCPUHandleStart = 9
	vtblHeapGPUHandleStart = 10
)

// D3D12 enums.
const (
	CommandListTypeDirect = 0

	HeapTypeDefault = 1

	ResourceDimensionTexture2D = 3

	ResourceFlagAllowUnorderedAccess = 0x4

	ResourceStateCommon            = 0
	ResourceStateUnorderedAccess   = 0x8
	ResourceStateNonPixelShaderRes = 0x40
	ResourceStateCopyDest          = 0x400
	ResourceStateCopySource        = 0x800
	ResourceStatePresent           = 0

	BarrierTypeTransition = 0

	DescriptorHeapTypeCBVSRVUAV     = 0
	DescriptorHeapFlagShaderVisible = 1

	RootParameterTypeDescriptorTable = 0
	RootParameterType32BitConstants  = 1

	DescriptorRangeTypeSRV = 0
	DescriptorRangeTypeUAV = 1

	ShaderVisibilityAll = 0

	SwapEffectFlipDiscard = 4
)

// HeapProperties matches D3D12_HEAP_PROPERTIES.
type HeapProperties struct {
	Type                 uint32
	CPUPageProperty      uint32
	MemoryPoolPreference uint32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

// ResourceDesc matches D3D12_RESOURCE_DESC.
type ResourceDesc struct {
	Dimension        uint32
	_                uint32
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           uint32
	SampleDesc       SampleDesc
	Layout           uint32
	Flags            uint32
}

// ResourceBarrier matches D3D12_RESOURCE_BARRIER for transition barriers.
type ResourceBarrier struct {
	Type        uint32
	Flags       uint32
	Resource    uintptr
	Subresource uint32
	StateBefore uint32
	StateAfter  uint32
}

// DescriptorHeapDesc matches D3D12_DESCRIPTOR_HEAP_DESC.
type DescriptorHeapDesc struct {
	Type           uint32
	NumDescriptors uint32
	Flags          uint32
	NodeMask       uint32
}

// CommandQueueDesc matches D3D12_COMMAND_QUEUE_DESC.
type CommandQueueDesc struct {
	Type     uint32
	Priority int32
	Flags    uint32
	NodeMask uint32
}

// DescriptorRange matches D3D12_DESCRIPTOR_RANGE.
type DescriptorRange struct {
	RangeType                         uint32
	NumDescriptors                    uint32
	BaseShaderRegister                uint32
	RegisterSpace                     uint32
	OffsetInDescriptorsFromTableStart uint32
}

// RootParameter matches D3D12_ROOT_PARAMETER. The union is modeled as raw
// words; use the fill helpers.
type RootParameter struct {
	ParameterType    uint32
	_                uint32
	union0           uint64
	union1           uint64
	ShaderVisibility uint32
	_                uint32
}

// AsDescriptorTable points the parameter at a descriptor range array.
func (p *RootParameter) AsDescriptorTable(ranges []DescriptorRange) {
	p.ParameterType = RootParameterTypeDescriptorTable
	p.union0 = uint64(len(ranges))
	p.union1 = uint64(uintptr(unsafe.Pointer(&ranges[0])))
	p.ShaderVisibility = ShaderVisibilityAll
}

// AsConstants makes the parameter a root-constant block.
func (p *RootParameter) AsConstants(shaderRegister, num32BitValues uint32) {
	p.ParameterType = RootParameterType32BitConstants
	p.union0 = uint64(shaderRegister) // ShaderRegister + RegisterSpace(0)
	p.union1 = uint64(num32BitValues)
	p.ShaderVisibility = ShaderVisibilityAll
}

// RootSignatureDesc matches D3D12_ROOT_SIGNATURE_DESC.
type RootSignatureDesc struct {
	NumParameters     uint32
	_                 uint32
	Parameters        uintptr
	NumStaticSamplers uint32
	_                 uint32
	StaticSamplers    uintptr
	Flags             uint32
	_                 uint32
}

// ShaderBytecode matches D3D12_SHADER_BYTECODE.
type ShaderBytecode struct {
	Data uintptr
	Size uintptr
}

// ComputePipelineStateDesc matches D3D12_COMPUTE_PIPELINE_STATE_DESC.
type ComputePipelineStateDesc struct {
	RootSignature uintptr
	CS            ShaderBytecode
	NodeMask      uint32
	_             uint32
	CachedPSO     ShaderBytecode
	Flags         uint32
	_             uint32
}

// TextureCopyLocation matches D3D12_TEXTURE_COPY_LOCATION for the
// subresource-index case.
type TextureCopyLocation struct {
	Resource uintptr
	Type     uint32
	_        uint32
	// Union; for Type=SUBRESOURCE_INDEX (1) only the first word matters.
	U0, U1, U2, U3 uint64
}

// SubresourceCopy builds a copy location addressing subresource idx.
func SubresourceCopy(resource uintptr, idx uint32) TextureCopyLocation {
	return TextureCopyLocation{Resource: resource, Type: 1, U0: uint64(idx)}
}

var (
	procD3D12SerializeRootSignature = d3d12DLL.NewProc("D3D12SerializeRootSignature")
)

// Interface IIDs for D3D12 object creation.
var (
	iidID3D12CommandQueue        = GUID{0x0ec870a6, 0x5d7e, 0x4c22, [8]byte{0x8c, 0xfc, 0x5b, 0xaa, 0xe0, 0x76, 0x16, 0xed}}
	iidID3D12CommandAllocator    = GUID{0x6102dee4, 0xaf59, 0x4b09, [8]byte{0xb9, 0x99, 0xb4, 0x4d, 0x73, 0xf0, 0x9b, 0x24}}
	iidID3D12GraphicsCommandList = GUID{0x5b160d0f, 0xac1b, 0x4185, [8]byte{0x8b, 0xa8, 0xb3, 0xae, 0x42, 0xa5, 0xa4, 0x55}}
	iidID3D12DescriptorHeap      = GUID{0x8efb471d, 0x616c, 0x4f49, [8]byte{0x90, 0xf7, 0x12, 0x7b, 0xb7, 0x63, 0xfa, 0x51}}
	iidID3D12RootSignature       = GUID{0xc54a6b66, 0x72df, 0x4ee8, [8]byte{0x8b, 0xe5, 0xa9, 0x46, 0xa1, 0x42, 0x92, 0x14}}
	iidID3D12PipelineState       = GUID{0x765a30f3, 0xf624, 0x4c6f, [8]byte{0xa8, 0x28, 0xac, 0xe9, 0x48, 0x62, 0x24, 0x45}}
	iidID3D12Fence               = GUID{0x0a753dcf, 0xc4d8, 0x4b91, [8]byte{0xad, 0xf6, 0xbe, 0x5a, 0x60, 0xd9, 0x5a, 0x76}}
)

// CreateDummyDevice12 builds a throwaway D3D12 device, direct queue, and
// flip-model swap chain for vtable discovery. The swap chain is never
// presented.
func CreateDummyDevice12(hwnd uintptr) (device, queue, swapChain uintptr, err error) {
	if hwnd == 0 {
		hwnd, _, _ = procGetDesktopWindow.Call()
	}

	ret, _, _ := procD3D12CreateDevice.Call(
		0, // default adapter
		uintptr(featureLevel11_0),
		uintptr(unsafe.Pointer(&IIDID3D12Device)),
		uintptr(unsafe.Pointer(&device)))
	if int32(ret) < 0 {
		return 0, 0, 0, fmt.Errorf("D3D12CreateDevice HRESULT 0x%08X", uint32(ret))
	}

	qdesc := CommandQueueDesc{Type: CommandListTypeDirect}
	if _, err = Call(device, VtblDevice12CreateCommandQueue,
		uintptr(unsafe.Pointer(&qdesc)),
		uintptr(unsafe.Pointer(&iidID3D12CommandQueue)),
		uintptr(unsafe.Pointer(&queue))); err != nil {
		Release(device)
		return 0, 0, 0, fmt.Errorf("CreateCommandQueue: %w", err)
	}

	var factory uintptr
	iidFactory1 := GUID{0x770aae78, 0xf26f, 0x4dba, [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	ret, _, _ = procCreateDXGIFactory1.Call(
		uintptr(unsafe.Pointer(&iidFactory1)),
		uintptr(unsafe.Pointer(&factory)))
	if int32(ret) < 0 {
		Release(queue)
		Release(device)
		return 0, 0, 0, fmt.Errorf("CreateDXGIFactory1 HRESULT 0x%08X", uint32(ret))
	}
	defer Release(factory)

	desc := SwapChainDesc{
		BufferDesc: ModeDesc{
			Width:       2,
			Height:      2,
			RefreshRate: Rational{Numerator: 60, Denominator: 1},
			Format:      FormatR8G8B8A8Unorm,
		},
		SampleDesc:   SampleDesc{Count: 1},
		BufferUsage:  UsageRenderTargetOutput,
		BufferCount:  2,
		OutputWindow: hwnd,
		Windowed:     1,
		SwapEffect:   SwapEffectFlipDiscard,
	}
	// IDXGIFactory::CreateSwapChain is ordinal 10; for D3D12 the "device"
	// argument is the command queue.
	if _, err = Call(factory, 10,
		queue,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&swapChain))); err != nil {
		Release(queue)
		Release(device)
		return 0, 0, 0, fmt.Errorf("IDXGIFactory::CreateSwapChain: %w", err)
	}
	return device, queue, swapChain, nil
}

// CreateTexture2D12 allocates a committed default-heap texture.
func CreateTexture2D12(device uintptr, width, height uint32, format, flags, initialState uint32) (uintptr, error) {
	heap := HeapProperties{Type: HeapTypeDefault}
	desc := ResourceDesc{
		Dimension:        ResourceDimensionTexture2D,
		Width:            uint64(width),
		Height:           height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           format,
		SampleDesc:       SampleDesc{Count: 1},
		Flags:            flags,
	}

	var res uintptr
	if _, err := Call(device, VtblDevice12CreateCommittedResource,
		uintptr(unsafe.Pointer(&heap)),
		0, // heap flags
		uintptr(unsafe.Pointer(&desc)),
		uintptr(initialState),
		0, // no optimized clear value
		uintptr(unsafe.Pointer(&IIDID3D12Resource)),
		uintptr(unsafe.Pointer(&res))); err != nil {
		return 0, fmt.Errorf("CreateCommittedResource %dx%d: %w", width, height, err)
	}
	return res, nil
}

// DescriptorHeap wraps a shader-visible CBV/SRV/UAV heap.
type DescriptorHeap struct {
	Heap      uintptr
	CPUStart  uintptr
	GPUStart  uint64
	Increment uint32
}

// CreateDescriptorHeap12 allocates a shader-visible descriptor heap and
// resolves its handle arithmetic.
func CreateDescriptorHeap12(device uintptr, numDescriptors uint32) (*DescriptorHeap, error) {
	desc := DescriptorHeapDesc{
		Type:           DescriptorHeapTypeCBVSRVUAV,
		NumDescriptors: numDescriptors,
		Flags:          DescriptorHeapFlagShaderVisible,
	}
	var heap uintptr
	if _, err := Call(device, VtblDevice12CreateDescriptorHeap,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&iidID3D12DescriptorHeap)),
		uintptr(unsafe.Pointer(&heap))); err != nil {
		return nil, fmt.Errorf("CreateDescriptorHeap: %w", err)
	}

	// These two methods return structs; the x64 C++ ABI passes a hidden
	// out pointer, so call them with an explicit result slot.
	var cpu uintptr
	CallRaw(heap, vtblHeapCPUHandleStart, uintptr(unsafe.Pointer(&cpu)))
	var gpu uint64
	CallRaw(heap, vtblHeapGPUHandleStart, uintptr(unsafe.Pointer(&gpu)))

	inc := uint32(CallRaw(device, VtblDevice12DescriptorHandleIncrement, uintptr(DescriptorHeapTypeCBVSRVUAV)))
	return &DescriptorHeap{Heap: heap, CPUStart: cpu, GPUStart: gpu, Increment: inc}, nil
}

// CPUAt returns the CPU handle for slot i.
func (h *DescriptorHeap) CPUAt(i uint32) uintptr {
	return h.CPUStart + uintptr(i*h.Increment)
}

// GPUAt returns the GPU handle for slot i.
func (h *DescriptorHeap) GPUAt(i uint32) uint64 {
	return h.GPUStart + uint64(i*h.Increment)
}

// WriteSRV12 writes a default shader resource view descriptor for resource
// at the given CPU descriptor handle.
func WriteSRV12(device, resource, cpuHandle uintptr) {
	CallRaw(device, VtblDevice12CreateShaderResourceView, resource, 0, cpuHandle)
}

// WriteUAV12 writes a default unordered access view descriptor for resource
// at the given CPU descriptor handle.
func WriteUAV12(device, resource, cpuHandle uintptr) {
	CallRaw(device, VtblDevice12CreateUnorderedAccessView, resource, 0, 0, cpuHandle)
}

// CreateRootSignature12 serializes and creates a root signature.
func CreateRootSignature12(device uintptr, params []RootParameter) (uintptr, error) {
	desc := RootSignatureDesc{
		NumParameters: uint32(len(params)),
		Parameters:    uintptr(unsafe.Pointer(&params[0])),
	}

	var blob, errBlob uintptr
	ret, _, _ := procD3D12SerializeRootSignature.Call(
		uintptr(unsafe.Pointer(&desc)),
		1, // D3D_ROOT_SIGNATURE_VERSION_1
		uintptr(unsafe.Pointer(&blob)),
		uintptr(unsafe.Pointer(&errBlob)))
	if int32(ret) < 0 {
		msg := "no diagnostics"
		if errBlob != 0 {
			msg = string(blobBytes(errBlob))
			Release(errBlob)
		}
		return 0, fmt.Errorf("D3D12SerializeRootSignature HRESULT 0x%08X: %s", uint32(ret), msg)
	}
	defer Release(blob)

	var sig uintptr
	if _, err := Call(device, VtblDevice12CreateRootSignature,
		0, // node mask
		CallRaw(blob, vtblBlobGetBufferPointer),
		CallRaw(blob, vtblBlobGetBufferSize),
		uintptr(unsafe.Pointer(&iidID3D12RootSignature)),
		uintptr(unsafe.Pointer(&sig))); err != nil {
		return 0, fmt.Errorf("CreateRootSignature: %w", err)
	}
	return sig, nil
}

// CreateComputePSO12 builds a compute pipeline from bytecode.
func CreateComputePSO12(device, rootSig uintptr, bytecode []byte) (uintptr, error) {
	desc := ComputePipelineStateDesc{
		RootSignature: rootSig,
		CS: ShaderBytecode{
			Data: uintptr(unsafe.Pointer(&bytecode[0])),
			Size: uintptr(len(bytecode)),
		},
	}
	var pso uintptr
	if _, err := Call(device, VtblDevice12CreateComputePipelineState,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&iidID3D12PipelineState)),
		uintptr(unsafe.Pointer(&pso))); err != nil {
		return 0, fmt.Errorf("CreateComputePipelineState: %w", err)
	}
	return pso, nil
}

// CommandKit bundles allocator + list for single-threaded recording.
type CommandKit struct {
	Allocator uintptr
	List      uintptr
}

// CreateCommandKit12 creates a direct command allocator and a closed list.
func CreateCommandKit12(device uintptr) (*CommandKit, error) {
	var alloc uintptr
	if _, err := Call(device, VtblDevice12CreateCommandAllocator,
		uintptr(CommandListTypeDirect),
		uintptr(unsafe.Pointer(&iidID3D12CommandAllocator)),
		uintptr(unsafe.Pointer(&alloc))); err != nil {
		return nil, fmt.Errorf("CreateCommandAllocator: %w", err)
	}

	var list uintptr
	if _, err := Call(device, VtblDevice12CreateCommandList,
		0, // node mask
		uintptr(CommandListTypeDirect),
		alloc,
		0, // no initial PSO
		uintptr(unsafe.Pointer(&iidID3D12GraphicsCommandList)),
		uintptr(unsafe.Pointer(&list))); err != nil {
		Release(alloc)
		return nil, fmt.Errorf("CreateCommandList: %w", err)
	}
	// Lists record on creation; close so every frame starts with Reset.
	Call(list, VtblListClose)

	return &CommandKit{Allocator: alloc, List: list}, nil
}

// Reset prepares the kit for a new recording pass.
func (k *CommandKit) Reset() error {
	if _, err := Call(k.Allocator, VtblAllocatorReset); err != nil {
		return fmt.Errorf("allocator reset: %w", err)
	}
	if _, err := Call(k.List, VtblListReset, k.Allocator, 0); err != nil {
		return fmt.Errorf("list reset: %w", err)
	}
	return nil
}

// Release frees the kit's COM objects.
func (k *CommandKit) Release() {
	Release(k.List)
	Release(k.Allocator)
	k.List, k.Allocator = 0, 0
}

// Transition records a state transition barrier on a list.
func Transition(list, resource uintptr, before, after uint32) {
	barrier := ResourceBarrier{
		Type:        BarrierTypeTransition,
		Resource:    resource,
		Subresource: 0xFFFFFFFF, // all subresources
		StateBefore: before,
		StateAfter:  after,
	}
	CallRaw(list, VtblListResourceBarrier, 1, uintptr(unsafe.Pointer(&barrier)))
}

// FenceKit bundles a fence with its wait event.
type FenceKit struct {
	Fence uintptr
	Event windows.Handle
	Value uint64
}

// CreateFenceKit12 creates a fence starting at zero plus its event.
func CreateFenceKit12(device uintptr) (*FenceKit, error) {
	var fence uintptr
	if _, err := Call(device, VtblDevice12CreateFence,
		0, // initial value
		0, // flags
		uintptr(unsafe.Pointer(&iidID3D12Fence)),
		uintptr(unsafe.Pointer(&fence))); err != nil {
		return nil, fmt.Errorf("CreateFence: %w", err)
	}
	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		Release(fence)
		return nil, fmt.Errorf("CreateEvent: %w", err)
	}
	return &FenceKit{Fence: fence, Event: event}, nil
}

// SignalAndWait signals the next fence value on queue through the given
// ExecuteCommandLists-adjacent Signal entry and blocks up to timeout.
// Returns false on timeout; the caller skips the cycle.
func (f *FenceKit) SignalAndWait(queue uintptr, timeout time.Duration) (bool, error) {
	f.Value++
	if _, err := Call(queue, VtblQueueSignal, f.Fence, uintptr(f.Value)); err != nil {
		return false, fmt.Errorf("queue signal: %w", err)
	}
	if CallRaw(f.Fence, VtblFenceGetCompletedValue) >= uintptr(f.Value) {
		return true, nil
	}
	if _, err := Call(f.Fence, VtblFenceSetEventOnCompletion,
		uintptr(f.Value), uintptr(f.Event)); err != nil {
		return false, fmt.Errorf("SetEventOnCompletion: %w", err)
	}
	status, err := windows.WaitForSingleObject(f.Event, uint32(timeout.Milliseconds()))
	if err != nil {
		return false, fmt.Errorf("fence wait: %w", err)
	}
	return status == windows.WAIT_OBJECT_0, nil
}

// Release frees the fence and event.
func (f *FenceKit) Release() {
	Release(f.Fence)
	if f.Event != 0 {
		windows.CloseHandle(f.Event)
		f.Event = 0
	}
	f.Fence = 0
}
