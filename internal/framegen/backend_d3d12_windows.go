//go:build windows && !cgo

package framegen

import (
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/frameweave/agent/internal/d3d"
	"github.com/frameweave/agent/internal/logging"
)

// gpuWaitBudget bounds the per-cycle fence wait. Presenting a half-written
// synthesized frame is worse than skipping the cycle, so a timeout counts
// the cycle as missed and the real frame goes through untouched.
const gpuWaitBudget = 50 * time.Millisecond

// Descriptor heap layout: slots 0-3 feed the motion pass, 4-7 the
// interpolation pass. Each table is three SRVs followed by one UAV.
const (
	descMotionBase = 0
	descInterpBase = 4
	descHeapSize   = 8
)

// D3D12Generator runs the synthesis pipeline as two compute dispatches
// recorded against the captured device and submitted on the host's own
// direct queue, ahead of the real present.
type D3D12Generator struct {
	log     *slog.Logger
	backend Backend

	handles d3d.Handles
	exec    uintptr // unhooked ExecuteCommandLists entry

	rootSig   uintptr
	psoMotion uintptr
	psoInterp uintptr
	heap      *d3d.DescriptorHeap
	kit       *d3d.CommandKit
	fence     *d3d.FenceKit

	policy  InjectionPolicy
	tracker Tracker
	tuning  gpuTuning

	mu        sync.Mutex
	format    uint32
	width     int
	height    int
	ring      [HistoryCapacity]uintptr
	ringCount int
	head      int
	motionTex uintptr
	motionW   int
	motionH   int
	outputTex uintptr
}

// NewD3D12Generator compiles the compute pipeline against the captured
// device and sizes resources from the live swap-chain descriptor.
// execOriginal is the pre-hook ExecuteCommandLists entry; zero falls back
// to the (hooked, but re-entrant safe) vtable slot.
func NewD3D12Generator(backend Backend, h d3d.Handles, execOriginal uintptr) (*D3D12Generator, error) {
	if h.API != d3d.APID3D12 || !h.Complete() {
		return nil, fmt.Errorf("%w: incomplete d3d12 handles", ErrCaptureIncomplete)
	}

	g := &D3D12Generator{
		log:     logging.L("framegen"),
		backend: backend,
		handles: h,
		exec:    execOriginal,
		tuning:  newGPUTuning(),
	}

	motionCode, err := d3d.CompileShader(motionShaderHLSL, "MainCS", "cs_5_0")
	if err != nil {
		return nil, fmt.Errorf("motion shader: %w", err)
	}
	interpCode, err := d3d.CompileShader(interpShaderHLSL, "MainCS", "cs_5_0")
	if err != nil {
		return nil, fmt.Errorf("interpolation shader: %w", err)
	}

	ranges := []d3d.DescriptorRange{
		{RangeType: d3d.DescriptorRangeTypeSRV, NumDescriptors: 3, OffsetInDescriptorsFromTableStart: 0},
		{RangeType: d3d.DescriptorRangeTypeUAV, NumDescriptors: 1, OffsetInDescriptorsFromTableStart: 3},
	}
	params := make([]d3d.RootParameter, 2)
	params[0].AsDescriptorTable(ranges)
	params[1].AsConstants(0, 4)

	if g.rootSig, err = d3d.CreateRootSignature12(h.Device12, params); err != nil {
		g.Close()
		return nil, err
	}
	if g.psoMotion, err = d3d.CreateComputePSO12(h.Device12, g.rootSig, motionCode); err != nil {
		g.Close()
		return nil, err
	}
	if g.psoInterp, err = d3d.CreateComputePSO12(h.Device12, g.rootSig, interpCode); err != nil {
		g.Close()
		return nil, err
	}
	if g.heap, err = d3d.CreateDescriptorHeap12(h.Device12, descHeapSize); err != nil {
		g.Close()
		return nil, err
	}
	if g.kit, err = d3d.CreateCommandKit12(h.Device12); err != nil {
		g.Close()
		return nil, err
	}
	if g.fence, err = d3d.CreateFenceKit12(h.Device12); err != nil {
		g.Close()
		return nil, err
	}

	desc, err := d3d.SwapChainDescFor(h.SwapChain)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.format = desc.BufferDesc.Format
	if err := g.Resize(int(desc.BufferDesc.Width), int(desc.BufferDesc.Height)); err != nil {
		g.Close()
		return nil, err
	}

	g.log.Info("d3d12 generator ready",
		"width", g.width, "height", g.height, "format", g.format)
	return g, nil
}

// Resize reallocates the texture set for w×h frames. History is dropped
// when the dimensions actually change.
func (g *D3D12Generator) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocationFailed, w, h)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w == g.width && h == g.height {
		return nil
	}
	g.releaseTexturesLocked()

	dev := g.handles.Device12
	for i := range g.ring {
		tex, err := d3d.CreateTexture2D12(dev, uint32(w), uint32(h), g.format, 0, d3d.ResourceStateCopyDest)
		if err != nil {
			g.releaseTexturesLocked()
			return fmt.Errorf("%w: history slot %d: %v", ErrAllocationFailed, i, err)
		}
		g.ring[i] = tex
	}

	mw := (w + motionBlockSize - 1) / motionBlockSize
	mh := (h + motionBlockSize - 1) / motionBlockSize
	motion, err := d3d.CreateTexture2D12(dev, uint32(mw), uint32(mh), d3d.FormatR16G16Float,
		d3d.ResourceFlagAllowUnorderedAccess, d3d.ResourceStateUnorderedAccess)
	if err != nil {
		g.releaseTexturesLocked()
		return fmt.Errorf("%w: motion field: %v", ErrAllocationFailed, err)
	}
	output, err := d3d.CreateTexture2D12(dev, uint32(w), uint32(h), g.format,
		d3d.ResourceFlagAllowUnorderedAccess, d3d.ResourceStateUnorderedAccess)
	if err != nil {
		d3d.Release(motion)
		g.releaseTexturesLocked()
		return fmt.Errorf("%w: output target: %v", ErrAllocationFailed, err)
	}

	g.motionTex, g.motionW, g.motionH = motion, mw, mh
	g.outputTex = output
	g.width, g.height = w, h
	g.ringCount, g.head = 0, 0
	g.tracker.Reset()
	return nil
}

func (g *D3D12Generator) releaseTexturesLocked() {
	for i, tex := range g.ring {
		if tex != 0 {
			d3d.Release(tex)
			g.ring[i] = 0
		}
	}
	if g.motionTex != 0 {
		d3d.Release(g.motionTex)
		g.motionTex = 0
	}
	if g.outputTex != 0 {
		d3d.Release(g.outputTex)
		g.outputTex = 0
	}
	g.width, g.height = 0, 0
	g.ringCount, g.head = 0, 0
}

// ProcessPresent captures the pending back buffer into the history ring
// and, on generation cycles, replaces it with the synthesized midpoint
// between the two newest captures.
func (g *D3D12Generator) ProcessPresent() {
	g.tracker.MarkPresent(time.Now())

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.width == 0 {
		return
	}

	idx := d3d.CurrentBackBufferIndex(g.handles.SwapChain)
	backBuffer, err := d3d.SwapChainBuffer(g.handles.SwapChain, idx, &d3d.IIDID3D12Resource)
	if err != nil {
		g.log.Warn("back buffer unavailable", logging.KeyError, err)
		return
	}
	defer d3d.Release(backBuffer)

	if err := g.kit.Reset(); err != nil {
		g.log.Warn("command reset failed", logging.KeyError, err)
		return
	}

	curr := g.head
	g.head = (g.head + 1) % HistoryCapacity
	if g.ringCount < HistoryCapacity {
		g.ringCount++
	}

	list := g.kit.List
	d3d.Transition(list, backBuffer, d3d.ResourceStatePresent, d3d.ResourceStateCopySource)
	d3d.CallRaw(list, d3d.VtblListCopyResource, g.ring[curr], backBuffer)

	if !g.policy.Decide(g.ringCount) {
		d3d.Transition(list, backBuffer, d3d.ResourceStateCopySource, d3d.ResourceStatePresent)
		g.submitLocked()
		return
	}

	prev := (curr + HistoryCapacity - 1) % HistoryCapacity
	g.recordSynthesisLocked(backBuffer, g.ring[prev], g.ring[curr])

	start := time.Now()
	g.submitLocked()
	done, err := g.fence.SignalAndWait(g.handles.Queue, gpuWaitBudget)
	if err != nil || !done {
		if err != nil {
			g.log.Warn("fence wait failed", logging.KeyError, err)
		}
		g.policy.RecordMissed()
		return
	}
	g.tracker.MarkGPU(time.Since(start))
	g.policy.RecordGenerated()
}

// recordSynthesisLocked records both compute passes plus the write-back
// copy. The previous generation cycle's fence wait guarantees the
// descriptor heap is no longer in flight when it is rewritten here.
func (g *D3D12Generator) recordSynthesisLocked(backBuffer, prevTex, currTex uintptr) {
	dev := g.handles.Device12
	list := g.kit.List

	d3d.WriteSRV12(dev, prevTex, g.heap.CPUAt(descMotionBase))
	d3d.WriteSRV12(dev, currTex, g.heap.CPUAt(descMotionBase+1))
	d3d.WriteSRV12(dev, prevTex, g.heap.CPUAt(descMotionBase+2))
	d3d.WriteUAV12(dev, g.motionTex, g.heap.CPUAt(descMotionBase+3))

	d3d.WriteSRV12(dev, prevTex, g.heap.CPUAt(descInterpBase))
	d3d.WriteSRV12(dev, currTex, g.heap.CPUAt(descInterpBase+1))
	d3d.WriteSRV12(dev, g.motionTex, g.heap.CPUAt(descInterpBase+2))
	d3d.WriteUAV12(dev, g.outputTex, g.heap.CPUAt(descInterpBase+3))

	d3d.Transition(list, prevTex, d3d.ResourceStateCopyDest, d3d.ResourceStateNonPixelShaderRes)
	d3d.Transition(list, currTex, d3d.ResourceStateCopyDest, d3d.ResourceStateNonPixelShaderRes)

	heaps := [1]uintptr{g.heap.Heap}
	d3d.CallRaw(list, d3d.VtblListSetDescriptorHeaps, 1, uintptr(unsafe.Pointer(&heaps[0])))
	d3d.CallRaw(list, d3d.VtblListSetComputeRootSignature, g.rootSig)

	consts := gpuConstants{
		Width:     uint32(g.width),
		Height:    uint32(g.height),
		Factor:    interpolationFactor,
		Sharpness: g.tuning.effectiveSharpness(),
	}
	d3d.CallRaw(list, d3d.VtblListSetComputeRoot32BitConstants,
		1, 4, uintptr(unsafe.Pointer(&consts)), 0)

	d3d.CallRaw(list, d3d.VtblListSetPipelineState, g.psoMotion)
	d3d.CallRaw(list, d3d.VtblListSetComputeRootDescriptorTable,
		0, uintptr(g.heap.GPUAt(descMotionBase)))
	d3d.CallRaw(list, d3d.VtblListDispatch,
		uintptr(groupCount(g.motionW)), uintptr(groupCount(g.motionH)), 1)

	d3d.Transition(list, g.motionTex, d3d.ResourceStateUnorderedAccess, d3d.ResourceStateNonPixelShaderRes)

	d3d.CallRaw(list, d3d.VtblListSetPipelineState, g.psoInterp)
	d3d.CallRaw(list, d3d.VtblListSetComputeRootDescriptorTable,
		0, uintptr(g.heap.GPUAt(descInterpBase)))
	d3d.CallRaw(list, d3d.VtblListDispatch,
		uintptr(groupCount(g.width)), uintptr(groupCount(g.height)), 1)

	d3d.Transition(list, g.outputTex, d3d.ResourceStateUnorderedAccess, d3d.ResourceStateCopySource)
	d3d.Transition(list, backBuffer, d3d.ResourceStateCopySource, d3d.ResourceStateCopyDest)
	d3d.CallRaw(list, d3d.VtblListCopyResource, backBuffer, g.outputTex)
	d3d.Transition(list, backBuffer, d3d.ResourceStateCopyDest, d3d.ResourceStatePresent)

	// Restore rest states for the next cycle.
	d3d.Transition(list, g.outputTex, d3d.ResourceStateCopySource, d3d.ResourceStateUnorderedAccess)
	d3d.Transition(list, g.motionTex, d3d.ResourceStateNonPixelShaderRes, d3d.ResourceStateUnorderedAccess)
	d3d.Transition(list, prevTex, d3d.ResourceStateNonPixelShaderRes, d3d.ResourceStateCopyDest)
	d3d.Transition(list, currTex, d3d.ResourceStateNonPixelShaderRes, d3d.ResourceStateCopyDest)
}

// submitLocked closes the list and hands it to the host's queue through
// the original, unhooked entry so the submission is not re-captured.
func (g *D3D12Generator) submitLocked() {
	if _, err := d3d.Call(g.kit.List, d3d.VtblListClose); err != nil {
		g.log.Warn("command list close failed", logging.KeyError, err)
		return
	}
	lists := [1]uintptr{g.kit.List}
	if g.exec != 0 {
		syscall.SyscallN(g.exec, g.handles.Queue, 1, uintptr(unsafe.Pointer(&lists[0])))
		return
	}
	d3d.CallRaw(g.handles.Queue, d3d.VtblQueueExecuteCommandLists, 1, uintptr(unsafe.Pointer(&lists[0])))
}

// SetQuality applies a preset; a manual sharpness override sticks.
func (g *D3D12Generator) SetQuality(q QualityPreset) { g.tuning.setQuality(q) }

// SetSharpness overrides the preset sharpness, clamped to [0,1].
func (g *D3D12Generator) SetSharpness(s float32) { g.tuning.setSharpness(s) }

// Reset drops history and counters, e.g. after swap-chain replacement.
func (g *D3D12Generator) Reset() {
	g.mu.Lock()
	g.ringCount, g.head = 0, 0
	g.mu.Unlock()
	g.policy.Reset()
	g.tracker.Reset()
}

// Snapshot assembles the performance counters.
func (g *D3D12Generator) Snapshot() Stats {
	baseFPS, frameMs, gpuMs := g.tracker.Timings()
	observed, generated, missed := g.policy.Counters()

	outputFPS := baseFPS
	if generated > 0 {
		outputFPS = baseFPS * 2
	}
	return Stats{
		BaseFPS:         baseFPS,
		OutputFPS:       outputFPS,
		FrameTimeMs:     frameMs,
		GPUTimeMs:       gpuMs,
		FramesObserved:  observed,
		FramesGenerated: generated,
		FramesMissed:    missed,
	}
}

// Backend reports the tag this generator was created with.
func (g *D3D12Generator) Backend() Backend { return g.backend }

// Close releases every pipeline object. Safe on a partially constructed
// generator.
func (g *D3D12Generator) Close() error {
	g.mu.Lock()
	g.releaseTexturesLocked()
	g.mu.Unlock()

	if g.fence != nil {
		g.fence.Release()
		g.fence = nil
	}
	if g.kit != nil {
		g.kit.Release()
		g.kit = nil
	}
	if g.heap != nil {
		d3d.Release(g.heap.Heap)
		g.heap = nil
	}
	for _, obj := range []*uintptr{&g.psoInterp, &g.psoMotion, &g.rootSig} {
		if *obj != 0 {
			d3d.Release(*obj)
			*obj = 0
		}
	}
	return nil
}
