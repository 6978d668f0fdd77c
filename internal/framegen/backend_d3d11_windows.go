//go:build windows && !cgo

package framegen

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/frameweave/agent/internal/d3d"
	"github.com/frameweave/agent/internal/logging"
)

// gpuPollInterval paces event-query polling on the D3D11 path, which has
// no waitable fence.
const gpuPollInterval = 200 * time.Microsecond

// ringSlot11 pairs a history texture with its shader view.
type ringSlot11 struct {
	tex uintptr
	srv uintptr
}

// D3D11Generator runs the same two compute passes as the D3D12 backend on
// the captured immediate context. D3D11 tracks hazards itself, so there is
// no barrier bookkeeping, but views must be unbound between passes.
type D3D11Generator struct {
	log     *slog.Logger
	backend Backend

	handles d3d.Handles

	csMotion uintptr
	csInterp uintptr
	constBuf uintptr
	query    uintptr

	policy  InjectionPolicy
	tracker Tracker
	tuning  gpuTuning

	mu        sync.Mutex
	format    uint32
	width     int
	height    int
	ring      [HistoryCapacity]ringSlot11
	ringCount int
	head      int
	motionTex uintptr
	motionSRV uintptr
	motionUAV uintptr
	motionW   int
	motionH   int
	outputTex uintptr
	outputUAV uintptr
}

// NewD3D11Generator compiles the compute pipeline against the captured
// device and sizes resources from the live swap-chain descriptor.
func NewD3D11Generator(backend Backend, h d3d.Handles) (*D3D11Generator, error) {
	if h.API != d3d.APID3D11 || !h.Complete() {
		return nil, fmt.Errorf("%w: incomplete d3d11 handles", ErrCaptureIncomplete)
	}

	g := &D3D11Generator{
		log:     logging.L("framegen"),
		backend: backend,
		handles: h,
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

	if g.csMotion, err = d3d.CreateComputeShader11(h.Device, motionCode); err != nil {
		g.Close()
		return nil, err
	}
	if g.csInterp, err = d3d.CreateComputeShader11(h.Device, interpCode); err != nil {
		g.Close()
		return nil, err
	}

	cbDesc := d3d.BufferDesc{
		ByteWidth:      uint32(unsafe.Sizeof(gpuConstants{})),
		Usage:          d3d.Usage11Dynamic,
		BindFlags:      d3d.Bind11ConstantBuffer,
		CPUAccessFlags: d3d.CPUAccess11Write,
	}
	if g.constBuf, err = d3d.CreateBuffer11(h.Device, &cbDesc, nil); err != nil {
		g.Close()
		return nil, err
	}
	if g.query, err = d3d.CreateEventQuery11(h.Device); err != nil {
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

	g.log.Info("d3d11 generator ready",
		"width", g.width, "height", g.height, "format", g.format)
	return g, nil
}

// Resize reallocates the texture set for w×h frames. History is dropped
// when the dimensions actually change.
func (g *D3D11Generator) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocationFailed, w, h)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w == g.width && h == g.height {
		return nil
	}
	g.releaseTexturesLocked()

	dev := g.handles.Device
	texDesc := d3d.Texture2DDesc{
		Width:      uint32(w),
		Height:     uint32(h),
		MipLevels:  1,
		ArraySize:  1,
		Format:     g.format,
		SampleDesc: d3d.SampleDesc{Count: 1},
		Usage:      d3d.Usage11Default,
		BindFlags:  d3d.Bind11ShaderResource,
	}
	for i := range g.ring {
		tex, err := d3d.CreateTexture2D11(dev, &texDesc)
		if err != nil {
			g.releaseTexturesLocked()
			return fmt.Errorf("%w: history slot %d: %v", ErrAllocationFailed, i, err)
		}
		srv, err := d3d.CreateSRV11(dev, tex)
		if err != nil {
			d3d.Release(tex)
			g.releaseTexturesLocked()
			return fmt.Errorf("%w: history view %d: %v", ErrAllocationFailed, i, err)
		}
		g.ring[i] = ringSlot11{tex: tex, srv: srv}
	}

	mw := (w + motionBlockSize - 1) / motionBlockSize
	mh := (h + motionBlockSize - 1) / motionBlockSize
	motionDesc := d3d.Texture2DDesc{
		Width:      uint32(mw),
		Height:     uint32(mh),
		MipLevels:  1,
		ArraySize:  1,
		Format:     d3d.FormatR16G16Float,
		SampleDesc: d3d.SampleDesc{Count: 1},
		Usage:      d3d.Usage11Default,
		BindFlags:  d3d.Bind11ShaderResource | d3d.Bind11UnorderedAccess,
	}
	if err := g.createViewedLocked(&motionDesc, &g.motionTex, &g.motionSRV, &g.motionUAV); err != nil {
		g.releaseTexturesLocked()
		return fmt.Errorf("%w: motion field: %v", ErrAllocationFailed, err)
	}
	g.motionW, g.motionH = mw, mh

	outDesc := texDesc
	outDesc.BindFlags = d3d.Bind11UnorderedAccess
	var noSRV uintptr
	if err := g.createViewedLocked(&outDesc, &g.outputTex, &noSRV, &g.outputUAV); err != nil {
		g.releaseTexturesLocked()
		return fmt.Errorf("%w: output target: %v", ErrAllocationFailed, err)
	}

	g.width, g.height = w, h
	g.ringCount, g.head = 0, 0
	g.tracker.Reset()
	return nil
}

// createViewedLocked allocates a texture plus the views its bind flags ask
// for. srv may point at a zero slot to skip SRV creation.
func (g *D3D11Generator) createViewedLocked(desc *d3d.Texture2DDesc, tex, srv, uav *uintptr) error {
	t, err := d3d.CreateTexture2D11(g.handles.Device, desc)
	if err != nil {
		return err
	}
	if desc.BindFlags&d3d.Bind11ShaderResource != 0 {
		if *srv, err = d3d.CreateSRV11(g.handles.Device, t); err != nil {
			d3d.Release(t)
			return err
		}
	}
	if *uav, err = d3d.CreateUAV11(g.handles.Device, t); err != nil {
		if *srv != 0 {
			d3d.Release(*srv)
			*srv = 0
		}
		d3d.Release(t)
		return err
	}
	*tex = t
	return nil
}

func (g *D3D11Generator) releaseTexturesLocked() {
	for i := range g.ring {
		if g.ring[i].srv != 0 {
			d3d.Release(g.ring[i].srv)
		}
		if g.ring[i].tex != 0 {
			d3d.Release(g.ring[i].tex)
		}
		g.ring[i] = ringSlot11{}
	}
	for _, obj := range []*uintptr{&g.motionUAV, &g.motionSRV, &g.motionTex, &g.outputUAV, &g.outputTex} {
		if *obj != 0 {
			d3d.Release(*obj)
			*obj = 0
		}
	}
	g.width, g.height = 0, 0
	g.ringCount, g.head = 0, 0
}

// ProcessPresent captures the pending back buffer into the history ring
// and, on generation cycles, replaces it with the synthesized midpoint
// between the two newest captures.
func (g *D3D11Generator) ProcessPresent() {
	g.tracker.MarkPresent(time.Now())

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.width == 0 {
		return
	}

	backBuffer, err := d3d.SwapChainBuffer(g.handles.SwapChain, 0, &d3d.IIDID3D11Texture2D)
	if err != nil {
		g.log.Warn("back buffer unavailable", logging.KeyError, err)
		return
	}
	defer d3d.Release(backBuffer)

	ctx := g.handles.Context
	curr := g.head
	g.head = (g.head + 1) % HistoryCapacity
	if g.ringCount < HistoryCapacity {
		g.ringCount++
	}
	d3d.CallRaw(ctx, d3d.VtblContextCopyResource, g.ring[curr].tex, backBuffer)

	if !g.policy.Decide(g.ringCount) {
		return
	}

	prev := (curr + HistoryCapacity - 1) % HistoryCapacity
	if err := g.uploadConstantsLocked(); err != nil {
		g.log.Warn("constant upload failed", logging.KeyError, err)
		g.policy.RecordMissed()
		return
	}

	start := time.Now()
	g.dispatchLocked(g.ring[prev].srv, g.ring[curr].srv)
	d3d.CallRaw(ctx, d3d.VtblContextCopyResource, backBuffer, g.outputTex)

	if !g.waitForGPULocked() {
		g.policy.RecordMissed()
		return
	}
	g.tracker.MarkGPU(time.Since(start))
	g.policy.RecordGenerated()
}

func (g *D3D11Generator) uploadConstantsLocked() error {
	ctx := g.handles.Context
	var mapped d3d.MappedSubresource
	if _, err := d3d.Call(ctx, d3d.VtblContextMap,
		g.constBuf, 0, uintptr(d3d.Map11WriteDiscard), 0,
		uintptr(unsafe.Pointer(&mapped))); err != nil {
		return err
	}
	*(*gpuConstants)(unsafe.Pointer(mapped.Data)) = gpuConstants{
		Width:     uint32(g.width),
		Height:    uint32(g.height),
		Factor:    interpolationFactor,
		Sharpness: g.tuning.effectiveSharpness(),
	}
	d3d.CallRaw(ctx, d3d.VtblContextUnmap, g.constBuf, 0)
	return nil
}

// dispatchLocked issues the motion pass, then the interpolation pass. The
// motion UAV must be unbound before it is read as an SRV, and everything
// is unbound afterwards so the copy back to the swap chain has no hazards.
func (g *D3D11Generator) dispatchLocked(prevSRV, currSRV uintptr) {
	ctx := g.handles.Context

	cbs := [1]uintptr{g.constBuf}
	d3d.CallRaw(ctx, d3d.VtblContextCSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&cbs[0])))

	srvs := [3]uintptr{prevSRV, currSRV, 0}
	uavs := [1]uintptr{g.motionUAV}
	d3d.CallRaw(ctx, d3d.VtblContextCSSetShader, g.csMotion, 0, 0)
	d3d.CallRaw(ctx, d3d.VtblContextCSSetShaderResources, 0, 3, uintptr(unsafe.Pointer(&srvs[0])))
	d3d.CallRaw(ctx, d3d.VtblContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&uavs[0])), 0)
	d3d.CallRaw(ctx, d3d.VtblContextDispatch,
		uintptr(groupCount(g.motionW)), uintptr(groupCount(g.motionH)), 1)

	var nullUAV [1]uintptr
	d3d.CallRaw(ctx, d3d.VtblContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&nullUAV[0])), 0)

	srvs[2] = g.motionSRV
	uavs[0] = g.outputUAV
	d3d.CallRaw(ctx, d3d.VtblContextCSSetShader, g.csInterp, 0, 0)
	d3d.CallRaw(ctx, d3d.VtblContextCSSetShaderResources, 0, 3, uintptr(unsafe.Pointer(&srvs[0])))
	d3d.CallRaw(ctx, d3d.VtblContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&uavs[0])), 0)
	d3d.CallRaw(ctx, d3d.VtblContextDispatch,
		uintptr(groupCount(g.width)), uintptr(groupCount(g.height)), 1)

	var nullSRVs [3]uintptr
	d3d.CallRaw(ctx, d3d.VtblContextCSSetShaderResources, 0, 3, uintptr(unsafe.Pointer(&nullSRVs[0])))
	d3d.CallRaw(ctx, d3d.VtblContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&nullUAV[0])), 0)
}

// waitForGPULocked flushes and polls the event query until the recorded
// work completes or the wait budget runs out.
func (g *D3D11Generator) waitForGPULocked() bool {
	ctx := g.handles.Context
	d3d.CallRaw(ctx, d3d.VtblContextEnd, g.query)
	d3d.CallRaw(ctx, d3d.VtblContextFlush)

	deadline := time.Now().Add(gpuWaitBudget)
	for {
		if d3d.QuerySignaled(ctx, g.query) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(gpuPollInterval)
	}
}

// SetQuality applies a preset; a manual sharpness override sticks.
func (g *D3D11Generator) SetQuality(q QualityPreset) { g.tuning.setQuality(q) }

// SetSharpness overrides the preset sharpness, clamped to [0,1].
func (g *D3D11Generator) SetSharpness(s float32) { g.tuning.setSharpness(s) }

// Reset drops history and counters, e.g. after swap-chain replacement.
func (g *D3D11Generator) Reset() {
	g.mu.Lock()
	g.ringCount, g.head = 0, 0
	g.mu.Unlock()
	g.policy.Reset()
	g.tracker.Reset()
}

// Snapshot assembles the performance counters.
func (g *D3D11Generator) Snapshot() Stats {
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
func (g *D3D11Generator) Backend() Backend { return g.backend }

// Close releases every pipeline object. Safe on a partially constructed
// generator.
func (g *D3D11Generator) Close() error {
	g.mu.Lock()
	g.releaseTexturesLocked()
	g.mu.Unlock()

	for _, obj := range []*uintptr{&g.query, &g.constBuf, &g.csInterp, &g.csMotion} {
		if *obj != 0 {
			d3d.Release(*obj)
			*obj = 0
		}
	}
	return nil
}
