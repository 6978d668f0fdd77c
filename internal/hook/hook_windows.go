//go:build windows && !cgo

package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/frameweave/agent/internal/d3d"
	"github.com/frameweave/agent/internal/logging"
)

// Manager owns the installed hooks. One instance per process; the hook
// callbacks are necessarily global, so Install publishes the manager to a
// package-level slot.
type Manager struct {
	log  *slog.Logger
	opts Options
	cb   Callbacks

	installed atomic.Bool
	presents  atomic.Uint64

	mu      sync.Mutex
	patches []patch
	handles d3d.Handles
	lastSC  uintptr
}

// patch records one rewritten vtable slot so Uninstall can restore it.
type patch struct {
	slot uintptr
	orig uintptr
}

// Saved original entry points. Forwarding always goes through these.
var (
	origPresent       uintptr
	origResizeBuffers uintptr
	origExecuteLists  uintptr
)

// active is the manager receiving hook callbacks.
var active atomic.Pointer[Manager]

// NewCallback allocates permanently, so the thunks are process-global.
var (
	presentThunk      = syscall.NewCallback(hookedPresent)
	resizeThunk       = syscall.NewCallback(hookedResizeBuffers)
	executeListsThunk = syscall.NewCallback(hookedExecuteCommandLists)
)

// New returns an uninstalled manager.
func New(opts Options, cb Callbacks) *Manager {
	return &Manager{
		log:  logging.L("hook"),
		opts: opts.withDefaults(),
		cb:   cb,
	}
}

// Install discovers the live entry points and patches them. It blocks
// through the bounded discovery retries and returns ErrDiscovery when the
// host never becomes hookable or ctx is cancelled first. On any failure the
// host is left untouched.
func (m *Manager) Install(ctx context.Context) error {
	if m.installed.Load() {
		return nil
	}

	hwnd := m.discoverWindow(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	api := m.opts.PreferredAPI
	if !d3d.RuntimePresent(api) {
		other := d3d.APID3D11
		if api == d3d.APID3D11 {
			other = d3d.APID3D12
		}
		if !d3d.RuntimePresent(other) {
			return fmt.Errorf("%w: no graphics runtime loaded", ErrDiscovery)
		}
		m.log.Info("preferred runtime absent, falling back",
			"preferred", api.String(), "using", other.String())
		api = other
	}

	var err error
	switch api {
	case d3d.APID3D12:
		err = m.installD3D12(hwnd)
		if err != nil && d3d.RuntimePresent(d3d.APID3D11) {
			m.log.Warn("d3d12 hook failed, trying d3d11", logging.KeyError, err)
			err = m.installD3D11(hwnd)
		}
	case d3d.APID3D11:
		err = m.installD3D11(hwnd)
	}
	if err != nil {
		return err
	}

	active.Store(m)
	m.installed.Store(true)
	m.log.Info("hooks installed", logging.KeyBackend, m.handles.API.String())
	return nil
}

// discoverWindow retries the window lookup within the configured budget.
// A missing window is not fatal; the dummy swap chain falls back to the
// desktop window.
func (m *Manager) discoverWindow(ctx context.Context) uintptr {
	for attempt := 0; attempt < m.opts.MaxRetries; attempt++ {
		if hwnd := findHostWindow(m.opts.WindowTitles); hwnd != 0 {
			m.log.Info("host window found", "attempt", attempt+1)
			return hwnd
		}
		if !sleepCtx(ctx, m.opts.RetryInterval) {
			return 0
		}
	}
	m.log.Warn("host window not found within retry budget, using desktop window")
	return 0
}

func (m *Manager) installD3D12(hwnd uintptr) error {
	device, queue, swapChain, err := d3d.CreateDummyDevice12(hwnd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer func() {
		d3d.Release(swapChain)
		d3d.Release(queue)
		d3d.Release(device)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.patchSlot(swapChain, d3d.VtblSwapChainPresent, presentThunk, &origPresent); err != nil {
		return err
	}
	if err := m.patchSlot(swapChain, d3d.VtblSwapChainResizeBuffers, resizeThunk, &origResizeBuffers); err != nil {
		m.unpatchLocked()
		return err
	}
	if err := m.patchSlot(queue, d3d.VtblQueueExecuteCommandLists, executeListsThunk, &origExecuteLists); err != nil {
		m.unpatchLocked()
		return err
	}

	m.handles = d3d.Handles{API: d3d.APID3D12}
	return nil
}

func (m *Manager) installD3D11(hwnd uintptr) error {
	device, context, swapChain, err := d3d.CreateDummyDevice11(hwnd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer func() {
		d3d.Release(swapChain)
		d3d.Release(context)
		d3d.Release(device)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.patchSlot(swapChain, d3d.VtblSwapChainPresent, presentThunk, &origPresent); err != nil {
		return err
	}
	if err := m.patchSlot(swapChain, d3d.VtblSwapChainResizeBuffers, resizeThunk, &origResizeBuffers); err != nil {
		m.unpatchLocked()
		return err
	}

	m.handles = d3d.Handles{API: d3d.APID3D11}
	return nil
}

// patchSlot rewrites one vtable entry, remembering the original for
// forwarding and restore. DXGI and D3D12 objects of one class share a
// static vtable, so patching the dummy's table also routes the host's
// instances here.
func (m *Manager) patchSlot(obj uintptr, index int, thunk uintptr, saveOrig *uintptr) error {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	slot := vtbl + uintptr(index)*unsafe.Sizeof(uintptr(0))

	var oldProtect uint32
	if err := windows.VirtualProtect(slot, unsafe.Sizeof(uintptr(0)),
		windows.PAGE_EXECUTE_READWRITE, &oldProtect); err != nil {
		return fmt.Errorf("%w: VirtualProtect: %v", ErrInstall, err)
	}

	orig := *(*uintptr)(unsafe.Pointer(slot))
	*saveOrig = orig
	*(*uintptr)(unsafe.Pointer(slot)) = thunk

	var restore uint32
	windows.VirtualProtect(slot, unsafe.Sizeof(uintptr(0)), oldProtect, &restore)

	m.patches = append(m.patches, patch{slot: slot, orig: orig})
	return nil
}

// Uninstall restores all patched slots and releases captured references.
func (m *Manager) Uninstall() {
	if !m.installed.Swap(false) {
		return
	}
	active.Store(nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpatchLocked()
	m.releaseCapturedLocked()
	m.log.Info("hooks removed")
}

func (m *Manager) unpatchLocked() {
	for i := len(m.patches) - 1; i >= 0; i-- {
		p := m.patches[i]
		var oldProtect uint32
		if err := windows.VirtualProtect(p.slot, unsafe.Sizeof(uintptr(0)),
			windows.PAGE_EXECUTE_READWRITE, &oldProtect); err != nil {
			continue
		}
		*(*uintptr)(unsafe.Pointer(p.slot)) = p.orig
		var restore uint32
		windows.VirtualProtect(p.slot, unsafe.Sizeof(uintptr(0)), oldProtect, &restore)
	}
	m.patches = nil
}

func (m *Manager) releaseCapturedLocked() {
	d3d.Release(m.handles.Device)
	d3d.Release(m.handles.Context)
	d3d.Release(m.handles.Device12)
	d3d.Release(m.handles.Queue)
	m.handles = d3d.Handles{API: m.handles.API}
	m.lastSC = 0
}

// Handles returns the current capture state.
func (m *Manager) Handles() d3d.Handles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles
}

// Presents returns how many hooked presents have been observed.
func (m *Manager) Presents() uint64 {
	return m.presents.Load()
}

// SeedHandles records host-supplied handles as a manual override. They are
// used only until automatic capture observes the real ones.
func (m *Manager) SeedHandles(h d3d.Handles) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handles.SwapChain == 0 && h.SwapChain != 0 {
		m.handles.SwapChain = h.SwapChain
		m.lastSC = h.SwapChain
	}
	if m.handles.Device == 0 {
		m.handles.Device = h.Device
	}
	if m.handles.Context == 0 {
		m.handles.Context = h.Context
	}
	if m.handles.Device12 == 0 {
		m.handles.Device12 = h.Device12
	}
	if m.handles.Queue == 0 {
		m.handles.Queue = h.Queue
	}
}

// captureFromPresent lazily fills device handles the first time a real
// swap chain presents, and detects surface replacement by pointer
// identity.
func (m *Manager) captureFromPresent(swapChain uintptr) d3d.Handles {
	m.mu.Lock()

	replaced := m.lastSC != 0 && m.lastSC != swapChain
	if replaced {
		m.log.Info("swap chain replaced, invalidating surface state")
		m.handles.SwapChain = 0
		m.handles.Device = 0
		m.handles.Context = 0
	}
	m.lastSC = swapChain
	m.handles.SwapChain = swapChain

	if m.handles.API == d3d.APID3D11 && m.handles.Device == 0 {
		if device, context, err := d3d.DeviceForSwapChain11(swapChain); err == nil {
			m.handles.Device = device
			m.handles.Context = context
			m.log.Info("d3d11 device captured from present")
		}
	}
	if m.handles.API == d3d.APID3D12 && m.handles.Device12 == 0 {
		if device, err := deviceForSwapChain12(swapChain); err == nil {
			m.handles.Device12 = device
			m.log.Info("d3d12 device captured from present")
		}
	}

	h := m.handles
	m.mu.Unlock()

	if replaced && m.cb.OnSwapChainReplaced != nil {
		m.cb.OnSwapChainReplaced()
	}
	return h
}

func deviceForSwapChain12(swapChain uintptr) (uintptr, error) {
	var device uintptr
	if _, err := d3d.Call(swapChain, d3d.VtblSwapChainGetDevice,
		uintptr(unsafe.Pointer(&d3d.IIDID3D12Device)),
		uintptr(unsafe.Pointer(&device))); err != nil {
		return 0, err
	}
	return device, nil
}

// hookedPresent interposes IDXGISwapChain::Present. Runs on the host's
// render thread. The forward happens on every path and its HRESULT passes
// through unmodified.
func hookedPresent(swapChain, syncInterval, flags uintptr) uintptr {
	m := active.Load()
	if m == nil || origPresent == 0 {
		if origPresent != 0 {
			ret, _, _ := syscall.SyscallN(origPresent, swapChain, syncInterval, flags)
			return ret
		}
		return 0
	}

	n := m.presents.Add(1)
	if n > warmupPresents && swapChain != 0 {
		h := m.captureFromPresent(swapChain)
		if m.cb.OnPresent != nil {
			m.cb.OnPresent(h)
		}
	}

	ret, _, _ := syscall.SyscallN(origPresent, swapChain, syncInterval, flags)
	return ret
}

// hookedResizeBuffers interposes IDXGISwapChain::ResizeBuffers. The resize
// is forwarded first: zero extents mean "size from the window client area"
// and the real dimensions only exist in the swap-chain descriptor after the
// original returns. Our resources are committed copies, not swap-chain
// references, so nothing of ours blocks the host's resize.
func hookedResizeBuffers(swapChain, bufferCount, width, height, format, flags uintptr) uintptr {
	if origResizeBuffers == 0 {
		return 0
	}
	ret, _, _ := syscall.SyscallN(origResizeBuffers,
		swapChain, bufferCount, width, height, format, flags)

	m := active.Load()
	if m == nil || m.cb.OnResize == nil || ret != 0 {
		return ret
	}
	w, h := uint32(width), uint32(height)
	if (w == 0 || h == 0) && swapChain != 0 {
		if desc, err := d3d.SwapChainDescFor(swapChain); err == nil {
			w, h = desc.BufferDesc.Width, desc.BufferDesc.Height
		}
	}
	m.cb.OnResize(w, h)
	return ret
}

// hookedExecuteCommandLists interposes ID3D12CommandQueue::
// ExecuteCommandLists, the only reliable point to capture a direct queue
// before the first present.
func hookedExecuteCommandLists(queue, numLists, lists uintptr) uintptr {
	m := active.Load()
	if m != nil && queue != 0 {
		m.mu.Lock()
		if m.handles.Queue == 0 {
			d3d.AddRef(queue)
			m.handles.Queue = queue
			m.log.Info("d3d12 command queue captured")
		}
		m.mu.Unlock()
	}
	if origExecuteLists == 0 {
		return 0
	}
	ret, _, _ := syscall.SyscallN(origExecuteLists, queue, numLists, lists)
	return ret
}

// OriginalExecuteCommandLists exposes the saved entry so synthesis
// submissions bypass our own hook.
func OriginalExecuteCommandLists() uintptr {
	return origExecuteLists
}
