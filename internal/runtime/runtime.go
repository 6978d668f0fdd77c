// Package runtime assembles the interposer: configuration, presentation
// hooks, the frame generator, the upscaler, the overlay panel, hotkeys,
// and the two control surfaces (local IPC, diagnostics websocket). One
// Runtime exists per host process.
package runtime

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	goruntime "runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frameweave/agent/internal/config"
	"github.com/frameweave/agent/internal/d3d"
	"github.com/frameweave/agent/internal/diag"
	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/hook"
	"github.com/frameweave/agent/internal/hotkeys"
	"github.com/frameweave/agent/internal/ipc"
	"github.com/frameweave/agent/internal/logging"
	"github.com/frameweave/agent/internal/overlay"
	"github.com/frameweave/agent/internal/upscale"
	"github.com/frameweave/agent/internal/workerpool"
)

// Options configures runtime assembly.
type Options struct {
	// ConfigPath overrides the default settings file location.
	ConfigPath string
	// WindowTitles narrows host window discovery. Empty matches the first
	// visible titled window of the process.
	WindowTitles []string
	// DiagAddr is the diagnostics websocket bind address; empty picks an
	// ephemeral loopback port. "off" disables the server.
	DiagAddr string
	// Workers sizes the worker pool; zero uses the pool default.
	Workers int
}

// Runtime is the interposer's lifetime object.
type Runtime struct {
	log  *slog.Logger
	opts Options

	store *config.Store
	cfg   atomic.Pointer[framegen.Config]

	pool    *workerpool.Pool
	hooks   *hook.Manager
	panel   *overlay.Panel
	scaler  *upscale.Upscaler
	ipcSrv  *ipc.Server
	diagSrv *diag.Server
	keys    *hotkeys.Poller

	genMu sync.Mutex
	gen   framegen.PresentProcessor
	soft  *framegen.SoftGenerator

	dimsMu sync.Mutex
	cpuW   int
	cpuH   int

	initialized atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New assembles an unstarted runtime.
func New(opts Options) *Runtime {
	r := &Runtime{
		log:   logging.L("runtime"),
		opts:  opts,
		store: config.New(opts.ConfigPath),
		done:  make(chan struct{}),
	}
	def := framegen.DefaultConfig()
	r.cfg.Store(&def)

	workers := opts.Workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	r.pool = workerpool.New(workers, 4*workers)
	r.panel = overlay.New(def.ShowOverlay)
	r.scaler = upscale.New(upscale.NewBilinear())
	r.ipcSrv = ipc.NewServer(r)
	if opts.DiagAddr != "off" {
		r.diagSrv = diag.NewServer(r, opts.DiagAddr)
	}
	r.keys = hotkeys.New(r.handleHotkey)
	r.hooks = hook.New(hook.Options{WindowTitles: opts.WindowTitles}, hook.Callbacks{
		OnPresent:           r.onPresent,
		OnResize:            r.onResize,
		OnSwapChainReplaced: r.onSwapChainReplaced,
	})
	return r
}

// Start loads configuration, brings up the control surfaces, and kicks off
// hook installation in the background. Hook failure is not fatal; the
// interposer stays resident but disabled, per the error taxonomy.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	cfg, err := r.store.Load()
	if err != nil {
		r.log.Warn("config load failed, using defaults", logging.KeyError, err)
		cfg = framegen.DefaultConfig()
	}
	r.applyConfig(cfg, false)
	r.store.Watch(func(updated framegen.Config) {
		r.applyConfig(updated, false)
	})

	if err := r.ipcSrv.Start(ctx); err != nil {
		r.log.Warn("control endpoint unavailable", logging.KeyError, err)
	}
	if r.diagSrv != nil {
		if err := r.diagSrv.Start(ctx); err != nil {
			r.log.Warn("diagnostics server unavailable", logging.KeyError, err)
		}
	}
	go r.keys.Run(ctx)

	go func() {
		defer close(r.done)
		if err := r.hooks.Install(ctx); err != nil {
			r.log.Warn("hook install failed, staying disabled", logging.KeyError, err)
			return
		}
		r.initialized.Store(true)
	}()
	return nil
}

// Stop tears the runtime down: hooks out first so no present callback can
// race the generator teardown, then config persisted.
func (r *Runtime) Stop() {
	started := r.cancel != nil
	if started {
		r.cancel()
	}
	r.hooks.Uninstall()
	if started {
		<-r.done
	}

	r.genMu.Lock()
	if r.gen != nil {
		r.gen.Close()
		r.gen = nil
	}
	r.genMu.Unlock()

	r.ipcSrv.Close()
	if err := r.store.Save(*r.cfg.Load()); err != nil {
		r.log.Warn("config save failed", logging.KeyError, err)
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.pool.Drain(drainCtx)
	r.initialized.Store(false)
}

// SettingsPath returns the settings file location in use.
func (r *Runtime) SettingsPath() string {
	return r.store.Path()
}

// SeedHandles forwards host-supplied device handles to the hook layer for
// embedders that initialize explicitly instead of waiting for capture.
func (r *Runtime) SeedHandles(h d3d.Handles) {
	r.hooks.SeedHandles(h)
}

// Config returns the current configuration snapshot.
func (r *Runtime) Config() framegen.Config {
	return *r.cfg.Load()
}

// UpdateConfig applies fn to a copy of the current configuration, then
// normalizes, publishes, and persists the result. The returned snapshot
// reflects clamping.
func (r *Runtime) UpdateConfig(fn func(*framegen.Config)) framegen.Config {
	cfg := r.Config()
	fn(&cfg)
	r.applyConfig(cfg, true)
	return r.Config()
}

// Handles exposes the current capture state for support probes.
func (r *Runtime) Handles() d3d.Handles {
	return r.hooks.Handles()
}

// Initialized reports whether hooks are installed.
func (r *Runtime) Initialized() bool {
	return r.initialized.Load()
}

// Stats returns the generator counters, zero when no generator is live.
func (r *Runtime) Stats() framegen.Stats {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.gen != nil {
		return r.gen.Snapshot()
	}
	if r.soft != nil {
		return r.soft.Snapshot()
	}
	return framegen.Stats{}
}

// Upscaler exposes the spatial upscaling submodule.
func (r *Runtime) Upscaler() *upscale.Upscaler {
	return r.scaler
}

// ProcessCPUFrame runs the reference pipeline on a caller-supplied surface:
// upscale reconstruction in place, then frame synthesis. It serves
// embedders that hand frames over explicitly instead of being hooked, and
// is the only frame path on platforms without a presentation hook. The
// returned surface is non-nil only on generation cycles.
func (r *Runtime) ProcessCPUFrame(surface *image.RGBA) (*image.RGBA, bool, error) {
	cfg := r.Config()
	if !cfg.Enabled || cfg.Backend == framegen.BackendNone {
		return nil, false, nil
	}

	b := surface.Bounds()
	if w, h := r.lastCPUDims(); w != b.Dx() || h != b.Dy() {
		if err := r.scaler.Resize(b.Dx(), b.Dy()); err != nil {
			return nil, false, err
		}
		r.setLastCPUDims(b.Dx(), b.Dy())
	}
	if err := r.scaler.Process(surface); err != nil {
		return nil, false, err
	}

	r.genMu.Lock()
	if r.soft == nil {
		r.soft = framegen.NewSoftGenerator(cfg.Backend, r.pool)
		r.soft.SetQuality(cfg.Quality)
		r.soft.SetSharpness(cfg.Sharpness)
	}
	soft := r.soft
	r.genMu.Unlock()

	if err := soft.Resize(b.Dx(), b.Dy()); err != nil {
		return nil, false, err
	}
	synth, generated := soft.ProcessFrame(surface)
	return synth, generated, nil
}

// OverlayLines renders the overlay panel body, nil when hidden.
func (r *Runtime) OverlayLines() []string {
	if !r.panel.Visible() {
		return nil
	}
	return r.panel.Lines(r.Config(), r.Stats())
}

func (r *Runtime) lastCPUDims() (int, int) {
	r.dimsMu.Lock()
	defer r.dimsMu.Unlock()
	return r.cpuW, r.cpuH
}

func (r *Runtime) setLastCPUDims(w, h int) {
	r.dimsMu.Lock()
	r.cpuW, r.cpuH = w, h
	r.dimsMu.Unlock()
}

// applyConfig normalizes and publishes a configuration snapshot and pushes
// the tunables into the live components. persist additionally writes the
// settings file.
func (r *Runtime) applyConfig(cfg framegen.Config, persist bool) {
	cfg = cfg.Normalize()
	r.cfg.Store(&cfg)

	r.panel.SetVisible(cfg.ShowOverlay)
	r.scaler.SetEnabled(cfg.Enabled)
	r.scaler.SetPreset(cfg.Quality)
	// Scale changes take effect on the next Resize; force one on the CPU path.
	r.setLastCPUDims(0, 0)

	r.genMu.Lock()
	if r.gen != nil {
		if !cfg.Enabled || cfg.Backend == framegen.BackendNone || cfg.Backend != r.gen.Backend() {
			r.gen.Close()
			r.gen = nil
		} else {
			r.gen.SetQuality(cfg.Quality)
			r.gen.SetSharpness(cfg.Sharpness)
		}
	}
	if r.soft != nil {
		r.soft.SetQuality(cfg.Quality)
		r.soft.SetSharpness(cfg.Sharpness)
	}
	r.genMu.Unlock()

	if persist {
		if err := r.store.Save(cfg); err != nil {
			r.log.Warn("config save failed", logging.KeyError, err)
		}
	}
}

// onPresent runs on the host's render thread for every hooked present
// after warm-up. Generator construction is retried here each cycle until
// capture completes, matching the transient CaptureIncomplete taxonomy.
func (r *Runtime) onPresent(h d3d.Handles) {
	cfg := r.Config()
	if !cfg.Enabled || cfg.Backend == framegen.BackendNone {
		return
	}

	r.genMu.Lock()
	defer r.genMu.Unlock()

	if r.gen == nil {
		if !h.Complete() {
			return
		}
		gen, err := framegen.NewGPUGenerator(cfg.Backend, h, hook.OriginalExecuteCommandLists())
		if err != nil {
			r.log.Warn("generator unavailable",
				logging.KeyBackend, cfg.Backend.String(), logging.KeyError, err)
			// Hard failures would repeat every present; disable instead.
			cfg.Enabled = false
			r.cfg.Store(&cfg)
			return
		}
		gen.SetQuality(cfg.Quality)
		gen.SetSharpness(cfg.Sharpness)
		r.gen = gen
		r.log.Info("generator started", logging.KeyBackend, cfg.Backend.String())
	}
	r.gen.ProcessPresent()
}

// onResize runs after the host's ResizeBuffers succeeds. Zero extents mean
// the hook could not resolve the post-resize size; drop the generator and
// let the next present rebuild it against the resized surface.
func (r *Runtime) onResize(w, h uint32) {
	if w == 0 || h == 0 {
		r.onSwapChainReplaced()
		return
	}

	r.genMu.Lock()
	if r.gen != nil {
		if err := r.gen.Resize(int(w), int(h)); err != nil {
			r.log.Warn("generator resize failed", logging.KeyError, err)
		}
	}
	r.genMu.Unlock()

	if err := r.scaler.Resize(int(w), int(h)); err != nil {
		r.log.Warn("upscaler resize failed", logging.KeyError, err)
	}
}

// onSwapChainReplaced drops the generator; the next present rebuilds it
// against the new surface.
func (r *Runtime) onSwapChainReplaced() {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.gen != nil {
		r.gen.Close()
		r.gen = nil
	}
}

func (r *Runtime) handleHotkey(a hotkeys.Action) {
	cfg := r.Config()
	switch a {
	case hotkeys.ActionToggleGeneration:
		cfg.Enabled = !cfg.Enabled
	case hotkeys.ActionTogglePanel:
		cfg.ShowOverlay = !cfg.ShowOverlay
	case hotkeys.ActionCyclePreset:
		cfg.Quality = nextPreset(cfg.Quality)
		cfg.Sharpness = cfg.Quality.Sharpness()
	default:
		return
	}
	r.applyConfig(cfg, true)
}

func nextPreset(q framegen.QualityPreset) framegen.QualityPreset {
	switch q {
	case framegen.PresetPerformance:
		return framegen.PresetBalanced
	case framegen.PresetBalanced:
		return framegen.PresetQuality
	default:
		return framegen.PresetPerformance
	}
}

// Status implements ipc.Handler.
func (r *Runtime) Status() ipc.StatusReply {
	return ipc.StatusReply{
		ProtocolVersion: ipc.ProtocolVersion,
		Initialized:     r.Initialized(),
		Config:          r.Config(),
		Stats:           r.Stats(),
	}
}

// Toggle implements ipc.Handler.
func (r *Runtime) Toggle(target string) (bool, error) {
	cfg := r.Config()
	var state bool
	switch target {
	case ipc.TargetGeneration:
		cfg.Enabled = !cfg.Enabled
		state = cfg.Enabled
	case ipc.TargetOverlay:
		cfg.ShowOverlay = !cfg.ShowOverlay
		state = cfg.ShowOverlay
	default:
		return false, fmt.Errorf("unknown toggle target %q", target)
	}
	r.applyConfig(cfg, true)
	return state, nil
}

// Set implements ipc.Handler. Values arrive in CLI string form.
func (r *Runtime) Set(key, value string) error {
	cfg := r.Config()
	switch strings.ToLower(key) {
	case "enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enabled: %w", err)
		}
		cfg.Enabled = v
	case "backend":
		b, err := parseBackend(value)
		if err != nil {
			return err
		}
		cfg.Backend = b
	case "quality":
		q, err := parsePreset(value)
		if err != nil {
			return err
		}
		cfg.Quality = q
		cfg.Sharpness = q.Sharpness()
	case "sharpness":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("sharpness: %w", err)
		}
		cfg.Sharpness = framegen.ClampSharpness(float32(v))
	case "target_framerate":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("target_framerate: %w", err)
		}
		cfg.TargetFramerate = float32(v)
	case "show_overlay":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("show_overlay: %w", err)
		}
		cfg.ShowOverlay = v
	case "hudless_mode":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("hudless_mode: %w", err)
		}
		cfg.HudlessMode = v
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	r.applyConfig(cfg, true)
	return nil
}

// Snapshot implements diag.Source.
func (r *Runtime) Snapshot() (framegen.Config, framegen.Stats) {
	return r.Config(), r.Stats()
}

func parseBackend(s string) (framegen.Backend, error) {
	switch strings.ToLower(s) {
	case "none", "off":
		return framegen.BackendNone, nil
	case "spatial-temporal", "spatial_temporal", "primary":
		return framegen.BackendSpatialTemporal, nil
	case "vendor-native", "vendor_native", "vendor":
		return framegen.BackendVendorNative, nil
	case "optical-flow", "optical_flow":
		return framegen.BackendOpticalFlow, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		b := framegen.Backend(n)
		if b.Valid() {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown backend %q", s)
}

func parsePreset(s string) (framegen.QualityPreset, error) {
	switch strings.ToLower(s) {
	case "performance":
		return framegen.PresetPerformance, nil
	case "balanced":
		return framegen.PresetBalanced, nil
	case "quality":
		return framegen.PresetQuality, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		q := framegen.QualityPreset(n)
		if q.Valid() {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quality preset %q", s)
}
