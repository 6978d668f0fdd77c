// Package api is the host-facing control surface of the interposer,
// shaped like a flat export table because hosts reach it through a C
// shim. All functions are safe to call before Initialize; they operate
// on an unstarted runtime until hooks go live.
package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/frameweave/agent/internal/d3d"
	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/ipc"
	"github.com/frameweave/agent/internal/logging"
	"github.com/frameweave/agent/internal/runtime"
)

var (
	mu      sync.Mutex
	rt      *runtime.Runtime
	started bool
	lastErr error
	cfgPath string
	logOut  *logging.RotatingWriter
)

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("api: already initialized")

func instance() *runtime.Runtime {
	mu.Lock()
	defer mu.Unlock()
	return instanceLocked()
}

func instanceLocked() *runtime.Runtime {
	if rt == nil {
		rt = runtime.New(runtime.Options{ConfigPath: cfgPath})
	}
	return rt
}

// SetConfigPath overrides the settings file location. Effective only
// before the runtime is first created.
func SetConfigPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	if rt == nil {
		cfgPath = path
	}
}

func setLastError(err error) {
	mu.Lock()
	lastErr = err
	mu.Unlock()
}

// Initialize starts the runtime and seeds it with host-supplied D3D11
// handles. Any handle may be zero; missing ones are captured from the
// hooked present path instead.
func Initialize(device, deviceContext, swapChain uintptr) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return ErrAlreadyInitialized
	}

	r := instanceLocked()

	// The host process has no console; route the interposer log to a
	// size-rotated file next to the settings file.
	if logOut == nil {
		logPath := filepath.Join(filepath.Dir(r.SettingsPath()), "frameweave.log")
		if w, err := logging.NewRotatingWriter(logPath, 0, 0); err == nil {
			logging.Init("text", "info", w)
			logOut = w
		}
	}

	if device != 0 || deviceContext != 0 || swapChain != 0 {
		r.SeedHandles(d3d.Handles{
			API:       d3d.APID3D11,
			Device:    device,
			Context:   deviceContext,
			SwapChain: swapChain,
		})
	}
	if err := r.Start(context.Background()); err != nil {
		lastErr = err
		return err
	}
	started = true
	return nil
}

// Shutdown stops the runtime and releases every hook and resource. The
// package can be initialized again afterwards.
func Shutdown() {
	mu.Lock()
	r := rt
	w := logOut
	rt = nil
	logOut = nil
	started = false
	mu.Unlock()
	if r != nil {
		r.Stop()
	}
	if w != nil {
		w.Close()
	}
}

// IsInitialized reports whether hooks are installed and live.
func IsInitialized() bool {
	mu.Lock()
	r := rt
	mu.Unlock()
	return r != nil && r.Initialized()
}

// SetEnabled switches frame generation on or off.
func SetEnabled(on bool) {
	instance().UpdateConfig(func(c *framegen.Config) { c.Enabled = on })
}

// IsEnabled reports the enabled flag.
func IsEnabled() bool {
	return instance().Config().Enabled
}

// SetBackend selects the interpolation backend. Unsupported selections
// are refused and recorded for GetLastError.
func SetBackend(b framegen.Backend) error {
	r := instance()
	if !b.Valid() {
		err := errors.New("api: invalid backend")
		setLastError(err)
		return err
	}
	if !framegen.BackendSupported(b, r.Handles()) {
		setLastError(framegen.ErrBackendUnsupported)
		return framegen.ErrBackendUnsupported
	}
	r.UpdateConfig(func(c *framegen.Config) { c.Backend = b })
	return nil
}

// GetBackend returns the configured backend.
func GetBackend() framegen.Backend {
	return instance().Config().Backend
}

// IsBackendSupported probes whether the backend can run here. For the
// vendor-native backend this is the adapter vendor/device range check.
func IsBackendSupported(b framegen.Backend) bool {
	return framegen.BackendSupported(b, instance().Handles())
}

// SetQualityPreset applies a preset and its default sharpness.
func SetQualityPreset(q framegen.QualityPreset) {
	instance().UpdateConfig(func(c *framegen.Config) {
		if !q.Valid() {
			q = framegen.PresetBalanced
		}
		c.Quality = q
		c.Sharpness = q.Sharpness()
	})
}

// GetQualityPreset returns the active preset.
func GetQualityPreset() framegen.QualityPreset {
	return instance().Config().Quality
}

// SetSharpness overrides sharpening strength, clamped to [0,1].
func SetSharpness(s float32) {
	instance().UpdateConfig(func(c *framegen.Config) {
		c.Sharpness = framegen.ClampSharpness(s)
	})
}

// SetConfig replaces the whole configuration. Out-of-range values clamp
// the same way loading the settings file does; the result is returned.
func SetConfig(cfg framegen.Config) framegen.Config {
	return instance().UpdateConfig(func(c *framegen.Config) { *c = cfg })
}

// GetConfig returns the current configuration snapshot.
func GetConfig() framegen.Config {
	return instance().Config()
}

// GetStats returns the generator performance counters.
func GetStats() framegen.Stats {
	return instance().Stats()
}

// ToggleOverlay flips overlay visibility and returns the new state.
func ToggleOverlay() bool {
	visible, err := instance().Toggle(ipc.TargetOverlay)
	if err != nil {
		setLastError(err)
		return false
	}
	return visible
}

// GetLastError returns the most recent API-level failure, nil when none.
func GetLastError() error {
	mu.Lock()
	defer mu.Unlock()
	return lastErr
}
