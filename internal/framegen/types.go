package framegen

import (
	"errors"
	"fmt"
)

// Backend identifies a frame-generation implementation. The set is closed:
// selection is by tag, not by open-ended registration.
type Backend int

const (
	// BackendNone disables frame generation entirely.
	BackendNone Backend = iota
	// BackendSpatialTemporal is the default interpolation backend. It works
	// on any hardware that can run the hooked API.
	BackendSpatialTemporal
	// BackendVendorNative uses the GPU vendor's own frame-generation path.
	// Only supported on a narrow hardware generation (see
	// VendorHardwareSupported).
	BackendVendorNative
	// BackendOpticalFlow is the generic block-matching optical-flow backend.
	BackendOpticalFlow
)

func (b Backend) String() string {
	switch b {
	case BackendNone:
		return "none"
	case BackendSpatialTemporal:
		return "spatial-temporal"
	case BackendVendorNative:
		return "vendor-native"
	case BackendOpticalFlow:
		return "optical-flow"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	return b >= BackendNone && b <= BackendOpticalFlow
}

// QualityPreset is a named tuning level mapping to a sharpening strength
// and, for the upscaler, a spatial scale factor.
type QualityPreset int

const (
	PresetPerformance QualityPreset = iota
	PresetBalanced
	PresetQuality
)

func (q QualityPreset) String() string {
	switch q {
	case PresetPerformance:
		return "performance"
	case PresetBalanced:
		return "balanced"
	case PresetQuality:
		return "quality"
	default:
		return fmt.Sprintf("preset(%d)", int(q))
	}
}

// Valid reports whether q names a known preset.
func (q QualityPreset) Valid() bool {
	return q >= PresetPerformance && q <= PresetQuality
}

// Sharpness returns the default sharpening strength for the preset, used
// unless the user overrides sharpness explicitly.
func (q QualityPreset) Sharpness() float32 {
	switch q {
	case PresetPerformance:
		return 0.3
	case PresetQuality:
		return 0.7
	default:
		return 0.5
	}
}

// Config is the user-tunable parameter set. The runtime keeps an immutable
// per-frame snapshot; mutation happens on the hotkey/panel thread and is
// republished wholesale, so readers never see a half-updated struct.
type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         Backend       `mapstructure:"backend"`
	Quality         QualityPreset `mapstructure:"quality"`
	TargetFramerate float32       `mapstructure:"target_framerate"`
	ShowOverlay     bool          `mapstructure:"show_overlay"`
	HudlessMode     bool          `mapstructure:"hudless_mode"`
	Sharpness       float32       `mapstructure:"sharpness"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Backend:         BackendSpatialTemporal,
		Quality:         PresetBalanced,
		TargetFramerate: 60,
		ShowOverlay:     true,
		HudlessMode:     false,
		Sharpness:       0.5,
	}
}

// Normalize clamps out-of-range values to the documented defaults:
// unknown backends fall back to spatial-temporal, unknown presets to
// balanced, sharpness to [0,1].
func (c Config) Normalize() Config {
	if !c.Backend.Valid() {
		c.Backend = BackendSpatialTemporal
	}
	if !c.Quality.Valid() {
		c.Quality = PresetBalanced
	}
	c.Sharpness = ClampSharpness(c.Sharpness)
	if c.TargetFramerate <= 0 {
		c.TargetFramerate = 60
	}
	return c
}

// ClampSharpness bounds a sharpness value to [0,1].
func ClampSharpness(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Stats is the per-cycle performance snapshot read by the overlay panel.
type Stats struct {
	BaseFPS         float32
	OutputFPS       float32
	FrameTimeMs     float32
	GPUTimeMs       float32
	FramesObserved  uint64
	FramesGenerated uint64
	FramesMissed    uint64
}

// Error taxonomy. Hot-path failures are absorbed and counted; these surface
// only from initialization and support-query paths.
var (
	ErrDiscoveryFailed    = errors.New("framegen: host window or runtime library not found")
	ErrHookInstallFailed  = errors.New("framegen: hook installation failed")
	ErrAllocationFailed   = errors.New("framegen: GPU resource allocation failed")
	ErrCaptureIncomplete  = errors.New("framegen: device or queue not yet captured")
	ErrBackendUnsupported = errors.New("framegen: backend not supported on this hardware")
	ErrNotSupported       = errors.New("framegen: not supported on this platform")
)
