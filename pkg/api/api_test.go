package api

import (
	"path/filepath"
	"testing"

	"github.com/frameweave/agent/internal/framegen"
)

func reset(t *testing.T) {
	t.Helper()
	Shutdown()
	SetConfigPath(filepath.Join(t.TempDir(), "frameweave.yaml"))
	t.Cleanup(Shutdown)
}

func TestDefaultsBeforeInitialize(t *testing.T) {
	reset(t)
	if IsInitialized() {
		t.Fatal("initialized without Initialize")
	}
	cfg := GetConfig()
	if cfg.Enabled {
		t.Fatal("default config enabled")
	}
	if cfg.Backend != framegen.BackendSpatialTemporal {
		t.Fatalf("default backend = %v", cfg.Backend)
	}
	if st := GetStats(); st.FramesObserved != 0 {
		t.Fatalf("stats observed = %d before any frame", st.FramesObserved)
	}
}

func TestSharpnessClamped(t *testing.T) {
	reset(t)
	SetSharpness(1.5)
	if got := GetConfig().Sharpness; got != 1.0 {
		t.Fatalf("sharpness = %v, want clamped 1.0", got)
	}
	SetSharpness(-0.3)
	if got := GetConfig().Sharpness; got != 0 {
		t.Fatalf("sharpness = %v, want clamped 0", got)
	}
}

func TestQualityPresetAppliesDefaultSharpness(t *testing.T) {
	reset(t)
	SetQualityPreset(framegen.PresetPerformance)
	if got := GetQualityPreset(); got != framegen.PresetPerformance {
		t.Fatalf("preset = %v", got)
	}
	if got := GetConfig().Sharpness; got != framegen.PresetPerformance.Sharpness() {
		t.Fatalf("sharpness = %v, want preset default", got)
	}

	SetQualityPreset(framegen.QualityPreset(42))
	if got := GetQualityPreset(); got != framegen.PresetBalanced {
		t.Fatalf("invalid preset stored as %v, want balanced", got)
	}
}

func TestEnableDisable(t *testing.T) {
	reset(t)
	SetEnabled(true)
	if !IsEnabled() {
		t.Fatal("enable did not stick")
	}
	SetEnabled(false)
	if IsEnabled() {
		t.Fatal("disable did not stick")
	}
}

func TestBackendSelection(t *testing.T) {
	reset(t)
	if !IsBackendSupported(framegen.BackendNone) {
		t.Fatal("disabling must always be supported")
	}
	if !IsBackendSupported(framegen.BackendSpatialTemporal) {
		t.Fatal("spatial-temporal must always be supported")
	}

	if err := SetBackend(framegen.Backend(99)); err == nil {
		t.Fatal("invalid backend accepted")
	}
	if GetLastError() == nil {
		t.Fatal("failed SetBackend left no last error")
	}
	if err := SetBackend(framegen.BackendSpatialTemporal); err != nil {
		t.Fatalf("SetBackend(spatial-temporal): %v", err)
	}
	if got := GetBackend(); got != framegen.BackendSpatialTemporal {
		t.Fatalf("backend = %v", got)
	}
}

func TestToggleOverlay(t *testing.T) {
	reset(t)
	before := GetConfig().ShowOverlay
	after := ToggleOverlay()
	if after == before {
		t.Fatal("overlay state did not flip")
	}
	if GetConfig().ShowOverlay != after {
		t.Fatal("toggle return disagrees with config")
	}
}

func TestSetConfigRoundTrip(t *testing.T) {
	reset(t)
	in := framegen.DefaultConfig()
	in.Enabled = true
	in.Quality = framegen.PresetQuality
	in.Sharpness = 2.0 // clamps

	out := SetConfig(in)
	if !out.Enabled || out.Quality != framegen.PresetQuality {
		t.Fatalf("config not applied: %+v", out)
	}
	if out.Sharpness != 1.0 {
		t.Fatalf("sharpness = %v, want clamped 1.0", out.Sharpness)
	}
	if got := GetConfig(); got != out {
		t.Fatalf("GetConfig = %+v, want %+v", got, out)
	}
}
