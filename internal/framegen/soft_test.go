package framegen

import (
	"testing"
)

func TestSoftGeneratorDoublesDistinctFrames(t *testing.T) {
	g := NewSoftGenerator(BackendSpatialTemporal, nil)
	if err := g.Resize(64, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	synthesized := 0
	for i := 0; i < 10; i++ {
		frame := patternFrame(64, 64, i, 0) // every frame distinct
		if _, ok := g.ProcessFrame(frame); ok {
			synthesized++
		}
	}

	// Presents 2,4,6,8,10 land on the cadence with history available.
	if synthesized != 5 {
		t.Fatalf("synthesized %d frames over 10 presents, want 5", synthesized)
	}

	stats := g.Snapshot()
	if stats.FramesObserved != 10 || stats.FramesGenerated != 5 {
		t.Fatalf("stats = observed %d generated %d, want 10/5",
			stats.FramesObserved, stats.FramesGenerated)
	}
}

func TestSoftGeneratorSkipsStaticFrames(t *testing.T) {
	g := NewSoftGenerator(BackendSpatialTemporal, nil)
	g.Resize(32, 32)

	frame := patternFrame(32, 32, 0, 0)
	for i := 0; i < 10; i++ {
		if _, ok := g.ProcessFrame(frame); ok {
			t.Fatalf("present %d synthesized a frame for a static scene", i+1)
		}
	}

	stats := g.Snapshot()
	if stats.FramesGenerated != 0 {
		t.Fatalf("generated = %d for static input, want 0", stats.FramesGenerated)
	}
	if stats.FramesMissed != 5 {
		t.Fatalf("missed = %d, want 5 skipped cycles", stats.FramesMissed)
	}
}

func TestSoftGeneratorSharpnessOverrideSurvivesPresetChange(t *testing.T) {
	g := NewSoftGenerator(BackendOpticalFlow, nil)

	g.SetQuality(PresetPerformance)
	if got := g.Sharpness(); got != 0.3 {
		t.Fatalf("performance sharpness = %v, want 0.3", got)
	}

	g.SetSharpness(0.9)
	g.SetQuality(PresetQuality)
	if got := g.Sharpness(); got != 0.9 {
		t.Fatalf("sharpness after override + preset change = %v, want 0.9", got)
	}
}

func TestSoftGeneratorSharpnessClamped(t *testing.T) {
	g := NewSoftGenerator(BackendSpatialTemporal, nil)
	g.SetSharpness(1.5)
	if got := g.Sharpness(); got != 1.0 {
		t.Fatalf("sharpness = %v, want clamped 1.0", got)
	}
	g.SetSharpness(-2)
	if got := g.Sharpness(); got != 0 {
		t.Fatalf("sharpness = %v, want clamped 0", got)
	}
}

func TestSoftGeneratorResetDropsHistoryAndCounters(t *testing.T) {
	g := NewSoftGenerator(BackendSpatialTemporal, nil)
	g.Resize(32, 32)
	for i := 0; i < 6; i++ {
		g.ProcessFrame(patternFrame(32, 32, i, i))
	}

	g.Reset()
	stats := g.Snapshot()
	if stats.FramesObserved != 0 || stats.FramesGenerated != 0 {
		t.Fatalf("counters after Reset = %+v, want zeroes", stats)
	}

	// Cadence restarts: first present after reset must not synthesize.
	if _, ok := g.ProcessFrame(patternFrame(32, 32, 9, 9)); ok {
		t.Fatal("first present after Reset synthesized with empty history")
	}
}

func TestVendorHardwareSupported(t *testing.T) {
	tests := []struct {
		name     string
		vendorID uint32
		deviceID uint32
		want     bool
	}{
		{"supported generation", 0x10DE, 0x2704, true},
		{"range start inclusive", 0x10DE, 0x2700, true},
		{"range end exclusive", 0x10DE, 0x2800, false},
		{"older generation", 0x10DE, 0x2204, false},
		{"other vendor", 0x1002, 0x2704, false},
		{"zero ids", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VendorHardwareSupported(tt.vendorID, tt.deviceID); got != tt.want {
				t.Fatalf("VendorHardwareSupported(%#x, %#x) = %v, want %v",
					tt.vendorID, tt.deviceID, got, tt.want)
			}
		})
	}
}
