package upscale

import (
	"errors"
	"image"
	"testing"

	"github.com/frameweave/agent/internal/framegen"
)

func TestScaleFactors(t *testing.T) {
	tests := []struct {
		preset framegen.QualityPreset
		want   float32
	}{
		{framegen.PresetPerformance, 0.5},
		{framegen.PresetBalanced, 0.588235},
		{framegen.PresetQuality, 0.666667},
	}
	for _, tt := range tests {
		if got := ScaleFactor(tt.preset); got != tt.want {
			t.Fatalf("ScaleFactor(%v) = %v, want %v", tt.preset, got, tt.want)
		}
	}
}

func TestRenderSizePerformanceAt1080p(t *testing.T) {
	u := New(nil)
	u.SetEnabled(true)
	u.SetPreset(framegen.PresetPerformance)
	if err := u.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	w, h := u.RenderSize()
	if w != 960 || h != 540 {
		t.Fatalf("render size = %dx%d, want 960x540", w, h)
	}
}

func TestRenderSizeNativeWhileDisabled(t *testing.T) {
	u := New(nil)
	if err := u.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	w, h := u.RenderSize()
	if w != 1920 || h != 1080 {
		t.Fatalf("disabled render size = %dx%d, want native", w, h)
	}
}

// failingReconstructor simulates an unavailable reconstruction library.
type failingReconstructor struct{}

func (failingReconstructor) Name() string { return "failing" }
func (failingReconstructor) Prepare(int, int, int, int) error {
	return errors.New("context creation failed")
}
func (failingReconstructor) Reconstruct(*image.RGBA, int, int) (*image.RGBA, error) {
	return nil, errors.New("unreachable")
}

func TestFallbackIsPermanentAfterFailedProbe(t *testing.T) {
	u := New(failingReconstructor{})
	u.SetEnabled(true)
	u.SetPreset(framegen.PresetPerformance)

	if err := u.Resize(640, 480); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if !u.UsingFallback() {
		t.Fatal("failed probe should switch to the fallback")
	}

	// Later resizes must not re-probe the broken context.
	if err := u.Resize(1280, 720); err != nil {
		t.Fatalf("Resize after fallback: %v", err)
	}
	if !u.UsingFallback() {
		t.Fatal("fallback must be permanent")
	}
}

func TestProcessExpandsRenderRegion(t *testing.T) {
	u := New(nil)
	u.SetEnabled(true)
	u.SetPreset(framegen.PresetPerformance)
	if err := u.Resize(64, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	// Solid color in the 32x32 render region, garbage elsewhere.
	surface := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			i := y*surface.Stride + x*4
			if x < 32 && y < 32 {
				surface.Pix[i], surface.Pix[i+1], surface.Pix[i+2], surface.Pix[i+3] = 10, 200, 30, 255
			} else {
				surface.Pix[i], surface.Pix[i+1], surface.Pix[i+2], surface.Pix[i+3] = 99, 99, 99, 255
			}
		}
	}

	if err := u.Process(surface); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The solid color must now cover the whole surface.
	for _, pt := range [][2]int{{0, 0}, {40, 40}, {63, 63}, {63, 0}} {
		i := pt[1]*surface.Stride + pt[0]*4
		if surface.Pix[i] != 10 || surface.Pix[i+1] != 200 || surface.Pix[i+2] != 30 {
			t.Fatalf("pixel (%d,%d) = (%d,%d,%d), want render color",
				pt[0], pt[1], surface.Pix[i], surface.Pix[i+1], surface.Pix[i+2])
		}
	}
}

func TestProcessIsNoOpAtNativeScale(t *testing.T) {
	u := New(nil)
	if err := u.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	surface := image.NewRGBA(image.Rect(0, 0, 32, 32))
	surface.Pix[0] = 123
	if err := u.Process(surface); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if surface.Pix[0] != 123 {
		t.Fatal("native-scale Process must leave the surface untouched")
	}
}

func TestViewportPatcherBudgetAndCoverage(t *testing.T) {
	p := ViewportPatcher{Scale: 0.5, OutputW: 800, OutputH: 600}
	p.BeginFrame()

	full := Viewport{W: 800, H: 600}
	partial := Viewport{X: 10, Y: 10, W: 100, H: 100}

	// Partial viewports are never touched.
	if _, ok := p.Patch(partial); ok {
		t.Fatal("partial viewport was patched")
	}

	// Full-coverage viewports are patched up to the budget.
	for i := 0; i < viewportPatchBudget; i++ {
		got, ok := p.Patch(full)
		if !ok {
			t.Fatalf("patch %d rejected within budget", i+1)
		}
		if got.W != 400 || got.H != 300 {
			t.Fatalf("patched viewport = %vx%v, want 400x300", got.W, got.H)
		}
	}
	if _, ok := p.Patch(full); ok {
		t.Fatal("patch beyond budget should pass through")
	}

	// Budget resets per frame.
	p.BeginFrame()
	if _, ok := p.Patch(full); !ok {
		t.Fatal("budget did not reset on BeginFrame")
	}
}

func TestViewportPatcherInactiveAtNativeScale(t *testing.T) {
	p := ViewportPatcher{Scale: 1, OutputW: 800, OutputH: 600}
	p.BeginFrame()
	if _, ok := p.Patch(Viewport{W: 800, H: 600}); ok {
		t.Fatal("native scale must not patch viewports")
	}
}
