package runtime

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/hotkeys"
	"github.com/frameweave/agent/internal/ipc"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	return New(Options{
		ConfigPath: filepath.Join(t.TempDir(), "frameweave.yaml"),
		DiagAddr:   "off",
		Workers:    2,
	})
}

func TestSetClampsAndParses(t *testing.T) {
	r := newTestRuntime(t)

	if err := r.Set("sharpness", "1.5"); err != nil {
		t.Fatalf("Set(sharpness) error: %v", err)
	}
	if got := r.Config().Sharpness; got != 1.0 {
		t.Fatalf("sharpness = %v, want clamped 1.0", got)
	}

	if err := r.Set("quality", "performance"); err != nil {
		t.Fatalf("Set(quality) error: %v", err)
	}
	cfg := r.Config()
	if cfg.Quality != framegen.PresetPerformance {
		t.Fatalf("quality = %v, want performance", cfg.Quality)
	}
	if cfg.Sharpness != framegen.PresetPerformance.Sharpness() {
		t.Fatalf("preset change did not reset sharpness, got %v", cfg.Sharpness)
	}

	if err := r.Set("backend", "vendor"); err != nil {
		t.Fatalf("Set(backend) error: %v", err)
	}
	if got := r.Config().Backend; got != framegen.BackendVendorNative {
		t.Fatalf("backend = %v, want vendor-native", got)
	}

	if err := r.Set("warp_drive", "on"); err == nil {
		t.Fatal("unknown key accepted")
	}
	if err := r.Set("enabled", "maybe"); err == nil {
		t.Fatal("non-boolean enabled accepted")
	}
}

func TestToggleTargets(t *testing.T) {
	r := newTestRuntime(t)

	on, err := r.Toggle(ipc.TargetGeneration)
	if err != nil || !on {
		t.Fatalf("first generation toggle = %v, %v; want true, nil", on, err)
	}
	on, err = r.Toggle(ipc.TargetGeneration)
	if err != nil || on {
		t.Fatalf("second generation toggle = %v, %v; want false, nil", on, err)
	}

	visible, err := r.Toggle(ipc.TargetOverlay)
	if err != nil {
		t.Fatalf("overlay toggle error: %v", err)
	}
	if visible != r.Config().ShowOverlay {
		t.Fatalf("overlay toggle state %v not reflected in config", visible)
	}

	if _, err := r.Toggle("teleport"); err == nil {
		t.Fatal("unknown toggle target accepted")
	}
}

func TestHotkeyCyclesPresets(t *testing.T) {
	r := newTestRuntime(t)
	want := []framegen.QualityPreset{
		framegen.PresetQuality,
		framegen.PresetPerformance,
		framegen.PresetBalanced,
	}
	for i, q := range want {
		r.handleHotkey(hotkeys.ActionCyclePreset)
		if got := r.Config().Quality; got != q {
			t.Fatalf("cycle %d: quality = %v, want %v", i+1, got, q)
		}
		if got := r.Config().Sharpness; got != q.Sharpness() {
			t.Fatalf("cycle %d: sharpness = %v, want preset default %v", i+1, got, q.Sharpness())
		}
	}
}

func TestStatusReflectsState(t *testing.T) {
	r := newTestRuntime(t)
	st := r.Status()
	if st.ProtocolVersion != ipc.ProtocolVersion {
		t.Fatalf("protocol version = %d, want %d", st.ProtocolVersion, ipc.ProtocolVersion)
	}
	if st.Initialized {
		t.Fatal("reported initialized before hooks installed")
	}
	if st.Config.Enabled {
		t.Fatal("default config reports enabled")
	}
}

func TestProcessCPUFrameSynthesizes(t *testing.T) {
	r := newTestRuntime(t)
	if err := r.Set("enabled", "true"); err != nil {
		t.Fatalf("enable: %v", err)
	}

	const frames = 8
	generated := 0
	for i := 0; i < frames; i++ {
		surface := image.NewRGBA(image.Rect(0, 0, 64, 64))
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				o := surface.PixOffset(x, y)
				v := uint8((x + 2*y + 5*i) & 0xFF)
				surface.Pix[o+0] = v
				surface.Pix[o+1] = v / 2
				surface.Pix[o+2] = 255 - v
				surface.Pix[o+3] = 255
			}
		}
		synth, ok, err := r.ProcessCPUFrame(surface)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ok {
			if synth == nil {
				t.Fatalf("frame %d: generated without output", i)
			}
			generated++
		}
	}
	if generated == 0 {
		t.Fatal("no frames synthesized over a changing sequence")
	}

	stats := r.Stats()
	if stats.FramesObserved != frames {
		t.Fatalf("observed = %d, want %d", stats.FramesObserved, frames)
	}
	if stats.FramesGenerated != uint64(generated) {
		t.Fatalf("stats generated = %d, counted %d", stats.FramesGenerated, generated)
	}
}

// fakeGenerator stands in for a GPU backend on the hook-callback paths.
type fakeGenerator struct {
	resizes []image.Point
	closed  bool
}

func (f *fakeGenerator) Resize(w, h int) error {
	f.resizes = append(f.resizes, image.Pt(w, h))
	return nil
}
func (f *fakeGenerator) SetQuality(framegen.QualityPreset) {}
func (f *fakeGenerator) SetSharpness(float32)              {}
func (f *fakeGenerator) Reset()                            {}
func (f *fakeGenerator) Snapshot() framegen.Stats          { return framegen.Stats{} }
func (f *fakeGenerator) Backend() framegen.Backend         { return framegen.BackendSpatialTemporal }
func (f *fakeGenerator) Close() error                      { f.closed = true; return nil }
func (f *fakeGenerator) ProcessPresent()                   {}

func TestUpdateConfigPublishesNormalizedSnapshot(t *testing.T) {
	r := newTestRuntime(t)
	got := r.UpdateConfig(func(c *framegen.Config) {
		c.Sharpness = 1.5
		c.Backend = framegen.Backend(99)
		c.Quality = framegen.QualityPreset(9)
	})
	if got.Sharpness != 1.0 {
		t.Fatalf("sharpness = %v, want clamped 1.0", got.Sharpness)
	}
	if got.Backend != framegen.BackendSpatialTemporal {
		t.Fatalf("backend = %v, want spatial-temporal default", got.Backend)
	}
	if got.Quality != framegen.PresetBalanced {
		t.Fatalf("quality = %v, want balanced default", got.Quality)
	}
	if live := r.Config(); live != got {
		t.Fatalf("published snapshot %+v differs from returned %+v", live, got)
	}
}

func TestResizeForwardsExtentsToGenerator(t *testing.T) {
	r := newTestRuntime(t)
	fake := &fakeGenerator{}
	r.genMu.Lock()
	r.gen = fake
	r.genMu.Unlock()

	r.onResize(800, 600)
	if len(fake.resizes) != 1 || fake.resizes[0] != image.Pt(800, 600) {
		t.Fatalf("resizes = %v, want one 800x600", fake.resizes)
	}
	if fake.closed {
		t.Fatal("generator dropped on a resolved resize")
	}
}

func TestResizeZeroExtentsDropsGenerator(t *testing.T) {
	r := newTestRuntime(t)
	fake := &fakeGenerator{}
	r.genMu.Lock()
	r.gen = fake
	r.genMu.Unlock()

	r.onResize(0, 480)
	if len(fake.resizes) != 0 {
		t.Fatalf("Resize called with unresolved extents: %v", fake.resizes)
	}
	if !fake.closed {
		t.Fatal("generator kept through an unresolved resize")
	}
	r.genMu.Lock()
	gen := r.gen
	r.genMu.Unlock()
	if gen != nil {
		t.Fatal("generator not dropped for rebuild")
	}
}

func TestProcessCPUFrameDisabledPassthrough(t *testing.T) {
	r := newTestRuntime(t)
	surface := image.NewRGBA(image.Rect(0, 0, 32, 32))
	synth, ok, err := r.ProcessCPUFrame(surface)
	if err != nil {
		t.Fatalf("disabled path errored: %v", err)
	}
	if ok || synth != nil {
		t.Fatal("disabled runtime synthesized a frame")
	}
}
