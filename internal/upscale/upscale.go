// Package upscale renders at a reduced internal resolution and
// reconstructs full-resolution output. The host keeps presenting
// full-size surfaces; only the top-left render-resolution region carries
// real content, which Process expands back over the whole surface.
package upscale

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/logging"
)

// ScaleFactor maps a quality preset to the internal render scale.
func ScaleFactor(q framegen.QualityPreset) float32 {
	switch q {
	case framegen.PresetPerformance:
		return 0.5
	case framegen.PresetQuality:
		return 0.666667
	default:
		return 0.588235
	}
}

// Upscaler owns the reconstruction state for one output surface size.
// A failed probe of the preferred reconstructor downgrades to bilinear for
// the lifetime of the process; re-probing every frame would just repeat the
// same failure on the present thread.
type Upscaler struct {
	log *slog.Logger

	mu        sync.Mutex
	enabled   bool
	preset    framegen.QualityPreset
	outputW   int
	outputH   int
	renderW   int
	renderH   int
	preferred Reconstructor
	fallback  Reconstructor
	active    Reconstructor
	fellBack  bool
	patcher   ViewportPatcher
}

// New returns an upscaler preferring rec, with bilinear as the permanent
// fallback. A nil rec starts on bilinear directly.
func New(rec Reconstructor) *Upscaler {
	u := &Upscaler{
		log:       logging.L("upscale"),
		preset:    framegen.PresetBalanced,
		preferred: rec,
		fallback:  NewBilinear(),
	}
	if rec == nil {
		u.fellBack = true
	}
	return u
}

// SetEnabled turns reduced-resolution rendering on or off. Dimensions are
// recomputed on the next Resize.
func (u *Upscaler) SetEnabled(on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.enabled = on
}

// SetPreset changes the render scale. Takes effect on the next Resize.
func (u *Upscaler) SetPreset(q framegen.QualityPreset) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if q.Valid() {
		u.preset = q
	}
}

// Resize recomputes render dimensions for a w×h output surface and
// re-probes the reconstruction context. Callable any number of times.
func (u *Upscaler) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid output %dx%d", framegen.ErrAllocationFailed, w, h)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	scale := u.scaleLocked()
	u.outputW, u.outputH = w, h
	u.renderW = int(float32(w)*scale + 0.5)
	u.renderH = int(float32(h)*scale + 0.5)
	u.patcher = ViewportPatcher{Scale: scale, OutputW: w, OutputH: h}

	if !u.fellBack {
		if err := u.preferred.Prepare(u.renderW, u.renderH, w, h); err != nil {
			u.log.Warn("reconstruction context unavailable, falling back to bilinear",
				logging.KeyError, err)
			u.fellBack = true
		} else {
			u.active = u.preferred
		}
	}
	if u.fellBack {
		u.active = u.fallback
		if err := u.active.Prepare(u.renderW, u.renderH, w, h); err != nil {
			return fmt.Errorf("prepare %s: %w", u.active.Name(), err)
		}
	}

	u.log.Info("upscaler sized",
		"output", fmt.Sprintf("%dx%d", w, h),
		"render", fmt.Sprintf("%dx%d", u.renderW, u.renderH),
		"reconstructor", u.active.Name())
	return nil
}

// Process reconstructs the render-resolution region of surface to full
// resolution in place. A no-op while disabled or at native scale.
func (u *Upscaler) Process(surface *image.RGBA) error {
	u.mu.Lock()
	enabled := u.enabled
	rw, rh := u.renderW, u.renderH
	ow, oh := u.outputW, u.outputH
	rec := u.active
	u.mu.Unlock()

	if !enabled || rec == nil || (rw == ow && rh == oh) {
		return nil
	}
	b := surface.Bounds()
	if b.Dx() != ow || b.Dy() != oh {
		return fmt.Errorf("%w: surface %dx%d, expected %dx%d",
			framegen.ErrAllocationFailed, b.Dx(), b.Dy(), ow, oh)
	}

	src := image.NewRGBA(image.Rect(0, 0, rw, rh))
	for y := 0; y < rh; y++ {
		copy(src.Pix[y*src.Stride:y*src.Stride+rw*4],
			surface.Pix[y*surface.Stride:y*surface.Stride+rw*4])
	}

	out, err := rec.Reconstruct(src, ow, oh)
	if err != nil {
		return err
	}
	for y := 0; y < oh; y++ {
		copy(surface.Pix[y*surface.Stride:y*surface.Stride+ow*4],
			out.Pix[y*out.Stride:y*out.Stride+ow*4])
	}
	return nil
}

// RenderSize returns the internal render dimensions after the last Resize.
func (u *Upscaler) RenderSize() (int, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.renderW, u.renderH
}

// UsingFallback reports whether the preferred context was abandoned.
func (u *Upscaler) UsingFallback() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fellBack
}

// Patcher exposes the per-frame viewport shrinker for the hook layer.
func (u *Upscaler) Patcher() *ViewportPatcher {
	return &u.patcher
}

func (u *Upscaler) scaleLocked() float32 {
	if !u.enabled {
		return 1
	}
	return ScaleFactor(u.preset)
}
