package upscale

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"

	"github.com/frameweave/agent/internal/framegen"
)

// Reconstructor expands a render-resolution image to output resolution.
// Prepare is called once per output size and may allocate; Reconstruct runs
// on the frame path and must not.
type Reconstructor interface {
	Name() string
	Prepare(renderW, renderH, outputW, outputH int) error
	Reconstruct(src *image.RGBA, outputW, outputH int) (*image.RGBA, error)
}

// bilinear is the plain resampling fallback.
type bilinear struct{}

// NewBilinear returns the bilinear resampling reconstructor.
func NewBilinear() Reconstructor {
	return bilinear{}
}

func (bilinear) Name() string { return "bilinear" }

func (bilinear) Prepare(renderW, renderH, outputW, outputH int) error {
	if renderW <= 0 || renderH <= 0 || renderW > outputW || renderH > outputH {
		return fmt.Errorf("%w: render %dx%d for output %dx%d",
			framegen.ErrAllocationFailed, renderW, renderH, outputW, outputH)
	}
	return nil
}

func (bilinear) Reconstruct(src *image.RGBA, outputW, outputH int) (*image.RGBA, error) {
	return transform.Resize(src, outputW, outputH, transform.Linear), nil
}

// temporal blends the bilinear upsample with the previous reconstructed
// output, trading a little ghosting for stable edges at low render scales.
type temporal struct {
	history *image.RGBA
	blend   float32
}

// NewTemporal returns the history-blending reconstructor.
func NewTemporal() Reconstructor {
	return &temporal{blend: 0.2}
}

func (t *temporal) Name() string { return "temporal" }

func (t *temporal) Prepare(renderW, renderH, outputW, outputH int) error {
	if err := (bilinear{}).Prepare(renderW, renderH, outputW, outputH); err != nil {
		return err
	}
	t.history = nil // repopulated on the first Reconstruct at this size
	return nil
}

func (t *temporal) Reconstruct(src *image.RGBA, outputW, outputH int) (*image.RGBA, error) {
	out := transform.Resize(src, outputW, outputH, transform.Linear)

	if t.history == nil || len(t.history.Pix) != len(out.Pix) {
		t.history = cloneRGBA(out)
		return out, nil
	}

	w := t.blend
	for i := range out.Pix {
		cur := float32(out.Pix[i])
		old := float32(t.history.Pix[i])
		out.Pix[i] = uint8(cur + (old-cur)*w)
	}
	copy(t.history.Pix, out.Pix)
	return out, nil
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	dup := image.NewRGBA(img.Bounds())
	copy(dup.Pix, img.Pix)
	return dup
}
