package upscale

// viewportPatchBudget bounds how many host viewport/scissor commands are
// rewritten per frame. Full-screen passes come first in a frame; patching
// everything would also shrink UI and post passes that must stay native.
const viewportPatchBudget = 4

// Viewport is an API-neutral viewport or scissor rectangle.
type Viewport struct {
	X, Y, W, H float32
}

// ViewportPatcher shrinks full-output viewports to render resolution while
// reduced-resolution rendering is active. One instance per swap chain; all
// calls happen on the present thread.
type ViewportPatcher struct {
	Scale   float32
	OutputW int
	OutputH int

	used int
}

// BeginFrame resets the per-frame patch budget.
func (p *ViewportPatcher) BeginFrame() {
	p.used = 0
}

// Patch returns the viewport the host should actually use and whether it
// was rewritten. Only viewports covering the full output surface are
// candidates; partial viewports pass through untouched.
func (p *ViewportPatcher) Patch(v Viewport) (Viewport, bool) {
	if p.Scale >= 1 || p.Scale <= 0 {
		return v, false
	}
	if p.used >= viewportPatchBudget {
		return v, false
	}
	if !p.coversOutput(v) {
		return v, false
	}

	p.used++
	v.W *= p.Scale
	v.H *= p.Scale
	return v, true
}

func (p *ViewportPatcher) coversOutput(v Viewport) bool {
	return v.X == 0 && v.Y == 0 &&
		v.W >= float32(p.OutputW) && v.H >= float32(p.OutputH)
}
