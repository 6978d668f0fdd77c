package framegen

import (
	"image"

	"github.com/chewxy/math32"
)

// Interpolate synthesizes an intermediate frame between prev and curr.
// Each output pixel samples prev at uv - mv*(1-factor) and curr at
// uv + mv*factor, blends by factor, then applies a 4-tap cross unsharp
// (±1 texel) scaled by sharpness. factor 0.5 with a zero motion field is an
// exact 50/50 cross-fade. All samples are edge-clamped.
func Interpolate(prev, curr *image.RGBA, mv *MotionField, factor, sharpness float32) *image.RGBA {
	b := curr.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	sharpness = ClampSharpness(sharpness)
	invW := 1 / float32(w)
	invH := 1 / float32(h)

	for y := 0; y < h; y++ {
		v := (float32(y) + 0.5) * invH
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			u := (float32(x) + 0.5) * invW

			vx, vy := sampleMotion(mv, u, v)

			pr, pg, pb := sampleBilinear(prev, u-vx*(1-factor), v-vy*(1-factor))
			cr, cg, cb := sampleBilinear(curr, u+vx*factor, v+vy*factor)

			r := pr + (cr-pr)*factor
			g := pg + (cg-pg)*factor
			bl := pb + (cb-pb)*factor

			if sharpness > 0 {
				br, bg, bb := crossBlur(curr, x, y)
				r += (r - br) * sharpness
				g += (g - bg) * sharpness
				bl += (bl - bb) * sharpness
			}

			dst[x*4] = clampByte(r)
			dst[x*4+1] = clampByte(g)
			dst[x*4+2] = clampByte(bl)
			dst[x*4+3] = 0xFF
		}
	}
	return out
}

// sampleMotion bilinearly samples the 1/8-resolution field at a uv
// coordinate in the full image.
func sampleMotion(mv *MotionField, u, v float32) (float32, float32) {
	fx := u*float32(mv.W) - 0.5
	fy := v*float32(mv.H) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	vx00, vy00 := mv.At(x0, y0)
	vx10, vy10 := mv.At(x0+1, y0)
	vx01, vy01 := mv.At(x0, y0+1)
	vx11, vy11 := mv.At(x0+1, y0+1)

	vx := lerp(lerp(vx00, vx10, tx), lerp(vx01, vx11, tx), ty)
	vy := lerp(lerp(vy00, vy10, tx), lerp(vy01, vy11, tx), ty)
	return vx, vy
}

// sampleBilinear samples img at a uv coordinate with edge clamping,
// matching a linear sampler in CLAMP address mode.
func sampleBilinear(img *image.RGBA, u, v float32) (float32, float32, float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	fx := u*float32(w) - 0.5
	fy := v*float32(h) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	r00, g00, b00 := texel(img, x0, y0)
	r10, g10, b10 := texel(img, x0+1, y0)
	r01, g01, b01 := texel(img, x0, y0+1)
	r11, g11, b11 := texel(img, x0+1, y0+1)

	r := lerp(lerp(r00, r10, tx), lerp(r01, r11, tx), ty)
	g := lerp(lerp(g00, g10, tx), lerp(g01, g11, tx), ty)
	bl := lerp(lerp(b00, b10, tx), lerp(b01, b11, tx), ty)
	return r, g, bl
}

// crossBlur averages the four edge-clamped neighbors at ±1 texel.
func crossBlur(img *image.RGBA, x, y int) (float32, float32, float32) {
	r1, g1, b1 := texel(img, x-1, y)
	r2, g2, b2 := texel(img, x+1, y)
	r3, g3, b3 := texel(img, x, y-1)
	r4, g4, b4 := texel(img, x, y+1)
	return (r1 + r2 + r3 + r4) * 0.25, (g1 + g2 + g3 + g4) * 0.25, (b1 + b2 + b3 + b4) * 0.25
}

func texel(img *image.RGBA, x, y int) (float32, float32, float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if x < 0 {
		x = 0
	} else if x >= w {
		x = w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= h {
		y = h - 1
	}
	i := y*img.Stride + x*4
	return float32(img.Pix[i]), float32(img.Pix[i+1]), float32(img.Pix[i+2])
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
