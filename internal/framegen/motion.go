package framegen

import (
	"image"
	"sync"

	"github.com/frameweave/agent/internal/workerpool"
)

const (
	// motionBlockSize is the square block edge used for matching. The
	// motion field has one cell per block, i.e. 1/8 resolution.
	motionBlockSize = 8
	// motionSearchRadius bounds the displacement search in pixels.
	motionSearchRadius = 4
)

// MotionField is a per-block displacement field. Vectors are normalized by
// the full image dimensions, so a value of 0.5 means half the frame width.
type MotionField struct {
	W, H int
	VX   []float32
	VY   []float32
}

// NewMotionField allocates a zeroed field for an imgW×imgH source image.
func NewMotionField(imgW, imgH int) *MotionField {
	w := (imgW + motionBlockSize - 1) / motionBlockSize
	h := (imgH + motionBlockSize - 1) / motionBlockSize
	return &MotionField{
		W:  w,
		H:  h,
		VX: make([]float32, w*h),
		VY: make([]float32, w*h),
	}
}

// At returns the displacement stored for field cell (ix, iy), clamping
// out-of-range indices to the border cell.
func (f *MotionField) At(ix, iy int) (float32, float32) {
	if ix < 0 {
		ix = 0
	} else if ix >= f.W {
		ix = f.W - 1
	}
	if iy < 0 {
		iy = 0
	} else if iy >= f.H {
		iy = f.H - 1
	}
	i := iy*f.W + ix
	return f.VX[i], f.VY[i]
}

// MotionEstimator computes block-matching optical flow between two frames.
// Block rows are fanned out over the shared worker pool; when the pool is
// saturated the row runs inline on the caller so estimation always finishes.
type MotionEstimator struct {
	pool   *workerpool.Pool
	radius int
}

// NewMotionEstimator returns an estimator using pool for row parallelism.
// A nil pool degrades to single-threaded estimation.
func NewMotionEstimator(pool *workerpool.Pool) *MotionEstimator {
	return &MotionEstimator{pool: pool, radius: motionSearchRadius}
}

// Estimate matches 8x8 blocks of prev against displaced positions in curr
// and returns the minimizing displacement per block, normalized by the
// image dimensions. Cost is the sum of absolute luminance differences.
// The zero displacement is evaluated first and later candidates must be
// strictly better, so identical inputs always produce an all-zero field.
func (e *MotionEstimator) Estimate(prev, curr *image.RGBA) *MotionField {
	b := prev.Bounds()
	imgW, imgH := b.Dx(), b.Dy()
	field := NewMotionField(imgW, imgH)

	prevLuma := lumaPlane(prev)
	currLuma := lumaPlane(curr)

	var wg sync.WaitGroup
	for by := 0; by < field.H; by++ {
		by := by
		row := func() {
			defer wg.Done()
			e.estimateRow(field, prevLuma, currLuma, imgW, imgH, by)
		}
		wg.Add(1)
		if e.pool == nil || !e.pool.Submit(row) {
			row()
		}
	}
	wg.Wait()

	return field
}

func (e *MotionEstimator) estimateRow(field *MotionField, prevLuma, currLuma []float32, imgW, imgH, by int) {
	baseY := by * motionBlockSize
	for bx := 0; bx < field.W; bx++ {
		baseX := bx * motionBlockSize

		bestDX, bestDY := 0, 0
		bestCost := blockSAD(prevLuma, currLuma, imgW, imgH, baseX, baseY, 0, 0)

		for dy := -e.radius; dy <= e.radius; dy++ {
			for dx := -e.radius; dx <= e.radius; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				cost := blockSAD(prevLuma, currLuma, imgW, imgH, baseX, baseY, dx, dy)
				if cost < bestCost {
					bestCost = cost
					bestDX, bestDY = dx, dy
				}
			}
		}

		i := by*field.W + bx
		field.VX[i] = float32(bestDX) / float32(imgW)
		field.VY[i] = float32(bestDY) / float32(imgH)
	}
}

// blockSAD sums |prev(p) - curr(p+d)| over the block at (baseX, baseY).
// Samples falling outside either image are skipped rather than clamped so
// border blocks are not biased toward edge-replicated content.
func blockSAD(prevLuma, currLuma []float32, imgW, imgH, baseX, baseY, dx, dy int) float32 {
	var sum float32
	for y := 0; y < motionBlockSize; y++ {
		py := baseY + y
		cy := py + dy
		if py >= imgH || cy < 0 || cy >= imgH {
			continue
		}
		prow := py * imgW
		crow := cy * imgW
		for x := 0; x < motionBlockSize; x++ {
			px := baseX + x
			cx := px + dx
			if px >= imgW || cx < 0 || cx >= imgW {
				continue
			}
			d := prevLuma[prow+px] - currLuma[crow+cx]
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum
}

// lumaPlane converts an RGBA surface to a single-channel luminance plane
// using the BT.601 weights 0.299/0.587/0.114.
func lumaPlane(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			r := float32(src[x*4])
			g := float32(src[x*4+1])
			bb := float32(src[x*4+2])
			dst[x] = 0.299*r + 0.587*g + 0.114*bb
		}
	}
	return out
}
