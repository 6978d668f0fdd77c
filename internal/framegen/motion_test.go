package framegen

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/frameweave/agent/internal/workerpool"
)

// patternFrame fills a frame from a deterministic texture function defined
// on all of Z², so shifted copies can be built exactly.
func patternFrame(w, h, shiftX, shiftY int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((7*(x-shiftX) + 13*(y-shiftY)) & 0xFF)
			i := y*img.Stride + x*4
			img.Pix[i] = v
			img.Pix[i+1] = v / 2
			img.Pix[i+2] = 255 - v
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

func TestEstimateIdenticalFramesIsZeroField(t *testing.T) {
	prev := patternFrame(64, 64, 0, 0)
	curr := patternFrame(64, 64, 0, 0)

	field := NewMotionEstimator(nil).Estimate(prev, curr)
	for i := range field.VX {
		if field.VX[i] != 0 || field.VY[i] != 0 {
			t.Fatalf("cell %d = (%v, %v), want zero", i, field.VX[i], field.VY[i])
		}
	}
}

func TestEstimateRecoversKnownShift(t *testing.T) {
	const w, h = 128, 128
	prev := patternFrame(w, h, 0, 0)
	curr := patternFrame(w, h, 2, 1) // content moved right 2, down 1

	field := NewMotionEstimator(nil).Estimate(prev, curr)

	// Interior cell, far from borders where samples fall outside the image.
	vx, vy := field.At(4, 4)
	wantX := float32(2) / float32(w)
	wantY := float32(1) / float32(h)
	if vx != wantX || vy != wantY {
		t.Fatalf("interior cell = (%v, %v), want (%v, %v)", vx, vy, wantX, wantY)
	}
}

func TestEstimateWithWorkerPoolMatchesSerial(t *testing.T) {
	pool := workerpool.New(4, 64)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	}()

	prev := patternFrame(96, 96, 0, 0)
	curr := patternFrame(96, 96, -3, 2)

	serial := NewMotionEstimator(nil).Estimate(prev, curr)
	parallel := NewMotionEstimator(pool).Estimate(prev, curr)

	for i := range serial.VX {
		if serial.VX[i] != parallel.VX[i] || serial.VY[i] != parallel.VY[i] {
			t.Fatalf("cell %d differs: serial (%v,%v), parallel (%v,%v)",
				i, serial.VX[i], serial.VY[i], parallel.VX[i], parallel.VY[i])
		}
	}
}

func TestMotionFieldDimensionsRoundUp(t *testing.T) {
	f := NewMotionField(100, 50)
	if f.W != 13 || f.H != 7 {
		t.Fatalf("field dims = %dx%d, want 13x7", f.W, f.H)
	}
}
