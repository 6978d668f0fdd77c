package framegen

import (
	"errors"
	"image"
	"testing"
)

func labeledFrame(w, h int, label uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = label
	}
	return img
}

func TestRingPushBeforeResizeFails(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	if err := r.Push(labeledFrame(8, 8, 1)); err == nil {
		t.Fatal("Push before Resize should fail")
	}
}

func TestRingFrameOrderingNewestFirst(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	if err := r.Resize(8, 8); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	for label := uint8(1); label <= 6; label++ {
		if err := r.Push(labeledFrame(8, 8, label)); err != nil {
			t.Fatalf("Push %d: %v", label, err)
		}
	}

	// After 6 pushes into 4 slots, history is labels 6,5,4,3.
	for i, want := range []uint8{6, 5, 4, 3} {
		f, err := r.Frame(i)
		if err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
		if got := f.Pix[0]; got != want {
			t.Fatalf("Frame(%d) label = %d, want %d", i, got, want)
		}
	}
}

func TestRingUnfilledSlotIsError(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	if err := r.Resize(8, 8); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	r.Push(labeledFrame(8, 8, 1))

	if _, err := r.Frame(1); !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("Frame(1) with one push: err = %v, want ErrFrameUnavailable", err)
	}
	if _, err := r.Frame(4); !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("Frame(capacity) must always fail, got %v", err)
	}
}

func TestRingPushCopiesPixels(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	r.Resize(8, 8)

	src := labeledFrame(8, 8, 42)
	r.Push(src)
	src.Pix[0] = 0 // mutate after push

	f, err := r.Frame(0)
	if err != nil {
		t.Fatalf("Frame(0): %v", err)
	}
	if f.Pix[0] != 42 {
		t.Fatal("ring must hold a copy, not the pushed surface")
	}
}

func TestRingResizeIdempotent(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	r.Resize(16, 8)
	r.Push(labeledFrame(16, 8, 1))
	r.Push(labeledFrame(16, 8, 2))

	// Same dimensions: history survives.
	if err := r.Resize(16, 8); err != nil {
		t.Fatalf("Resize same dims: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len after same-size Resize = %d, want 2", r.Len())
	}

	// New dimensions: history drops.
	if err := r.Resize(8, 8); err != nil {
		t.Fatalf("Resize new dims: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len after resize = %d, want 0", r.Len())
	}
	w, h := r.Dimensions()
	if w != 8 || h != 8 {
		t.Fatalf("Dimensions = %dx%d, want 8x8", w, h)
	}
}

func TestRingDimensionMismatchRejected(t *testing.T) {
	r := NewHistoryRing(HistoryCapacity)
	r.Resize(8, 8)
	if err := r.Push(labeledFrame(16, 16, 1)); err == nil {
		t.Fatal("Push with mismatched dimensions should fail")
	}
}
