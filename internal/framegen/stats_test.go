package framegen

import (
	"testing"
	"time"
)

func TestTrackerDerivesFPSFromPresentInterval(t *testing.T) {
	var tr Tracker
	base := time.Unix(0, 0)
	for i := 0; i <= 10; i++ {
		tr.MarkPresent(base.Add(time.Duration(i) * (time.Second / 60)))
	}

	fps, frameMs, _ := tr.Timings()
	if fps < 59.5 || fps > 60.5 {
		t.Fatalf("baseFPS = %v, want ~60", fps)
	}
	if frameMs < 16 || frameMs > 17.5 {
		t.Fatalf("frameMs = %v, want ~16.7", frameMs)
	}
}

func TestTrackerEmptyWindowIsZero(t *testing.T) {
	var tr Tracker
	fps, frameMs, gpuMs := tr.Timings()
	if fps != 0 || frameMs != 0 || gpuMs != 0 {
		t.Fatalf("empty tracker = (%v,%v,%v), want zeroes", fps, frameMs, gpuMs)
	}

	// One present only seeds the timer; still no interval.
	tr.MarkPresent(time.Now())
	fps, _, _ = tr.Timings()
	if fps != 0 {
		t.Fatalf("fps after single present = %v, want 0", fps)
	}
}

func TestTrackerWindowIsBounded(t *testing.T) {
	var tr Tracker
	base := time.Unix(0, 0)
	// Slow frames first, then far more fast frames than the window holds.
	now := base
	for i := 0; i < 20; i++ {
		now = now.Add(100 * time.Millisecond)
		tr.MarkPresent(now)
	}
	for i := 0; i < statsWindow+10; i++ {
		now = now.Add(10 * time.Millisecond)
		tr.MarkPresent(now)
	}

	_, frameMs, _ := tr.Timings()
	if frameMs != 10 {
		t.Fatalf("frameMs = %v, want 10 once old samples rotated out", frameMs)
	}

	tr.MarkGPU(4 * time.Millisecond)
	_, _, gpuMs := tr.Timings()
	if gpuMs != 4 {
		t.Fatalf("gpuMs = %v, want 4", gpuMs)
	}
}
