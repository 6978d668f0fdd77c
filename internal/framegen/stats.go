package framegen

import (
	"sync"
	"time"
)

// statsWindow is the rolling sample count for frame timing. At 60 base FPS
// this covers two seconds, enough to smooth present jitter without hiding
// load changes from the overlay.
const statsWindow = 120

// Tracker maintains rolling frame and GPU timings. Recording happens on the
// present thread, reads from the overlay/diag goroutines, so everything sits
// behind one mutex and Snapshot returns values, never references.
type Tracker struct {
	mu sync.Mutex

	frameMs  [statsWindow]float32
	frameN   int
	frameIdx int

	gpuMs  [statsWindow]float32
	gpuN   int
	gpuIdx int

	lastPresent time.Time
}

// MarkPresent records the arrival of a real presented frame. The first call
// only seeds the timer.
func (t *Tracker) MarkPresent(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastPresent.IsZero() {
		dt := float32(now.Sub(t.lastPresent).Seconds() * 1000)
		t.frameMs[t.frameIdx] = dt
		t.frameIdx = (t.frameIdx + 1) % statsWindow
		if t.frameN < statsWindow {
			t.frameN++
		}
	}
	t.lastPresent = now
}

// MarkGPU records how long one synthesis cycle held the GPU.
func (t *Tracker) MarkGPU(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gpuMs[t.gpuIdx] = float32(d.Seconds() * 1000)
	t.gpuIdx = (t.gpuIdx + 1) % statsWindow
	if t.gpuN < statsWindow {
		t.gpuN++
	}
}

// Reset clears all samples, e.g. after a resolution change.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frameN, t.frameIdx = 0, 0
	t.gpuN, t.gpuIdx = 0, 0
	t.lastPresent = time.Time{}
}

// Timings returns the mean frame interval and GPU time in milliseconds and
// the base FPS derived from the interval. Zero samples yield zeroes.
func (t *Tracker) Timings() (baseFPS, frameMs, gpuMs float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frameMs = mean(t.frameMs[:], t.frameN)
	gpuMs = mean(t.gpuMs[:], t.gpuN)
	if frameMs > 0 {
		baseFPS = 1000 / frameMs
	}
	return baseFPS, frameMs, gpuMs
}

func mean(samples []float32, n int) float32 {
	if n == 0 {
		return 0
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += samples[i]
	}
	return sum / float32(n)
}
