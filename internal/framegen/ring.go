package framegen

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// HistoryCapacity is the number of presented frames kept for synthesis.
const HistoryCapacity = 4

// ErrFrameUnavailable is returned when a history slot has not been
// populated yet.
var ErrFrameUnavailable = errors.New("framegen: requested history frame not yet populated")

// HistoryRing keeps copies of the most recent presented frames. Push copies
// the incoming surface into a preallocated slot, mirroring how the GPU
// backends copy the back buffer into a ring of textures, so callers may
// reuse or free the source immediately.
type HistoryRing struct {
	mu     sync.Mutex
	slots  []*image.RGBA
	head   int // slot holding the newest frame
	count  int
	w, h   int
	pushes uint64
}

// NewHistoryRing returns an unallocated ring with the given capacity.
// Resize must be called before the first Push.
func NewHistoryRing(capacity int) *HistoryRing {
	if capacity < 2 {
		capacity = HistoryCapacity
	}
	return &HistoryRing{slots: make([]*image.RGBA, capacity)}
}

// Resize allocates slot storage for w×h frames and clears history.
// Calling it again with the same dimensions is a no-op, so it is safe to
// invoke on every surface recapture.
func (r *HistoryRing) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocationFailed, w, h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == w && r.h == h && r.slots[0] != nil {
		return nil
	}

	for i := range r.slots {
		r.slots[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	r.w, r.h = w, h
	r.head = 0
	r.count = 0
	return nil
}

// Push copies src into the next slot and makes it the newest frame.
func (r *HistoryRing) Push(src *image.RGBA) error {
	b := src.Bounds()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[0] == nil {
		return fmt.Errorf("%w: ring not sized", ErrAllocationFailed)
	}
	if b.Dx() != r.w || b.Dy() != r.h {
		return fmt.Errorf("%w: frame %dx%d does not match ring %dx%d",
			ErrAllocationFailed, b.Dx(), b.Dy(), r.w, r.h)
	}

	next := r.head
	if r.count > 0 {
		next = (r.head + 1) % len(r.slots)
	}
	copy(r.slots[next].Pix, src.Pix)
	r.head = next
	if r.count < len(r.slots) {
		r.count++
	}
	r.pushes++
	return nil
}

// Frame returns the i-th most recent frame, 0 being the newest. The
// returned surface is owned by the ring and remains valid until overwritten
// by a later Push; callers sampling across Pushes must copy first.
func (r *HistoryRing) Frame(i int) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= r.count {
		return nil, fmt.Errorf("%w: index %d with %d frames", ErrFrameUnavailable, i, r.count)
	}
	n := len(r.slots)
	return r.slots[(r.head-i+n)%n], nil
}

// Len reports how many slots hold valid frames.
func (r *HistoryRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity reports the slot count.
func (r *HistoryRing) Capacity() int {
	return len(r.slots)
}

// Dimensions returns the current slot size, 0x0 before the first Resize.
func (r *HistoryRing) Dimensions() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h
}
