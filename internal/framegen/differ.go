package framegen

import (
	"hash/crc32"
	"sync"
)

// frameDiffer detects static frames via CRC32 of the raw pixel data.
// Interpolating between two identical frames only reproduces the same image
// at twice the cost, so synthesis cycles are skipped while the hash holds.
type frameDiffer struct {
	mu      sync.Mutex
	last    uint32
	hasLast bool
}

// Changed hashes pix and reports whether it differs from the previous
// frame. The first frame always counts as changed.
func (d *frameDiffer) Changed(pix []byte) bool {
	h := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast && h == d.last {
		return false
	}
	d.last = h
	d.hasLast = true
	return true
}

// Reset clears the stored hash, e.g. after a resize or swap-chain swap.
func (d *frameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLast = false
}
