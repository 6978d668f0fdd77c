// Package hook interposes the host's presentation entry points. Entry
// points are located by creating a throwaway device and swap chain of the
// same API family and reading the shared vtable; the slots are then
// repointed at our callbacks, which forward to the saved originals on
// every path.
package hook

import (
	"context"
	"errors"
	"time"

	"github.com/frameweave/agent/internal/d3d"
)

// warmupPresents is how many hooked presents pass through untouched before
// any capture or synthesis work begins. Hosts churn swap chains and devices
// during startup; touching those transients destabilizes them.
const warmupPresents = 100

// Bootstrap retry bounds: the host window and runtime DLLs may not exist
// yet when the interposer loads.
const (
	defaultMaxRetries    = 100
	defaultRetryInterval = 100 * time.Millisecond
)

var (
	// ErrUnsupportedPlatform means this build has no hookable API.
	ErrUnsupportedPlatform = errors.New("hook: not supported on this platform")
	// ErrDiscovery means the host window or runtime DLL never appeared
	// within the retry budget.
	ErrDiscovery = errors.New("hook: host window or runtime not found")
	// ErrInstall means vtable patching failed.
	ErrInstall = errors.New("hook: install failed")
)

// Options configures discovery and installation.
type Options struct {
	// PreferredAPI is tried first; the other family is the fallback.
	PreferredAPI d3d.API
	// WindowTitles are substrings identifying the host window. Empty
	// means any window of the current process.
	WindowTitles []string
	// MaxRetries and RetryInterval bound the discovery loop. Zero values
	// take the defaults (100 × 100ms).
	MaxRetries    int
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	if o.PreferredAPI == d3d.APIUnknown {
		o.PreferredAPI = d3d.APID3D12
	}
	return o
}

// Callbacks are invoked from the host's own threads. Present-side
// callbacks run on the render thread and must never block unbounded.
type Callbacks struct {
	// OnPresent fires for each hooked present after warm-up, with the
	// currently captured handles. The real present is forwarded after it
	// returns regardless of what it does.
	OnPresent func(h d3d.Handles)
	// OnResize fires after the host's swap-chain resize succeeds, with the
	// post-resize dimensions. Zero extents mean the new size could not be
	// resolved; treat every surface-scoped resource as stale.
	OnResize func(width, height uint32)
	// OnSwapChainReplaced fires when present arrives on a different swap
	// chain pointer than last seen.
	OnSwapChainReplaced func()
}

// sleepCtx waits out one retry interval, returning false as soon as ctx is
// cancelled so shutdown is never stuck behind the discovery budget.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
