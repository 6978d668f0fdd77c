// Package overlay keeps the state behind the in-game panel. Drawing is the
// host-side renderer's job; this package only decides visibility and
// formats the text the panel shows.
package overlay

import (
	"fmt"
	"sync"

	"github.com/frameweave/agent/internal/framegen"
)

// Panel is the overlay state shared between the hotkey poller, the public
// API, and whatever renders the panel.
type Panel struct {
	mu      sync.Mutex
	visible bool
}

// New returns a panel with the given initial visibility.
func New(visible bool) *Panel {
	return &Panel{visible: visible}
}

// Toggle flips visibility and returns the new state.
func (p *Panel) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = !p.visible
	return p.visible
}

// SetVisible sets visibility directly.
func (p *Panel) SetVisible(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = v
}

// Visible reports the current state.
func (p *Panel) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Lines formats the panel body for the current config and counters.
func (p *Panel) Lines(cfg framegen.Config, stats framegen.Stats) []string {
	state := "off"
	if cfg.Enabled {
		state = "on"
	}
	return []string{
		fmt.Sprintf("frame generation: %s (%s)", state, cfg.Backend),
		fmt.Sprintf("preset: %s  sharpness: %.2f", cfg.Quality, cfg.Sharpness),
		fmt.Sprintf("fps: %.1f -> %.1f", stats.BaseFPS, stats.OutputFPS),
		fmt.Sprintf("frame: %.2f ms  gpu: %.2f ms", stats.FrameTimeMs, stats.GPUTimeMs),
		fmt.Sprintf("generated: %d  missed: %d", stats.FramesGenerated, stats.FramesMissed),
	}
}
