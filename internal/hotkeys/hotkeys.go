// Package hotkeys polls the in-game control keys. Key state is sampled on a
// short interval rather than via a keyboard hook; the host process already
// owns the input chain and an extra hook there is a stability risk.
package hotkeys

import (
	"context"
	"log/slog"
	"time"

	"github.com/frameweave/agent/internal/logging"
)

// Action is a hotkey command delivered to the runtime.
type Action int

const (
	// ActionToggleGeneration flips frame generation on/off (F9).
	ActionToggleGeneration Action = iota
	// ActionTogglePanel shows or hides the overlay panel (F10).
	ActionTogglePanel
	// ActionCyclePreset steps to the next quality preset (F11).
	ActionCyclePreset
)

// Virtual-key codes for the bound keys.
const (
	vkF9  = 0x78
	vkF10 = 0x79
	vkF11 = 0x7A
)

const pollInterval = 50 * time.Millisecond

var bindings = []struct {
	vk     int
	action Action
}{
	{vkF9, ActionToggleGeneration},
	{vkF10, ActionTogglePanel},
	{vkF11, ActionCyclePreset},
}

// Poller samples key state and emits one action per key press edge.
type Poller struct {
	log     *slog.Logger
	handler func(Action)
	keyDown func(vk int) bool
	held    map[int]bool
}

// New returns a poller that delivers actions to handler on the poll
// goroutine.
func New(handler func(Action)) *Poller {
	return &Poller{
		log:     logging.L("hotkeys"),
		handler: handler,
		keyDown: keyDown,
		held:    make(map[int]bool),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	p.log.Info("hotkey poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info("hotkey poller stopped")
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce samples each binding and fires on the down edge only, so holding
// a key delivers a single action.
func (p *Poller) pollOnce() {
	for _, b := range bindings {
		down := p.keyDown(b.vk)
		if down && !p.held[b.vk] {
			p.handler(b.action)
		}
		p.held[b.vk] = down
	}
}
