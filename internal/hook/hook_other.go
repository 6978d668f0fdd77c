//go:build !windows || cgo

package hook

import (
	"context"

	"github.com/frameweave/agent/internal/d3d"
)

// Manager is inert on platforms without a hookable presentation API.
type Manager struct{}

// New returns a manager whose Install always fails with
// ErrUnsupportedPlatform.
func New(Options, Callbacks) *Manager {
	return &Manager{}
}

func (m *Manager) Install(context.Context) error {
	return ErrUnsupportedPlatform
}

func (m *Manager) Uninstall() {}

func (m *Manager) Handles() d3d.Handles {
	return d3d.Handles{}
}

func (m *Manager) Presents() uint64 {
	return 0
}

func (m *Manager) SeedHandles(d3d.Handles) {}

// OriginalExecuteCommandLists has no meaning without installed hooks.
func OriginalExecuteCommandLists() uintptr {
	return 0
}
