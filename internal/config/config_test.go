package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frameweave/agent/internal/framegen"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "frameweave.yaml"))

	cfg, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != framegen.DefaultConfig() {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.yaml")

	want := framegen.Config{
		Enabled:         true,
		Backend:         framegen.BackendOpticalFlow,
		Quality:         framegen.PresetQuality,
		TargetFramerate: 120,
		ShowOverlay:     false,
		HudlessMode:     true,
		Sharpness:       0.7,
	}
	if err := New(path).Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want func(cfg framegen.Config) error
	}{
		{
			name: "sharpness above one clamps to one",
			yaml: "general:\n  sharpness: 1.5\n",
			want: func(cfg framegen.Config) error {
				if cfg.Sharpness != 1.0 {
					return errf("sharpness = %v, want 1.0", cfg.Sharpness)
				}
				return nil
			},
		},
		{
			name: "negative sharpness clamps to zero",
			yaml: "general:\n  sharpness: -0.25\n",
			want: func(cfg framegen.Config) error {
				if cfg.Sharpness != 0 {
					return errf("sharpness = %v, want 0", cfg.Sharpness)
				}
				return nil
			},
		},
		{
			name: "unknown backend falls back to spatial-temporal",
			yaml: "general:\n  backend: 9\n",
			want: func(cfg framegen.Config) error {
				if cfg.Backend != framegen.BackendSpatialTemporal {
					return errf("backend = %v, want spatial-temporal", cfg.Backend)
				}
				return nil
			},
		},
		{
			name: "unknown quality falls back to balanced",
			yaml: "general:\n  quality: 7\n",
			want: func(cfg framegen.Config) error {
				if cfg.Quality != framegen.PresetBalanced {
					return errf("quality = %v, want balanced", cfg.Quality)
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "frameweave.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0600); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			cfg, err := New(path).Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := tt.want(cfg); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestWatchDeliversUpdatedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.yaml")
	s := New(path)
	if err := s.Save(framegen.DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := make(chan framegen.Config, 4)
	s.Watch(func(cfg framegen.Config) { got <- cfg })

	next := framegen.DefaultConfig()
	next.Enabled = true
	next.Quality = framegen.PresetPerformance
	if err := s.Save(next); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	select {
	case cfg := <-got:
		if !cfg.Enabled || cfg.Quality != framegen.PresetPerformance {
			t.Fatalf("watched snapshot = %+v, want enabled performance", cfg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered after file rewrite")
	}
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
