// Package config loads, persists, and watches the interposer settings file.
//
// Settings live in a single "general" section so the file stays editable by
// hand while the external panel is closed. Out-of-range values never fail a
// load; they clamp to documented defaults so a bad edit cannot leave the
// host process without frame generation.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/logging"
)

const fileName = "frameweave.yaml"

// fileSchema mirrors the on-disk layout. Enums are stored as plain ints so
// the file round-trips through editors that know nothing about our types.
type fileSchema struct {
	General generalSection `mapstructure:"general"`
}

type generalSection struct {
	Enabled         bool    `mapstructure:"enabled"`
	Backend         int     `mapstructure:"backend"`
	Quality         int     `mapstructure:"quality"`
	TargetFramerate float64 `mapstructure:"target_framerate"`
	ShowOverlay     bool    `mapstructure:"show_overlay"`
	HudlessMode     bool    `mapstructure:"hudless_mode"`
	Sharpness       float64 `mapstructure:"sharpness"`
}

// Store is a handle on one settings file.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
	log  *slog.Logger
}

// New returns a store bound to cfgFile, or to the default per-user location
// when cfgFile is empty.
func New(cfgFile string) *Store {
	if cfgFile == "" {
		cfgFile = filepath.Join(configDir(), fileName)
	}

	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	def := framegen.DefaultConfig()
	v.SetDefault("general.enabled", def.Enabled)
	v.SetDefault("general.backend", int(def.Backend))
	v.SetDefault("general.quality", int(def.Quality))
	v.SetDefault("general.target_framerate", float64(def.TargetFramerate))
	v.SetDefault("general.show_overlay", def.ShowOverlay)
	v.SetDefault("general.hudless_mode", def.HudlessMode)
	v.SetDefault("general.sharpness", float64(def.Sharpness))

	return &Store{
		v:    v,
		path: cfgFile,
		log:  logging.L("config"),
	}
}

// Path returns the settings file path this store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file is not an error; defaults are
// returned. Values outside their documented ranges are clamped, never
// rejected.
func (s *Store) Load() (framegen.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return framegen.DefaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return framegen.DefaultConfig(), nil
		}
		return framegen.DefaultConfig(), err
	}

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() (framegen.Config, error) {
	var fs fileSchema
	if err := s.v.Unmarshal(&fs); err != nil {
		return framegen.DefaultConfig(), err
	}

	cfg := framegen.Config{
		Enabled:         fs.General.Enabled,
		Backend:         framegen.Backend(fs.General.Backend),
		Quality:         framegen.QualityPreset(fs.General.Quality),
		TargetFramerate: float32(fs.General.TargetFramerate),
		ShowOverlay:     fs.General.ShowOverlay,
		HudlessMode:     fs.General.HudlessMode,
		Sharpness:       float32(fs.General.Sharpness),
	}
	return cfg.Normalize(), nil
}

// Save writes cfg back to the settings file, creating the directory on
// first use.
func (s *Store) Save(cfg framegen.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = cfg.Normalize()
	s.v.Set("general.enabled", cfg.Enabled)
	s.v.Set("general.backend", int(cfg.Backend))
	s.v.Set("general.quality", int(cfg.Quality))
	s.v.Set("general.target_framerate", float64(cfg.TargetFramerate))
	s.v.Set("general.show_overlay", cfg.ShowOverlay)
	s.v.Set("general.hudless_mode", cfg.HudlessMode)
	s.v.Set("general.sharpness", float64(cfg.Sharpness))

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	return s.v.WriteConfigAs(s.path)
}

// Watch delivers a clamped snapshot to onChange whenever the settings file
// is rewritten on disk. Snapshots are delivered on the watcher goroutine;
// callers publish them atomically to the hot path.
func (s *Store) Watch(onChange func(framegen.Config)) {
	s.v.OnConfigChange(func(_ fsnotify.Event) {
		s.mu.Lock()
		cfg, err := s.snapshotLocked()
		s.mu.Unlock()
		if err != nil {
			s.log.Warn("settings reload failed", logging.KeyError, err)
			return
		}
		s.log.Info("settings file changed",
			"enabled", cfg.Enabled,
			logging.KeyBackend, cfg.Backend.String())
		onChange(cfg)
	})
	s.v.WatchConfig()
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "FrameWeave")
	}
	return "."
}
