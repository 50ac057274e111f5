// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/nkondo/timebridge/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// LocalConfigFileName is the per-directory override file.
const LocalConfigFileName = "timebridge.toml"

// Loader loads configuration from TOML files.
type Loader struct {
	workDir       string // directory searched for a local override
	globalConfDir string // e.g. ~/.config/timebridge
}

// NewLoader creates a new Loader.
func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir:       workDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config
// directory. This is useful for testing.
func NewLoaderWithGlobalDir(workDir, globalConfDir string) *Loader {
	return &Loader{
		workDir:       workDir,
		globalConfDir: globalConfDir,
	}
}

// defaultGlobalConfigDir returns the default global config directory.
func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "timebridge")
}

// Load returns the merged configuration: defaults <- global <- local
// (later takes precedence).
func (l *Loader) Load() (*domain.Config, error) {
	base := domain.NewDefaultConfig()

	if l.globalConfDir != "" {
		global, err := l.loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if global != nil {
			base = merge(base, global)
		}
	}

	local, err := l.loadFile(filepath.Join(l.workDir, LocalConfigFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if local != nil {
		base = merge(base, local)
	}

	if base.Store.Path == "" {
		base.Store.Path = defaultStorePath()
	}
	return base, nil
}

// defaultStorePath places the database under the user data directory.
func defaultStorePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "timebridge.db"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "timebridge", "timebridge.db")
}

// loadFile reads a single TOML config file.
func (l *Loader) loadFile(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from config directories
	if err != nil {
		return nil, err
	}

	var cfg domain.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// merge overlays non-zero fields of over onto base.
func merge(base, over *domain.Config) *domain.Config {
	out := *base

	if over.User != "" {
		out.User = over.User
	}
	if over.Remote.BaseURL != "" {
		out.Remote.BaseURL = over.Remote.BaseURL
	}
	if over.Remote.TimeoutSeconds > 0 {
		out.Remote.TimeoutSeconds = over.Remote.TimeoutSeconds
	}
	if over.Sync.StaleMinutes > 0 {
		out.Sync.StaleMinutes = over.Sync.StaleMinutes
	}
	if over.Sync.RetryMinutes > 0 {
		out.Sync.RetryMinutes = over.Sync.RetryMinutes
	}
	if over.Sync.DrainBatch > 0 {
		out.Sync.DrainBatch = over.Sync.DrainBatch
	}
	if over.Sync.PageSize > 0 {
		out.Sync.PageSize = over.Sync.PageSize
	}
	if over.Sync.EvictMissing {
		out.Sync.EvictMissing = true
	}
	if over.Sweep.RefreshMinutes > 0 {
		out.Sweep.RefreshMinutes = over.Sweep.RefreshMinutes
	}
	if over.Sweep.DrainMinutes > 0 {
		out.Sweep.DrainMinutes = over.Sweep.DrainMinutes
	}
	if over.Sweep.ReapMinutes > 0 {
		out.Sweep.ReapMinutes = over.Sweep.ReapMinutes
	}
	if over.Session.TTLHours > 0 {
		out.Session.TTLHours = over.Session.TTLHours
	}
	if over.Store.Path != "" {
		out.Store.Path = over.Store.Path
	}
	if over.Log.Level != "" {
		out.Log.Level = over.Log.Level
	}
	return &out
}
