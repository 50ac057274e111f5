package domain

import "time"

// ConfigFileName is the configuration file name looked up in the config
// directories.
const ConfigFileName = "config.toml"

// Config represents the application configuration.
type Config struct {
	User    string        `toml:"user" yaml:"user"`
	Remote  RemoteConfig  `toml:"remote" yaml:"remote"`
	Sync    SyncConfig    `toml:"sync" yaml:"sync"`
	Sweep   SweepConfig   `toml:"sweep" yaml:"sweep"`
	Session SessionConfig `toml:"session" yaml:"session"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// RemoteConfig holds remote system settings from the [remote] section.
type RemoteConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the per-call remote timeout.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig holds sync policy settings from the [sync] section.
type SyncConfig struct {
	StaleMinutes int  `toml:"stale_minutes" yaml:"stale_minutes"`
	RetryMinutes int  `toml:"retry_minutes" yaml:"retry_minutes"`
	DrainBatch   int  `toml:"drain_batch" yaml:"drain_batch"`
	PageSize     int  `toml:"page_size" yaml:"page_size"`
	EvictMissing bool `toml:"evict_missing" yaml:"evict_missing"`
}

// StaleAfter returns the staleness threshold.
func (c SyncConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleMinutes) * time.Minute
}

// RetryAfter returns the backoff gate between sync attempts.
func (c SyncConfig) RetryAfter() time.Duration {
	return time.Duration(c.RetryMinutes) * time.Minute
}

// SweepConfig holds background schedule settings from the [sweep] section.
type SweepConfig struct {
	RefreshMinutes int `toml:"refresh_minutes" yaml:"refresh_minutes"`
	DrainMinutes   int `toml:"drain_minutes" yaml:"drain_minutes"`
	ReapMinutes    int `toml:"reap_minutes" yaml:"reap_minutes"`
}

// SessionConfig holds session lifecycle settings from the [session] section.
type SessionConfig struct {
	TTLHours int `toml:"ttl_hours" yaml:"ttl_hours"`
}

// TTL returns the fallback session lifetime used when the remote does not
// report an expiry.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// StoreConfig holds store settings from the [store] section.
type StoreConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LogConfig holds logging settings from the [log] section.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// NewDefaultConfig returns the configuration defaults.
func NewDefaultConfig() *Config {
	return &Config{
		User: "local",
		Remote: RemoteConfig{
			TimeoutSeconds: 15,
		},
		Sync: SyncConfig{
			StaleMinutes: 30,
			RetryMinutes: 5,
			DrainBatch:   50,
			PageSize:     50,
		},
		Sweep: SweepConfig{
			RefreshMinutes: 15,
			DrainMinutes:   5,
			ReapMinutes:    60,
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
