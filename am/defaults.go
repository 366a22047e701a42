package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/relset/synccheck"
)

// Default values, mirrored by SetDefaults and Default.
const (
	DefaultDatabasePath      = "relset.db"
	DefaultCallTimeoutMS     = 5000
	DefaultMaxAttempts       = 4
	DefaultInitialBackoffMS  = 100
	DefaultMaxBackoffMS      = 5000
	DefaultMaxCallsPerSecond = 0.0
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("schema.path", "")
	v.SetDefault("schema.watch", false)

	v.SetDefault("sync.call_timeout_ms", DefaultCallTimeoutMS)
	v.SetDefault("sync.max_attempts", DefaultMaxAttempts)
	v.SetDefault("sync.initial_backoff_ms", DefaultInitialBackoffMS)
	v.SetDefault("sync.max_backoff_ms", DefaultMaxBackoffMS)
	v.SetDefault("sync.max_calls_per_second", DefaultMaxCallsPerSecond)
	v.SetDefault("sync.supersede", false)

	v.SetDefault("log.json", false)
}

// Default returns the configuration SetDefaults describes
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Sync: SyncConfig{
			CallTimeoutMS:     DefaultCallTimeoutMS,
			MaxAttempts:       DefaultMaxAttempts,
			InitialBackoffMS:  DefaultInitialBackoffMS,
			MaxBackoffMS:      DefaultMaxBackoffMS,
			MaxCallsPerSecond: DefaultMaxCallsPerSecond,
		},
	}
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// SyncOptions converts the sync section into orchestrator options
func (c *Config) SyncOptions() synccheck.Options {
	return synccheck.Options{
		CallTimeout:       time.Duration(c.Sync.CallTimeoutMS) * time.Millisecond,
		MaxAttempts:       c.Sync.MaxAttempts,
		InitialBackoff:    time.Duration(c.Sync.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:        time.Duration(c.Sync.MaxBackoffMS) * time.Millisecond,
		MaxCallsPerSecond: c.Sync.MaxCallsPerSecond,
		Supersede:         c.Sync.Supersede,
	}
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Schema: %s, Sync: {Attempts: %d, Supersede: %t}}",
		c.Database.Path, c.Schema.Path, c.Sync.MaxAttempts, c.Sync.Supersede)
}
