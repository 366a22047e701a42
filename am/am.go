// Package am loads relset configuration.
//
// Sources, lowest to highest precedence: built-in defaults, the user file
// ~/.relset/relset.toml, the nearest relset.toml found walking up from the
// working directory, then RELSET_* environment variables.
package am

// Config represents the relset configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Schema   SchemaConfig   `mapstructure:"schema" toml:"schema"`
	Sync     SyncConfig     `mapstructure:"sync" toml:"sync"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// SchemaConfig points at the YAML field catalog
type SchemaConfig struct {
	Path  string `mapstructure:"path" toml:"path"`   // empty = no catalog, every rule is rejected
	Watch bool   `mapstructure:"watch" toml:"watch"` // reload the catalog when the file changes
}

// SyncConfig tunes how sync checks talk to the entity store
type SyncConfig struct {
	CallTimeoutMS     int     `mapstructure:"call_timeout_ms" toml:"call_timeout_ms"`
	MaxAttempts       int     `mapstructure:"max_attempts" toml:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms" toml:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms" toml:"max_backoff_ms"`
	MaxCallsPerSecond float64 `mapstructure:"max_calls_per_second" toml:"max_calls_per_second"` // 0 = unlimited
	Supersede         bool    `mapstructure:"supersede" toml:"supersede"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json"`
}

// File names and locations
const (
	ConfigFileName = "relset.toml"
	UserConfigDir  = ".relset"
	EnvPrefix      = "RELSET"
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
