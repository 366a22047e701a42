package am

import "github.com/teranos/relset/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Empty database path falls back to DefaultDatabasePath

	if c.Sync.CallTimeoutMS <= 0 {
		return errors.Newf("sync.call_timeout_ms must be > 0, got %d", c.Sync.CallTimeoutMS)
	}
	if c.Sync.MaxAttempts < 1 {
		return errors.Newf("sync.max_attempts must be >= 1, got %d", c.Sync.MaxAttempts)
	}
	if c.Sync.InitialBackoffMS < 0 {
		return errors.Newf("sync.initial_backoff_ms must be >= 0, got %d", c.Sync.InitialBackoffMS)
	}
	if c.Sync.MaxBackoffMS < c.Sync.InitialBackoffMS {
		return errors.Newf("sync.max_backoff_ms (%d) must be >= sync.initial_backoff_ms (%d)",
			c.Sync.MaxBackoffMS, c.Sync.InitialBackoffMS)
	}

	// 0 = unlimited, negative = invalid
	if c.Sync.MaxCallsPerSecond < 0 {
		return errors.Newf("sync.max_calls_per_second must be >= 0, got %f", c.Sync.MaxCallsPerSecond)
	}

	if c.Schema.Watch && c.Schema.Path == "" {
		return errors.New("schema.watch requires schema.path")
	}

	return nil
}
