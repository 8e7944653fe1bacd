package config

import "fmt"

// LockConfig holds the configuration for the single-run lock file
type LockConfig struct {
	Path string `json:"path" yaml:"path" toml:"path"` // Path to the lock file

	// StaleAfterSeconds is the age past which a lock whose owner is gone is
	// reported as stale rather than merely orphaned. Either way the lock is
	// reclaimed; only the log line differs.
	StaleAfterSeconds int `json:"stale_after_seconds,omitempty" yaml:"stale_after_seconds,omitempty" toml:"stale_after_seconds,omitempty"`
}

// Validate validates the lock configuration
func (lc *LockConfig) Validate() error {
	if lc.Path == "" {
		return fmt.Errorf("lock path is required")
	}
	if lc.StaleAfterSeconds < 0 {
		return fmt.Errorf("stale_after_seconds cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values if not provided
func (lc *LockConfig) ApplyDefaults() {
	if lc.Path == "" {
		lc.Path = "/tmp/reolink-automation.lock"
	}
	if lc.StaleAfterSeconds <= 0 {
		lc.StaleAfterSeconds = 7200 // 2 hours
	}
}
