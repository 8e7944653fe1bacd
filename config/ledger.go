package config

import (
	"fmt"
	"os"
)

// LedgerConfig holds the configuration for the bbolt clip ledger
type LedgerConfig struct {
	Path   string      `json:"path" yaml:"path" toml:"path"`                                        // Path to the bbolt DB file
	Bucket string      `json:"bucket" yaml:"bucket" toml:"bucket"`                                  // Name of the bucket
	Mode   os.FileMode `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`          // File open mode: "0600", "0644"
	NoSync bool        `json:"no_sync,omitempty" yaml:"no_sync,omitempty" toml:"no_sync,omitempty"` // Disable fsync for better performance
}

// Validate validates the ledger configuration
func (lc *LedgerConfig) Validate() error {
	if lc.Path == "" {
		return fmt.Errorf("ledger path is required")
	}
	if lc.Bucket == "" {
		return fmt.Errorf("ledger bucket is required")
	}
	return nil
}

// ApplyDefaults sets default values if not provided
func (lc *LedgerConfig) ApplyDefaults() {
	if lc.Path == "" {
		lc.Path = "./clips.db"
	}
	if lc.Bucket == "" {
		lc.Bucket = "clips"
	}
	if lc.Mode == 0 {
		lc.Mode = 0600
	}
	// NoSync remains false by default for data safety
}
