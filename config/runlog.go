package config

import "fmt"

// RunLogMode selects how the run log file is prepared before each run
type RunLogMode string

const (
	RunLogModeReset  RunLogMode = "reset"  // truncate the log before every run
	RunLogModeRotate RunLogMode = "rotate" // append; move to .old once the size limit is exceeded
)

// RunLogConfig holds the configuration for the run log lifecycle
type RunLogConfig struct {
	Path string     `json:"path" yaml:"path" toml:"path"` // Path to the run log file
	Mode RunLogMode `json:"mode" yaml:"mode" toml:"mode"` // reset or rotate

	// MaxSizeBytes is the rotation threshold in rotate mode.
	MaxSizeBytes int64 `json:"max_size_bytes,omitempty" yaml:"max_size_bytes,omitempty" toml:"max_size_bytes,omitempty"`
}

// Validate validates the run log configuration
func (rc *RunLogConfig) Validate() error {
	if rc.Path == "" {
		return fmt.Errorf("run log path is required")
	}
	switch rc.Mode {
	case RunLogModeReset, RunLogModeRotate:
	case "":
		// Empty is OK, set in ApplyDefaults
	default:
		return fmt.Errorf("invalid run log mode: %s (must be 'reset' or 'rotate')", rc.Mode)
	}
	if rc.MaxSizeBytes < 0 {
		return fmt.Errorf("max_size_bytes cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values if not provided
func (rc *RunLogConfig) ApplyDefaults() {
	if rc.Path == "" {
		rc.Path = "./run.log"
	}
	if rc.Mode == "" {
		rc.Mode = RunLogModeRotate
	}
	if rc.MaxSizeBytes <= 0 {
		rc.MaxSizeBytes = 10 * 1024 * 1024 // 10 MiB
	}
}
