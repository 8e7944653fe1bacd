package config

import "fmt"

// CameraConfig holds the Reolink camera/NVR connection settings.
type CameraConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	UseHTTPS bool   `json:"use_https" yaml:"use_https" toml:"use_https"`

	// Channel is the only camera channel listed and fetched. Other channels
	// are never queried.
	Channel int `json:"channel" yaml:"channel" toml:"channel"`

	// Stream selects the recording stream: "main" (clear) or "sub" (fluent).
	Stream string `json:"stream,omitempty" yaml:"stream,omitempty" toml:"stream,omitempty"`

	TimeoutSeconds    int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"`             // per-request timeout
	MaxRetries        int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`                         // retries for camera API calls
	RetryDelaySeconds int `json:"retry_delay_seconds,omitempty" yaml:"retry_delay_seconds,omitempty" toml:"retry_delay_seconds,omitempty"` // delay between download retries
	MaxRPS            int `json:"max_rps,omitempty" yaml:"max_rps,omitempty" toml:"max_rps,omitempty"`                                     // max requests per second to the camera (0 = no limit)

	// IndexingDelaySeconds is how long to wait before listing today's clips so
	// the camera can finish indexing recent motion events.
	IndexingDelaySeconds int `json:"indexing_delay_seconds,omitempty" yaml:"indexing_delay_seconds,omitempty" toml:"indexing_delay_seconds,omitempty"`
}

// Validate validates the camera configuration
func (cc *CameraConfig) Validate() error {
	if cc.Host == "" {
		return fmt.Errorf("camera host is required")
	}
	if cc.Username == "" {
		return fmt.Errorf("camera username is required")
	}
	if cc.Channel < 0 {
		return fmt.Errorf("camera channel cannot be negative")
	}
	switch cc.Stream {
	case "", "main", "sub":
	default:
		return fmt.Errorf("invalid stream type: %s (must be 'main' or 'sub')", cc.Stream)
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided
func (cc *CameraConfig) ApplyDefaults() {
	if cc.Stream == "" {
		cc.Stream = "main"
	}
	if cc.TimeoutSeconds <= 0 {
		cc.TimeoutSeconds = 60
	}
	if cc.MaxRetries <= 0 {
		cc.MaxRetries = 3
	}
	if cc.RetryDelaySeconds <= 0 {
		cc.RetryDelaySeconds = 30
	}
	if cc.IndexingDelaySeconds < 0 {
		cc.IndexingDelaySeconds = 0
	}
	// MaxRPS stays 0 (no limit) unless configured
}
