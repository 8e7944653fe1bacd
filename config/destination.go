package config

import "fmt"

// DestinationType represents the type of destination backend
type DestinationType string

const (
	DestinationTypeS3  DestinationType = "s3"
	DestinationTypeFTP DestinationType = "ftp"
)

// DestinationConfig holds the configuration for the upload destination
type DestinationConfig struct {
	DestinationType DestinationType `json:"type" yaml:"type" toml:"type"`

	// Common options for all destinations
	Common CommonDestinationConfig `json:"common,omitempty" yaml:"common,omitempty" toml:"common,omitempty"`

	// Type-specific configurations
	S3  *S3Config  `json:"s3,omitempty" yaml:"s3,omitempty" toml:"s3,omitempty"`
	FTP *FTPConfig `json:"ftp,omitempty" yaml:"ftp,omitempty" toml:"ftp,omitempty"`
}

// CommonDestinationConfig contains general settings applicable to all destinations
type CommonDestinationConfig struct {
	WorkerCount    int `json:"worker_count,omitempty" yaml:"worker_count,omitempty" toml:"worker_count,omitempty"`          // optional: number of concurrent upload workers
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"` // optional: operation timeout in seconds
	MaxRetries     int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`             // optional: maximum number of retries for operations
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string `json:"region" yaml:"region" toml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix          string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"` // key prefix for uploaded clips and the index manifest
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" toml:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"` // for S3-compatible services, empty for AWS
}

// FTPConfig holds FTP-specific configuration
type FTPConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	BasePath string `json:"base_path,omitempty" yaml:"base_path,omitempty" toml:"base_path"`
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty" toml:"use_tls,omitempty"`
}

// Validate ensures the configuration is valid for the specified destination type
func (dc *DestinationConfig) Validate() error {
	if err := dc.Common.Validate(); err != nil {
		return err
	}

	switch dc.DestinationType {
	case DestinationTypeS3:
		if dc.S3 == nil {
			return fmt.Errorf("s3 configuration is required when type is 's3'")
		}
		return dc.S3.Validate()
	case DestinationTypeFTP:
		if dc.FTP == nil {
			return fmt.Errorf("ftp configuration is required when type is 'ftp'")
		}
		return dc.FTP.Validate()
	default:
		return fmt.Errorf("unsupported destination type: %s", dc.DestinationType)
	}
}

// GetActiveConfig returns the active configuration based on the destination type
func (dc *DestinationConfig) GetActiveConfig() interface{} {
	switch dc.DestinationType {
	case DestinationTypeS3:
		return dc.S3
	case DestinationTypeFTP:
		return dc.FTP
	default:
		return nil
	}
}

// Validate validates S3 configuration
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if s3c.AccessKeyID == "" {
		return fmt.Errorf("s3 access key is required")
	}
	if s3c.SecretAccessKey == "" {
		return fmt.Errorf("s3 secret key is required")
	}
	return nil
}

// Validate validates FTP configuration
func (fc *FTPConfig) Validate() error {
	if fc.Host == "" {
		return fmt.Errorf("ftp host is required")
	}
	if fc.Port <= 0 || fc.Port > 65535 {
		return fmt.Errorf("ftp port must be between 1 and 65535")
	}
	if fc.Username == "" {
		return fmt.Errorf("ftp username is required")
	}
	// Password can be empty for anonymous FTP
	return nil
}

// ApplyDefaults sets default values for destination configuration
func (c *CommonDestinationConfig) ApplyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 120
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Validate validates common destination configuration
func (c *CommonDestinationConfig) Validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("worker_count cannot be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values for FTP configuration
func (fc *FTPConfig) ApplyDefaults() {
	if fc.Port <= 0 {
		fc.Port = 21
	}
	if fc.BasePath == "" {
		fc.BasePath = "/"
	}
}
