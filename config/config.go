package config

import (
	"fmt"
	"os"
	"strconv"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	Camera      CameraConfig      `json:"camera" yaml:"camera" toml:"camera"`
	Destination DestinationConfig `json:"destination" yaml:"destination" toml:"destination"`
	Ledger      LedgerConfig      `json:"ledger" yaml:"ledger" toml:"ledger"`
	Lock        LockConfig        `json:"lock" yaml:"lock" toml:"lock"`
	RunLog      RunLogConfig      `json:"run_log" yaml:"run_log" toml:"run_log"`
	Logger      LoggerConfig      `json:"logger" yaml:"logger" toml:"logger"`
	Notify      NotifyConfig      `json:"notify" yaml:"notify" toml:"notify"`

	// StorageDir is the local directory clips are downloaded into, partitioned
	// by date (<StorageDir>/<YYYY-MM-DD>/).
	StorageDir string `json:"storage_dir" yaml:"storage_dir" toml:"storage_dir"`

	// WindowsPath points to the JSON file holding the configured download time
	// windows ([{"start":"09:00","end":"09:30"}, ...]).
	WindowsPath string `json:"windows_path" yaml:"windows_path" toml:"windows_path"`

	// RunTimeoutSeconds bounds the wall-clock duration of a whole run.
	RunTimeoutSeconds int `json:"run_timeout_seconds" yaml:"run_timeout_seconds" toml:"run_timeout_seconds"`

	// DryRun logs what would be downloaded and uploaded without touching the
	// camera downloads, the destination, or local files.
	DryRun bool `json:"dry_run" yaml:"dry_run" toml:"dry_run"`
}

// Validate validates the entire configuration
func (ac *AppConfig) Validate() error {
	if err := ac.Camera.Validate(); err != nil {
		return fmt.Errorf("camera config error: %w", err)
	}
	if err := ac.Destination.Validate(); err != nil {
		return fmt.Errorf("destination config error: %w", err)
	}
	if err := ac.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger config error: %w", err)
	}
	if err := ac.Lock.Validate(); err != nil {
		return fmt.Errorf("lock config error: %w", err)
	}
	if err := ac.RunLog.Validate(); err != nil {
		return fmt.Errorf("run log config error: %w", err)
	}
	if err := ac.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config error: %w", err)
	}
	if ac.StorageDir == "" {
		return fmt.Errorf("storage dir is required")
	}
	if ac.RunTimeoutSeconds <= 0 {
		return fmt.Errorf("run timeout must be positive")
	}
	return nil
}

// ApplyDefaults applies default values to all components
func (ac *AppConfig) ApplyDefaults() {
	ac.Camera.ApplyDefaults()
	ac.Destination.Common.ApplyDefaults()
	ac.Ledger.ApplyDefaults()
	ac.Lock.ApplyDefaults()
	ac.RunLog.ApplyDefaults()
	ac.Logger.ApplyDefaults()

	if ac.WindowsPath == "" {
		ac.WindowsPath = "./download_times.json"
	}
	if ac.RunTimeoutSeconds <= 0 {
		ac.RunTimeoutSeconds = 3600
	}
	if ac.Destination.FTP != nil {
		ac.Destination.FTP.ApplyDefaults()
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.DryRun = getEnvBool("DRY_RUN", false)
	cfg.StorageDir = getEnv("STORAGE_DIR", "")
	cfg.WindowsPath = getEnv("DOWNLOAD_TIMES_PATH", "./download_times.json")
	cfg.RunTimeoutSeconds = getEnvInt("RUN_TIMEOUT_SECONDS", 3600)

	// Logger configuration
	cfg.Logger.Level = LogLevel(getEnv("LOG_LEVEL", string(LogLevelInfo)))

	// Camera configuration (env var names follow the deployment's .env file)
	cfg.Camera = CameraConfig{
		Host:                 getEnv("REOLINK_HOST", ""),
		Username:             getEnv("REOLINK_USER", ""),
		Password:             getEnv("REOLINK_PASSWORD", ""),
		UseHTTPS:             getEnvBool("REOLINK_HTTPS", true),
		Channel:              getEnvInt("REOLINK_CHANNEL", 0),
		Stream:               getEnv("REOLINK_STREAM", "main"),
		TimeoutSeconds:       getEnvInt("REOLINK_TIMEOUT_SECONDS", 60),
		MaxRetries:           getEnvInt("REOLINK_MAX_RETRIES", 3),
		RetryDelaySeconds:    getEnvInt("REOLINK_RETRY_DELAY_SECONDS", 30),
		MaxRPS:               getEnvInt("REOLINK_MAX_RPS", 0),
		IndexingDelaySeconds: getEnvInt("REOLINK_INDEXING_DELAY_SECONDS", 10),
	}

	// Destination configuration
	cfg.Destination.DestinationType = DestinationType(getEnv("DESTINATION_TYPE", string(DestinationTypeS3)))
	cfg.Destination.Common.WorkerCount = getEnvInt("DESTINATION_WORKER_COUNT", 1)
	cfg.Destination.Common.TimeoutSeconds = getEnvInt("DESTINATION_TIMEOUT_SECONDS", 120)
	cfg.Destination.Common.MaxRetries = getEnvInt("DESTINATION_MAX_RETRIES", 3)

	cfg.Destination.S3 = &S3Config{
		Region:          getEnv("S3_REGION", ""),
		Bucket:          getEnv("S3_BUCKET", ""),
		Prefix:          getEnv("S3_PREFIX", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
	}

	cfg.Destination.FTP = &FTPConfig{
		Host:     getEnv("FTP_HOST", ""),
		Port:     getEnvInt("FTP_PORT", 21),
		Username: getEnv("FTP_USERNAME", ""),
		Password: getEnv("FTP_PASSWORD", ""),
		BasePath: getEnv("FTP_BASE_PATH", "/"),
		UseTLS:   getEnvBool("FTP_USE_TLS", false),
	}

	// Ledger configuration
	cfg.Ledger = LedgerConfig{
		Path:   getEnv("LEDGER_PATH", "./clips.db"),
		Bucket: getEnv("LEDGER_BUCKET", "clips"),
		Mode:   0600,
		NoSync: getEnvBool("LEDGER_NO_SYNC", false),
	}

	// Lock configuration
	cfg.Lock = LockConfig{
		Path:              getEnv("LOCK_PATH", "/tmp/reolink-automation.lock"),
		StaleAfterSeconds: getEnvInt("LOCK_STALE_AFTER_SECONDS", 7200),
	}

	// Run log configuration
	cfg.RunLog = RunLogConfig{
		Path:         getEnv("RUN_LOG_PATH", "./run.log"),
		Mode:         RunLogMode(getEnv("RUN_LOG_MODE", string(RunLogModeRotate))),
		MaxSizeBytes: getEnvInt64("RUN_LOG_MAX_SIZE_BYTES", 10*1024*1024),
	}

	// Notification configuration
	cfg.Notify = NotifyConfig{
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
