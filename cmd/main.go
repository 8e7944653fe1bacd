package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/baophamtd/reolink-automation/camera"
	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/destination"
	"github.com/baophamtd/reolink-automation/index"
	"github.com/baophamtd/reolink-automation/ledger"
	"github.com/baophamtd/reolink-automation/lock"
	"github.com/baophamtd/reolink-automation/logger"
	"github.com/baophamtd/reolink-automation/model"
	"github.com/baophamtd/reolink-automation/notify"
	"github.com/baophamtd/reolink-automation/pipeline"
	"github.com/baophamtd/reolink-automation/runlog"
	"github.com/baophamtd/reolink-automation/schedule"
	"github.com/baophamtd/reolink-automation/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Define CLI flags
	var (
		// Date range flags: zero dates means today, two dates mean an
		// inclusive range, one date is an error
		startDate = flag.String("start", "", "First date to process (YYYY-MM-DD)")
		endDate   = flag.String("end", "", "Last date to process (YYYY-MM-DD)")

		// General flags
		dryRun      = flag.Bool("dry-run", false, "Run in dry-run mode (no files will be downloaded or uploaded) (env: DRY_RUN)")
		storageDir  = flag.String("storage-dir", "", "Local directory clips are downloaded into (env: STORAGE_DIR)")
		windowsPath = flag.String("windows-path", "", "Path to the download windows JSON file (env: DOWNLOAD_TIMES_PATH)")
		runTimeout  = flag.Int("run-timeout", 0, "Wall-clock timeout for the whole run in seconds (env: RUN_TIMEOUT_SECONDS)")

		// Logger flags
		logLevel = flag.String("log-level", "", "Log level: silent, error, info, debug, verbose (env: LOG_LEVEL)")

		// Lock flags
		lockPath = flag.String("lock-path", "", "Path to the single-run lock file (env: LOCK_PATH)")

		// Run log flags
		runLogPath = flag.String("run-log-path", "", "Path to the run log file (env: RUN_LOG_PATH)")
		runLogMode = flag.String("run-log-mode", "", "Run log mode: reset, rotate (env: RUN_LOG_MODE)")

		// Camera flags
		cameraHost    = flag.String("camera-host", "", "Camera host or IP (env: REOLINK_HOST)")
		cameraUser    = flag.String("camera-user", "", "Camera username (env: REOLINK_USER)")
		cameraChannel = flag.Int("camera-channel", -1, "Camera channel to query (env: REOLINK_CHANNEL)")

		// Ledger flags
		ledgerPath = flag.String("ledger-path", "", "Path to the clip ledger database (env: LEDGER_PATH)")

		// Destination flags
		destType = flag.String("dest-type", "", "Destination type: s3, ftp (env: DESTINATION_TYPE)")

		// S3 flags
		s3Region    = flag.String("s3-region", "", "S3 region (env: S3_REGION)")
		s3Bucket    = flag.String("s3-bucket", "", "S3 bucket name (env: S3_BUCKET)")
		s3Prefix    = flag.String("s3-prefix", "", "S3 key prefix (env: S3_PREFIX)")
		s3AccessKey = flag.String("s3-access-key", "", "S3 access key ID (env: S3_ACCESS_KEY_ID)")
		s3SecretKey = flag.String("s3-secret-key", "", "S3 secret access key (env: S3_SECRET_ACCESS_KEY)")
		s3Endpoint  = flag.String("s3-endpoint", "", "S3 endpoint URL (env: S3_ENDPOINT)")

		// FTP flags
		ftpHost     = flag.String("ftp-host", "", "FTP server host (env: FTP_HOST)")
		ftpPort     = flag.Int("ftp-port", 0, "FTP server port (env: FTP_PORT)")
		ftpUsername = flag.String("ftp-username", "", "FTP username (env: FTP_USERNAME)")
		ftpPassword = flag.String("ftp-password", "", "FTP password (env: FTP_PASSWORD)")
		ftpBasePath = flag.String("ftp-base-path", "", "FTP base path (env: FTP_BASE_PATH)")
		ftpUseTLS   = flag.Bool("ftp-use-tls", false, "Use FTPS (env: FTP_USE_TLS)")

		// General flags
		showHelp = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		return model.ExitSuccess
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	// Date arguments are validated before any camera or storage I/O
	dates, err := schedule.ParseRange(*startDate, *endDate, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		return model.ExitInvalidArgs
	}

	// Load base configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config from environment: %v\n", err)
		return model.ExitInvalidArgs
	}

	// Override with CLI flags if provided
	applyFlags(cfg, flagValues{
		dryRun:        *dryRun,
		storageDir:    *storageDir,
		windowsPath:   *windowsPath,
		runTimeout:    *runTimeout,
		logLevel:      *logLevel,
		lockPath:      *lockPath,
		runLogPath:    *runLogPath,
		runLogMode:    *runLogMode,
		cameraHost:    *cameraHost,
		cameraUser:    *cameraUser,
		cameraChannel: *cameraChannel,
		ledgerPath:    *ledgerPath,
		destType:      *destType,
		s3Region:      *s3Region,
		s3Bucket:      *s3Bucket,
		s3Prefix:      *s3Prefix,
		s3AccessKey:   *s3AccessKey,
		s3SecretKey:   *s3SecretKey,
		s3Endpoint:    *s3Endpoint,
		ftpHost:       *ftpHost,
		ftpPort:       *ftpPort,
		ftpUsername:   *ftpUsername,
		ftpPassword:   *ftpPassword,
		ftpBasePath:   *ftpBasePath,
		ftpUseTLS:     *ftpUseTLS,
	})

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		return model.ExitInvalidArgs
	}

	// Bootstrap logger writes to stderr until the run log is open
	bootLog := logger.NewLoggerWithWriter(&cfg.Logger, os.Stderr)

	// The lock guards everything below; a concurrent run exits here
	lockMgr := lock.NewManager(&cfg.Lock, bootLog)
	if err := lockMgr.Acquire(); err != nil {
		if errors.Is(err, lock.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "Another run is already in progress, exiting")
			return model.ExitAlreadyRunning
		}
		fmt.Fprintf(os.Stderr, "Failed to acquire lock: %v\n", err)
		return model.ExitFailure
	}
	defer func() {
		if err := lockMgr.Release(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to release lock: %v\n", err)
		}
	}()

	// Prepare the run log (truncate or rotate) and bind the logger to it
	rl, err := runlog.Open(&cfg.RunLog)
	if err != nil {
		bootLog.Error("Failed to open run log: %v", err)
		return model.ExitFailure
	}
	defer rl.Close()

	log := logger.NewLoggerWithWriter(&cfg.Logger, io.MultiWriter(os.Stderr, rl))
	log.Info("Starting camera clip archival for %s", dates)
	if rl.Rotated() {
		log.Info("Run log rotated, previous log kept at %s.old", cfg.RunLog.Path)
	}

	windows, err := schedule.LoadWindows(cfg.WindowsPath)
	if err != nil {
		log.Error("Failed to load download windows: %v", err)
		return model.ExitFailure
	}
	log.Info("Loaded %d download windows from %s", len(windows), cfg.WindowsPath)

	// Initialize camera
	log.Debug("Initializing camera...")
	cam, err := camera.CreateCamera(&cfg.Camera, log)
	if err != nil {
		log.Error("Failed to create camera: %v", err)
		return model.ExitFailure
	}
	defer func() {
		log.Debug("Closing camera session...")
		if err := cam.Close(); err != nil {
			log.Error("Error closing camera session: %v", err)
		}
	}()
	log.Info("Camera initialized: host=%s, channel=%d", cfg.Camera.Host, cfg.Camera.Channel)

	// Initialize destination
	log.Debug("Initializing destination...")
	dest, err := destination.CreateDestination(&cfg.Destination)
	if err != nil {
		log.Error("Failed to create destination: %v", err)
		return model.ExitFailure
	}
	defer func() {
		log.Debug("Closing destination...")
		if err := dest.Close(); err != nil {
			log.Error("Error closing destination: %v", err)
		}
	}()
	log.Info("Destination initialized: type=%s", cfg.Destination.DestinationType)

	// Initialize ledger
	log.Debug("Initializing ledger...")
	led, err := ledger.CreateLedger(&cfg.Ledger)
	if err != nil {
		log.Error("Failed to create ledger: %v", err)
		return model.ExitFailure
	}
	defer func() {
		log.Debug("Closing ledger...")
		if err := led.Close(); err != nil {
			log.Error("Error closing ledger: %v", err)
		}
	}()

	// Notifications are best-effort; a broken notifier never blocks the run
	var notifier notify.Notifier = notify.NewNoOpNotifier()
	if cfg.Notify.Enabled() {
		tn, err := notify.NewTelegramNotifier(&cfg.Notify, log)
		if err != nil {
			log.Warn("Telegram notifications disabled: %v", err)
		} else {
			notifier = tn
			log.Info("Telegram notifications enabled")
		}
	}

	// Only the S3 destination carries a manifest to refresh
	var refresher index.Refresher = index.NewNoOpRefresher()
	if s3dest, ok := dest.(*destination.S3Destination); ok {
		refresher = index.NewManifestRefresher(s3dest, log)
	}

	if cfg.DryRun {
		log.Info("Running in DRY-RUN mode - no files will be downloaded or uploaded")
	}
	runner := pipeline.NewRunner(cam, dest, led, notifier, log, pipeline.Options{
		Windows:       windows,
		StorageDir:    cfg.StorageDir,
		IndexingDelay: time.Duration(cfg.Camera.IndexingDelaySeconds) * time.Second,
		DryRun:        cfg.DryRun,
	})

	sup := supervisor.New(runner, rl, refresher, notifier, log,
		time.Duration(cfg.RunTimeoutSeconds)*time.Second)

	// SIGINT/SIGTERM cancel the run; the deferred cleanup still executes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := sup.Run(ctx, dates)
	log.Info("Run finished: %s", outcome)
	return outcome.Code
}

type flagValues struct {
	dryRun        bool
	storageDir    string
	windowsPath   string
	runTimeout    int
	logLevel      string
	lockPath      string
	runLogPath    string
	runLogMode    string
	cameraHost    string
	cameraUser    string
	cameraChannel int
	ledgerPath    string
	destType      string
	s3Region      string
	s3Bucket      string
	s3Prefix      string
	s3AccessKey   string
	s3SecretKey   string
	s3Endpoint    string
	ftpHost       string
	ftpPort       int
	ftpUsername   string
	ftpPassword   string
	ftpBasePath   string
	ftpUseTLS     bool
}

func applyFlags(cfg *config.AppConfig, flags flagValues) {
	// General
	if flag.Lookup("dry-run").Value.String() == "true" {
		cfg.DryRun = flags.dryRun
	}
	if flags.storageDir != "" {
		cfg.StorageDir = flags.storageDir
	}
	if flags.windowsPath != "" {
		cfg.WindowsPath = flags.windowsPath
	}
	if flags.runTimeout > 0 {
		cfg.RunTimeoutSeconds = flags.runTimeout
	}

	// Logger
	if flags.logLevel != "" {
		cfg.Logger.Level = config.LogLevel(flags.logLevel)
	}

	// Lock
	if flags.lockPath != "" {
		cfg.Lock.Path = flags.lockPath
	}

	// Run log
	if flags.runLogPath != "" {
		cfg.RunLog.Path = flags.runLogPath
	}
	if flags.runLogMode != "" {
		cfg.RunLog.Mode = config.RunLogMode(flags.runLogMode)
	}

	// Camera
	if flags.cameraHost != "" {
		cfg.Camera.Host = flags.cameraHost
	}
	if flags.cameraUser != "" {
		cfg.Camera.Username = flags.cameraUser
	}
	if flags.cameraChannel >= 0 {
		cfg.Camera.Channel = flags.cameraChannel
	}

	// Ledger
	if flags.ledgerPath != "" {
		cfg.Ledger.Path = flags.ledgerPath
	}

	// Destination
	if flags.destType != "" {
		cfg.Destination.DestinationType = config.DestinationType(flags.destType)
	}

	// S3
	if flags.s3Region != "" {
		cfg.Destination.S3.Region = flags.s3Region
	}
	if flags.s3Bucket != "" {
		cfg.Destination.S3.Bucket = flags.s3Bucket
	}
	if flags.s3Prefix != "" {
		cfg.Destination.S3.Prefix = flags.s3Prefix
	}
	if flags.s3AccessKey != "" {
		cfg.Destination.S3.AccessKeyID = flags.s3AccessKey
	}
	if flags.s3SecretKey != "" {
		cfg.Destination.S3.SecretAccessKey = flags.s3SecretKey
	}
	if flags.s3Endpoint != "" {
		cfg.Destination.S3.Endpoint = flags.s3Endpoint
	}

	// FTP
	if flags.ftpHost != "" {
		cfg.Destination.FTP.Host = flags.ftpHost
	}
	if flags.ftpPort > 0 {
		cfg.Destination.FTP.Port = flags.ftpPort
	}
	if flags.ftpUsername != "" {
		cfg.Destination.FTP.Username = flags.ftpUsername
	}
	if flags.ftpPassword != "" {
		cfg.Destination.FTP.Password = flags.ftpPassword
	}
	if flags.ftpBasePath != "" {
		cfg.Destination.FTP.BasePath = flags.ftpBasePath
	}
	if flag.Lookup("ftp-use-tls").Value.String() == "true" {
		cfg.Destination.FTP.UseTLS = flags.ftpUseTLS
	}
}

func printHelp() {
	fmt.Println("Reolink Clip Archival Tool")
	fmt.Println()
	fmt.Println("Usage: reolink-automation [options]")
	fmt.Println("       reolink-automation --start 2026-08-01 --end 2026-08-07 [options]")
	fmt.Println()
	fmt.Println("Downloads the day's motion clips falling inside the configured time")
	fmt.Println("windows, archives them to the destination, and deletes the local copy")
	fmt.Println("once the upload is verified. Without date flags the current date is")
	fmt.Println("processed; --start and --end select an inclusive date range.")
	fmt.Println()
	fmt.Println("Configuration can be provided via environment variables or command-line flags.")
	fmt.Println("Command-line flags take precedence over environment variables.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  reolink-automation --camera-host=192.168.1.10 --s3-bucket=my-clips --s3-region=us-east-1")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DRY_RUN                        - Run in dry-run mode (true/false)")
	fmt.Println("  LOG_LEVEL                      - Log level (silent, error, info, debug, verbose)")
	fmt.Println("  STORAGE_DIR                    - Local directory clips are downloaded into")
	fmt.Println("  DOWNLOAD_TIMES_PATH            - Path to the download windows JSON file")
	fmt.Println("  RUN_TIMEOUT_SECONDS            - Wall-clock timeout for the whole run")
	fmt.Println("  LOCK_PATH                      - Path to the single-run lock file")
	fmt.Println("  LOCK_STALE_AFTER_SECONDS       - Age after which a dead holder's lock is stale")
	fmt.Println("  RUN_LOG_PATH                   - Path to the run log file")
	fmt.Println("  RUN_LOG_MODE                   - Run log mode (reset, rotate)")
	fmt.Println("  RUN_LOG_MAX_SIZE_BYTES         - Rotation threshold for rotate mode")
	fmt.Println("  REOLINK_HOST                   - Camera host or IP")
	fmt.Println("  REOLINK_USER                   - Camera username")
	fmt.Println("  REOLINK_PASSWORD               - Camera password")
	fmt.Println("  REOLINK_HTTPS                  - Use HTTPS to reach the camera (true/false)")
	fmt.Println("  REOLINK_CHANNEL                - Camera channel to query")
	fmt.Println("  REOLINK_STREAM                 - Camera stream (main, sub)")
	fmt.Println("  REOLINK_MAX_RPS                - Max requests per second to the camera (0 = no limit)")
	fmt.Println("  REOLINK_INDEXING_DELAY_SECONDS - Wait before listing today's clips")
	fmt.Println("  LEDGER_PATH                    - Path to the clip ledger database")
	fmt.Println("  LEDGER_BUCKET                  - Ledger bucket name")
	fmt.Println("  DESTINATION_TYPE               - Destination type (s3, ftp)")
	fmt.Println("  S3_REGION                      - S3 region")
	fmt.Println("  S3_BUCKET                      - S3 bucket name")
	fmt.Println("  S3_PREFIX                      - S3 key prefix")
	fmt.Println("  S3_ACCESS_KEY_ID               - S3 access key ID")
	fmt.Println("  S3_SECRET_ACCESS_KEY           - S3 secret access key")
	fmt.Println("  S3_ENDPOINT                    - S3 endpoint URL")
	fmt.Println("  FTP_HOST                       - FTP server host")
	fmt.Println("  FTP_PORT                       - FTP server port")
	fmt.Println("  FTP_USERNAME                   - FTP username")
	fmt.Println("  FTP_PASSWORD                   - FTP password")
	fmt.Println("  FTP_BASE_PATH                  - FTP base path")
	fmt.Println("  FTP_USE_TLS                    - Use FTPS (true/false)")
	fmt.Println("  TELEGRAM_BOT_TOKEN             - Telegram bot token for notifications")
	fmt.Println("  TELEGRAM_CHAT_ID               - Telegram chat to notify")
}
