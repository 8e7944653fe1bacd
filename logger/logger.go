package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/baophamtd/reolink-automation/config"
)

// Logger defines the logging interface
type Logger interface {
	// Error logs an error message
	Error(msg string, args ...interface{})
	// Warn logs a warning message
	Warn(msg string, args ...interface{})
	// Info logs an informational message
	Info(msg string, args ...interface{})
	// Debug logs a debug message
	Debug(msg string, args ...interface{})
	// Verbose logs a verbose/trace message
	Verbose(msg string, args ...interface{})

	// With returns a new logger with an additional context field
	With(key string, value interface{}) Logger
}

// DefaultLogger is the default logger implementation. It writes plain lines
// to an injected writer; once a run holds the lock, the writer is the run log
// file managed by the runlog package.
type DefaultLogger struct {
	mu     sync.Mutex
	cfg    *config.LoggerConfig
	writer io.Writer
	fields []field
}

type field struct {
	key   string
	value interface{}
}

// NewLogger creates a new logger writing to stdout
func NewLogger(cfg *config.LoggerConfig) Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger with a custom writer (the run log file,
// or a buffer in tests)
func NewLoggerWithWriter(cfg *config.LoggerConfig, writer io.Writer) Logger {
	if cfg == nil {
		cfg = &config.LoggerConfig{}
	}
	cfg.ApplyDefaults()

	return &DefaultLogger{
		cfg:    cfg,
		writer: writer,
	}
}

var levelRank = map[config.LogLevel]int{
	config.LogLevelSilent:  0,
	config.LogLevelError:   1,
	config.LogLevelInfo:    2,
	config.LogLevelDebug:   3,
	config.LogLevelVerbose: 4,
}

// shouldLog checks if a message at the given level should be logged
func (l *DefaultLogger) shouldLog(level config.LogLevel) bool {
	if l.cfg.Level == config.LogLevelSilent {
		return false
	}
	return levelRank[level] <= levelRank[l.cfg.Level]
}

// log is the internal logging method
func (l *DefaultLogger) log(level config.LogLevel, msg string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var output string

	if l.cfg.TimeFormat != "" {
		output += time.Now().Format(l.cfg.TimeFormat) + " "
	}

	output += fmt.Sprintf("[%s] ", level)

	for _, f := range l.fields {
		output += fmt.Sprintf("%s=%v ", f.key, f.value)
	}

	if len(args) > 0 {
		output += fmt.Sprintf(msg, args...)
	} else {
		output += msg
	}

	output += "\n"

	fmt.Fprint(l.writer, output)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.log(config.LogLevelError, msg, args...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.log(config.LogLevelInfo, msg, args...)
}

// Info logs an informational message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.log(config.LogLevelInfo, msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.log(config.LogLevelDebug, msg, args...)
}

// Verbose logs a verbose/trace message
func (l *DefaultLogger) Verbose(msg string, args ...interface{}) {
	l.log(config.LogLevelVerbose, msg, args...)
}

// With returns a new logger with an additional context field
func (l *DefaultLogger) With(key string, value interface{}) Logger {
	newFields := make([]field, len(l.fields), len(l.fields)+1)
	copy(newFields, l.fields)
	newFields = append(newFields, field{key: key, value: value})

	return &DefaultLogger{
		cfg:    l.cfg,
		writer: l.writer,
		fields: newFields,
	}
}

// NoOpLogger is a logger that does nothing (useful for testing or when logging is disabled)
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Error(msg string, args ...interface{})     {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})      {}
func (n *NoOpLogger) Info(msg string, args ...interface{})      {}
func (n *NoOpLogger) Debug(msg string, args ...interface{})     {}
func (n *NoOpLogger) Verbose(msg string, args ...interface{})   {}
func (n *NoOpLogger) With(key string, value interface{}) Logger { return n }
