package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baophamtd/reolink-automation/config"
)

func newBufferLogger(level config.LogLevel) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := NewLoggerWithWriter(&config.LoggerConfig{Level: level, TimeFormat: " "}, buf)
	return log, buf
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(config.LogLevelInfo)

	log.Error("an error")
	log.Info("an info")
	log.Debug("a debug")
	log.Verbose("a trace")

	out := buf.String()
	require.Contains(t, out, "an error")
	require.Contains(t, out, "an info")
	require.NotContains(t, out, "a debug")
	require.NotContains(t, out, "a trace")
}

func TestSilentLevelWritesNothing(t *testing.T) {
	log, buf := newBufferLogger(config.LogLevelSilent)

	log.Error("even errors")
	require.Empty(t, buf.String())
}

func TestFormattedMessages(t *testing.T) {
	log, buf := newBufferLogger(config.LogLevelInfo)

	log.Info("archived %d of %d clips", 2, 3)
	require.Contains(t, buf.String(), "archived 2 of 3 clips")
}

func TestWithFields(t *testing.T) {
	log, buf := newBufferLogger(config.LogLevelInfo)

	dayLog := log.With("day", "2026-08-10").With("channel", 0)
	dayLog.Info("listed")

	out := buf.String()
	require.Contains(t, out, "day=2026-08-10")
	require.Contains(t, out, "channel=0")

	// The parent logger is unaffected
	buf.Reset()
	log.Info("plain")
	require.NotContains(t, buf.String(), "day=")
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	log.Error("nothing happens")
	require.Same(t, log, log.With("k", "v"))
}
