package runlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/model"
)

func TestResetModeTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("leftover from last run\n"), 0644))

	rl, err := Open(&config.RunLogConfig{Path: path, Mode: config.RunLogModeReset})
	require.NoError(t, err)

	_, err = rl.Write([]byte("fresh\n"))
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fresh\n", string(data))
}

func TestRotateModeAppendsUnderLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0644))

	rl, err := Open(&config.RunLogConfig{
		Path:         path,
		Mode:         config.RunLogModeRotate,
		MaxSizeBytes: 10 * 1024 * 1024,
	})
	require.NoError(t, err)
	require.False(t, rl.Rotated())

	_, err = rl.Write([]byte("this run\n"))
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous run\nthis run\n", string(data))
}

func TestRotateModeMovesOversizedLogAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	// 11 MiB of old log against the default 10 MiB limit
	big := strings.Repeat("x", 11*1024*1024)
	require.NoError(t, os.WriteFile(path, []byte(big), 0644))

	rl, err := Open(&config.RunLogConfig{
		Path:         path,
		Mode:         config.RunLogModeRotate,
		MaxSizeBytes: 10 * 1024 * 1024,
	})
	require.NoError(t, err)
	require.True(t, rl.Rotated())
	require.NoError(t, rl.Close())

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	require.Len(t, old, 11*1024*1024)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Contains(t, lines[0], "log rotated at")
	require.Contains(t, lines[0], path+".old")
}

func TestRunMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	rl, err := Open(&config.RunLogConfig{Path: path, Mode: config.RunLogModeReset})
	require.NoError(t, err)

	start := time.Date(2026, 8, 10, 9, 0, 0, 0, time.Local)
	end := start.Add(42 * time.Second)

	rl.WriteRunStart(start)
	rl.WriteTimeoutNotice(3600)
	rl.WriteOutcome(model.Success())
	rl.WriteRunEnd(end)
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "===== run started at 2026-08-10 09:00:00 =====")
	require.Contains(t, content, "starting with 3600-second timeout")
	require.Contains(t, content, "run completed successfully (exit code 0)")
	require.Contains(t, content, "===== run ended at 2026-08-10 09:00:42 =====")
}

func TestOutcomeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	rl, err := Open(&config.RunLogConfig{Path: path, Mode: config.RunLogModeReset})
	require.NoError(t, err)

	rl.WriteOutcome(model.TimedOut(errors.New("deadline exceeded")))
	rl.WriteOutcome(model.Failed(errors.New("camera unreachable")))
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "run timed out (exit code 124)")
	require.Contains(t, string(data), "run failed with exit code 2")
}

func TestUnsupportedModeRejected(t *testing.T) {
	_, err := Open(&config.RunLogConfig{
		Path: filepath.Join(t.TempDir(), "run.log"),
		Mode: "truncate-sometimes",
	})
	require.Error(t, err)
}
