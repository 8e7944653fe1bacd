// Package runlog manages the lifecycle of the run log file: preparing it
// before a run (truncate or rotate), bracketing the run with start/end
// markers, and recording the terminal classification.
package runlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/model"
)

// RunLog is the append-only run log file. It implements io.Writer so the
// logger can be bound to it once the run is inside the lock-protected section.
type RunLog struct {
	mu      sync.Mutex
	cfg     *config.RunLogConfig
	file    *os.File
	rotated bool
}

// Open prepares the run log according to the configured mode and opens it
// for appending.
//
// In reset mode the file is truncated. In rotate mode, a file larger than the
// size limit is moved aside to "<path>.old" and a fresh log is started whose
// first line is a rotation notice; otherwise the run appends to the existing
// log.
func Open(cfg *config.RunLogConfig) (*RunLog, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run log config: %w", err)
	}

	rl := &RunLog{cfg: cfg}

	switch cfg.Mode {
	case config.RunLogModeReset:
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to reset run log: %w", err)
		}
		rl.file = f

	case config.RunLogModeRotate:
		if info, err := os.Stat(cfg.Path); err == nil && info.Size() > cfg.MaxSizeBytes {
			oldPath := cfg.Path + ".old"
			if err := os.Rename(cfg.Path, oldPath); err != nil {
				return nil, fmt.Errorf("failed to rotate run log: %w", err)
			}
			rl.rotated = true
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open run log: %w", err)
		}
		rl.file = f
		if rl.rotated {
			fmt.Fprintf(f, "log rotated at %s: previous log moved to %s.old\n",
				time.Now().Format(time.DateTime), cfg.Path)
		}

	default:
		return nil, fmt.Errorf("unsupported run log mode: %s", cfg.Mode)
	}

	return rl, nil
}

// Write appends raw bytes to the run log. Safe for concurrent use.
func (rl *RunLog) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.file.Write(p)
}

// Rotated reports whether Open moved a previous oversized log aside.
func (rl *RunLog) Rotated() bool {
	return rl.rotated
}

// WriteRunStart writes the bracketed run-start marker.
func (rl *RunLog) WriteRunStart(now time.Time) {
	rl.writeLine(fmt.Sprintf("===== run started at %s =====", now.Format(time.DateTime)))
}

// WriteTimeoutNotice records the run's wall-clock bound.
func (rl *RunLog) WriteTimeoutNotice(seconds int) {
	rl.writeLine(fmt.Sprintf("starting with %d-second timeout", seconds))
}

// WriteOutcome writes the human-readable classification line keyed by the
// run's terminal exit code.
func (rl *RunLog) WriteOutcome(outcome model.RunOutcome) {
	switch {
	case outcome.IsSuccess():
		rl.writeLine("run completed successfully (exit code 0)")
	case outcome.IsTimeout():
		rl.writeLine(fmt.Sprintf("run timed out (exit code %d)", outcome.Code))
	default:
		rl.writeLine(fmt.Sprintf("run failed with exit code %d", outcome.Code))
	}
}

// WriteRunEnd writes the bracketed run-end marker.
func (rl *RunLog) WriteRunEnd(now time.Time) {
	rl.writeLine(fmt.Sprintf("===== run ended at %s =====", now.Format(time.DateTime)))
}

func (rl *RunLog) writeLine(line string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	fmt.Fprintln(rl.file, line)
}

// Close syncs and closes the underlying file.
func (rl *RunLog) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if err := rl.file.Sync(); err != nil {
		rl.file.Close()
		return err
	}
	return rl.file.Close()
}
