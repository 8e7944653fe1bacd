// Package lock enforces the at-most-one-concurrent-run contract through a
// pidfile. A second invocation started while a valid lock exists fails fast
// with ErrAlreadyRunning; locks left behind by dead processes are reclaimed
// automatically.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/logger"
)

// ErrAlreadyRunning means a live process holds the lock. The caller must exit
// immediately without touching the other run's lock file.
var ErrAlreadyRunning = errors.New("another run is already in progress")

// Manager acquires and releases the single-run lock file.
type Manager struct {
	path       string
	staleAfter time.Duration
	log        logger.Logger

	// alive and now are injectable for tests (fake liveness oracle, fake clock).
	alive func(pid int) bool
	now   func() time.Time
}

// NewManager creates a lock manager backed by the filesystem, using gopsutil
// for process liveness checks.
func NewManager(cfg *config.LockConfig, log logger.Logger) *Manager {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Manager{
		path:       cfg.Path,
		staleAfter: time.Duration(cfg.StaleAfterSeconds) * time.Second,
		log:        log,
		alive:      pidAlive,
		now:        time.Now,
	}
}

func pidAlive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		// Cannot verify: treat as gone so an orphaned lock never wedges the
		// schedule permanently.
		return false
	}
	return exists
}

// Acquire takes the lock for the current process.
//
// If the lock file exists and its recorded process is alive, Acquire fails
// with ErrAlreadyRunning. If the recorded process is gone, or the file is
// unreadable or corrupt, the lock is removed and acquisition is retried once.
func (m *Manager) Acquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		err := m.tryCreate()
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		pid, age, rerr := m.inspect()
		if rerr != nil {
			m.log.Warn("lock file %s unreadable (%v), treating as stale", m.path, rerr)
		} else if m.alive(pid) {
			return ErrAlreadyRunning
		} else if age > m.staleAfter {
			m.log.Info("removing lock %s: stale, age %s", m.path, age.Round(time.Second))
		} else {
			m.log.Info("removing lock %s: process %d not running", m.path, pid)
		}

		if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return fmt.Errorf("failed to acquire lock %s after stale recovery", m.path)
}

// tryCreate writes the current pid in a single exclusive-create operation so
// readers never observe a partially written id.
func (m *Manager) tryCreate() error {
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		os.Remove(m.path)
		return werr
	}
	if cerr != nil {
		os.Remove(m.path)
		return cerr
	}
	return nil
}

// inspect reads the holder pid and the lock file age.
func (m *Manager) inspect() (pid int, age time.Duration, err error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, 0, err
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("corrupt lock content: %w", err)
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return 0, 0, err
	}
	return pid, m.now().Sub(info.ModTime()), nil
}

// Release removes the lock file unconditionally. It runs on every termination
// path: callers defer it immediately after a successful Acquire.
func (m *Manager) Release() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
