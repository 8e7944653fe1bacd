package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baophamtd/reolink-automation/config"
)

func newTestManager(t *testing.T, alive func(pid int) bool) *Manager {
	t.Helper()
	m := NewManager(&config.LockConfig{
		Path:              filepath.Join(t.TempDir(), "test.lock"),
		StaleAfterSeconds: 3600,
	}, nil)
	if alive != nil {
		m.alive = alive
	}
	return m
}

func TestAcquireAndRelease(t *testing.T) {
	m := newTestManager(t, nil)

	require.NoError(t, m.Acquire())

	data, err := os.ReadFile(m.path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data[:len(data)-1]))
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, m.Release())
	_, err = os.Stat(m.path)
	require.True(t, os.IsNotExist(err))
}

func TestAcquireFailsWhenHolderAlive(t *testing.T) {
	m := newTestManager(t, func(pid int) bool { return true })

	require.NoError(t, os.WriteFile(m.path, []byte("4242\n"), 0644))

	err := m.Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// The live holder's lock file must not be touched
	data, rerr := os.ReadFile(m.path)
	require.NoError(t, rerr)
	require.Equal(t, "4242\n", string(data))
}

func TestAcquireReclaimsDeadHolder(t *testing.T) {
	m := newTestManager(t, func(pid int) bool { return false })

	require.NoError(t, os.WriteFile(m.path, []byte("4242\n"), 0644))

	require.NoError(t, m.Acquire())

	// The lock now belongs to this process
	data, err := os.ReadFile(m.path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))
}

func TestAcquireReclaimsOldLockRegardlessOfAge(t *testing.T) {
	// A dead holder's lock is reclaimed even if the file is brand new; the
	// age threshold only changes what gets logged.
	m := newTestManager(t, func(pid int) bool { return false })
	m.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	require.NoError(t, os.WriteFile(m.path, []byte("4242\n"), 0644))
	require.NoError(t, m.Acquire())
}

func TestAcquireReclaimsCorruptLock(t *testing.T) {
	m := newTestManager(t, func(pid int) bool {
		t.Fatal("liveness must not be checked for a corrupt lock")
		return true
	})

	require.NoError(t, os.WriteFile(m.path, []byte("not-a-pid"), 0644))

	require.NoError(t, m.Acquire())
}

func TestReleaseMissingLockIsNotAnError(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.Release())
}
