package daemon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/declutter/pkg/daemon"
)

func TestWriteAndReadPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "run", "declutter.pid")

	require.NoError(t, daemon.WritePIDFile(pidPath))

	pid, err := daemon.ReadPIDFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPIDFile_TrimsWhitespace(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "declutter.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("1234\n"), 0o644))

	pid, err := daemon.ReadPIDFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)
}

func TestIsDaemonRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "declutter.pid")

	assert.False(t, daemon.IsDaemonRunning(pidPath), "no PID file")

	require.NoError(t, daemon.WritePIDFile(pidPath))
	assert.True(t, daemon.IsDaemonRunning(pidPath), "PID of this process")

	require.NoError(t, os.WriteFile(pidPath, []byte("999999999"), 0o644))
	assert.False(t, daemon.IsDaemonRunning(pidPath), "PID of no process")
}

func TestRemovePIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "declutter.pid")
	require.NoError(t, daemon.WritePIDFile(pidPath))
	require.FileExists(t, pidPath)

	require.NoError(t, daemon.RemovePIDFile(pidPath))
	assert.NoFileExists(t, pidPath)
}

func TestInstanceLock(t *testing.T) {
	lockPath := daemon.LockPath(filepath.Join(t.TempDir(), "data"))

	first, err := daemon.AcquireInstanceLock(lockPath)
	require.NoError(t, err)

	_, err = daemon.AcquireInstanceLock(lockPath)
	require.ErrorIs(t, err, daemon.ErrDaemonAlreadyRunning)

	require.NoError(t, first.Release())

	again, err := daemon.AcquireInstanceLock(lockPath)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestInstanceLock_NilRelease(t *testing.T) {
	var l *daemon.InstanceLock
	assert.NoError(t, l.Release())
}
