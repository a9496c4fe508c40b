package daemon

import (
	"os"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
)

// RecoverFromStaleDaemon checks for and cleans up stale daemon artifacts.
// Returns nil if cleanup succeeded or wasn't needed.
// Returns ErrDaemonAlreadyRunning if a daemon is actually running.
//
// Badger keeps its own directory lock; a crashed daemon can leave the
// LOCK file behind, which is removed together with the PID file and socket.
func RecoverFromStaleDaemon(pidPath, socketPath, dbPath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // missing or invalid PID file means nothing to recover
	}

	if pid != os.Getpid() && IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid)

	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	_ = os.Remove(dbLockPath(dbPath))

	return nil
}
