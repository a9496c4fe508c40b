package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status values.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// StatusFile tells the process that spawned declutterd whether startup
// succeeded. The spawner polls it, so it is replaced atomically.
type StatusFile struct {
	Status string    `json:"status"`
	PID    int       `json:"pid,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// StatusPath returns the status file path for a data directory.
func StatusPath(dataDir string) string {
	return filepath.Join(dataDir, "declutterd.status")
}

// WriteStatusReady records that this process is serving.
func WriteStatusReady(path string) error {
	return writeStatus(path, StatusFile{Status: StatusReady, PID: os.Getpid()})
}

// WriteStatusError records why startup failed.
func WriteStatusError(path string, err error) error {
	return writeStatus(path, StatusFile{Status: StatusError, Error: err.Error()})
}

func writeStatus(path string, st StatusFile) error {
	st.At = time.Now().UTC()
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing status: %w", err)
	}
	return nil
}

// ReadStatus parses the status file at path.
func ReadStatus(path string) (*StatusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st := &StatusFile{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return st, nil
}

// RemoveStatus deletes the status file.
func RemoveStatus(path string) error {
	return os.Remove(path)
}

func dbLockPath(dbPath string) string {
	return filepath.Join(dbPath, "LOCK")
}
