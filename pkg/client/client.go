// Package client connects to the declutterd daemon. It wraps the gRPC
// client with typed helpers for every command in the catalogue.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
	"github.com/jamesainslie/declutter/pkg/declutter/config"
	"github.com/jamesainslie/declutter/pkg/declutter/engine"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// daemonBinary is the daemon executable name.
const daemonBinary = "declutterd"

// Client talks to declutterd over its unix socket.
type Client struct {
	conn   *grpc.ClientConn
	client declutterv1.DeclutterDaemonClient
}

// DaemonPaths configures paths for daemon operations.
// Empty fields use defaults.
type DaemonPaths struct {
	Binary string // Path to declutterd (auto-discovered if empty)
	Socket string // Unix socket path
	PID    string // PID file path
}

func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

// Connect establishes a connection to the daemon with a 5 second timeout.
func Connect(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ConnectWithContext(ctx, socketPath)
}

// ConnectWithContext establishes a connection to the daemon and waits for
// it to become ready or for ctx to end.
func ConnectWithContext(ctx context.Context, socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("daemon socket not found at %s", socketPath)
	}

	//nolint:staticcheck // grpc.DialContext is deprecated but NewClient doesn't support blocking
	conn, err := grpc.DialContext(
		ctx,
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	return &Client{
		conn:   conn,
		client: declutterv1.NewDeclutterDaemonClient(conn),
	}, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Command sends one command envelope. The error reports transport failures
// only; command failures come back in the response.
func (c *Client) Command(ctx context.Context, req engine.Request) (engine.Response, error) {
	msg := map[string]any{"type": req.Type}
	if req.TabID != "" {
		msg["tabId"] = string(req.TabID)
	}
	if req.Patch != nil {
		msg["patch"] = req.Patch
	}

	in, err := structpb.NewStruct(msg)
	if err != nil {
		return engine.Response{}, fmt.Errorf("encoding %s: %w", req.Type, err)
	}
	out, err := c.client.Command(ctx, in)
	if err != nil {
		return engine.Response{}, fmt.Errorf("%s RPC failed: %w", req.Type, err)
	}

	var resp engine.Response
	if err := declutterv1.FromStruct(out, &resp); err != nil {
		return engine.Response{}, err
	}
	return resp, nil
}

// do sends a command and turns a failed envelope into an error.
func (c *Client) do(ctx context.Context, req engine.Request) (engine.Response, error) {
	resp, err := c.Command(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := resp.Err(); err != nil {
		return resp, fmt.Errorf("%s: %w", req.Type, err)
	}
	return resp, nil
}

// TabState returns the settings and whether id is marked important.
func (c *Client) TabState(ctx context.Context, id types.TabID) (settings.Settings, bool, error) {
	resp, err := c.do(ctx, engine.Request{Type: engine.CmdGetStateForTab, TabID: id})
	if err != nil {
		return settings.Settings{}, false, err
	}
	return derefSettings(resp.Settings), resp.IsImportant != nil && *resp.IsImportant, nil
}

// ToggleImportant flips the important flag of id and returns the new state.
func (c *Client) ToggleImportant(ctx context.Context, id types.TabID) (bool, error) {
	resp, err := c.do(ctx, engine.Request{Type: engine.CmdToggleImportant, TabID: id})
	if err != nil {
		return false, err
	}
	return resp.Important != nil && *resp.Important, nil
}

// UpdateSettings applies a partial settings patch.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any) (settings.Settings, error) {
	resp, err := c.do(ctx, engine.Request{Type: engine.CmdUpdateSettings, Patch: patch})
	if err != nil {
		return settings.Settings{}, err
	}
	return derefSettings(resp.Settings), nil
}

// RunNow sweeps immediately and focuses the review surface.
func (c *Client) RunNow(ctx context.Context) error {
	_, err := c.do(ctx, engine.Request{Type: engine.CmdRunNow})
	return err
}

// ReviewCandidates returns the pending review batch and the settings.
func (c *Client) ReviewCandidates(ctx context.Context) ([]types.Candidate, settings.Settings, error) {
	resp, err := c.do(ctx, engine.Request{Type: engine.CmdGetReviewCandidates})
	if err != nil {
		return nil, settings.Settings{}, err
	}
	return resp.Candidates, derefSettings(resp.Settings), nil
}

// CloseReview closes every queued tab and returns how many were closed.
func (c *Client) CloseReview(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, engine.Request{Type: engine.CmdCloseReviewCandidates})
	if err != nil {
		return 0, err
	}
	if resp.Closed == nil {
		return 0, nil
	}
	return *resp.Closed, nil
}

// ClearReview discards the pending batch.
func (c *Client) ClearReview(ctx context.Context) error {
	_, err := c.do(ctx, engine.Request{Type: engine.CmdClearReviewCandidates})
	return err
}

// TabEvent reports a tab event to the daemon.
func (c *Client) TabEvent(ctx context.Context, ev declutterv1.TabEventRequest) error {
	in, err := declutterv1.ToStruct(ev)
	if err != nil {
		return err
	}
	if _, err := c.client.TabEvent(ctx, in); err != nil {
		return fmt.Errorf("TabEvent RPC failed: %w", err)
	}
	return nil
}

// GetDaemonStatus returns the current status of the daemon.
func (c *Client) GetDaemonStatus(ctx context.Context) (*declutterv1.DaemonStatus, error) {
	out, err := c.client.GetDaemonStatus(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("GetDaemonStatus RPC failed: %w", err)
	}
	var st declutterv1.DaemonStatus
	if err := declutterv1.FromStruct(out, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Shutdown requests the daemon to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.client.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("Shutdown RPC failed: %w", err)
	}
	return nil
}

// WatchEvents subscribes to engine events, optionally limited to kinds.
// The channel closes when the stream ends or ctx is cancelled.
func (c *Client) WatchEvents(ctx context.Context, kinds ...types.EventKind) (<-chan types.Event, error) {
	req := declutterv1.WatchRequest{}
	for _, k := range kinds {
		req.Kinds = append(req.Kinds, string(k))
	}
	in, err := declutterv1.ToStruct(req)
	if err != nil {
		return nil, err
	}

	stream, err := c.client.WatchEvents(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("WatchEvents RPC failed: %w", err)
	}

	events := make(chan types.Event, 100)
	go func() {
		defer close(events)
		log := logging.Get("client")
		for {
			msg, err := stream.Recv()
			if err != nil {
				return
			}
			var ev types.Event
			if err := declutterv1.FromStruct(msg, &ev); err != nil {
				log.Warn("skipping undecodable event", "error", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func derefSettings(s *settings.Settings) settings.Settings {
	if s == nil {
		return settings.Settings{}
	}
	return *s
}

// EnsureDaemon ensures the daemon is running, starting it if necessary.
func EnsureDaemon(paths DaemonPaths) error {
	return StartDaemon(paths)
}

// StartDaemon starts declutterd in the background.
// Idempotent: returns nil if the daemon is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", daemonBinary, err)
	}

	statusPath := StatusPath(paths.PID)
	_ = os.Remove(statusPath)

	// exec.Command, not CommandContext: the daemon must outlive the caller.
	cmd := exec.Command(binary) //nolint:gosec // binary path is resolved above
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if status, err := readStatusFile(statusPath); err == nil {
			switch status.Status {
			case "ready":
				return nil
			case "error":
				return fmt.Errorf("daemon failed to start: %s", status.Error)
			}
		}
	}

	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon stops the daemon gracefully via RPC.
// Idempotent: returns nil if the daemon is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if !IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !IsDaemonRunning(paths.PID) {
			return nil
		}
	}

	return errors.New("daemon did not stop within timeout")
}

// RestartDaemon stops and starts the daemon.
func RestartDaemon(paths DaemonPaths) error {
	if err := StopDaemon(paths); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := StartDaemon(paths); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// resolveBinary finds declutterd.
// Priority: configured path > next to the current executable > PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), daemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(daemonBinary); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found", daemonBinary)
}

// IsDaemonRunning checks if the daemon is running based on the PID file.
func IsDaemonRunning(pidPath string) bool {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// StatusPath returns the startup status file the daemon writes next to its
// PID file.
func StatusPath(pidPath string) string {
	return filepath.Join(filepath.Dir(pidPath), "declutterd.status")
}

type statusFile struct {
	Status string `json:"status"`
	PID    int    `json:"pid,omitempty"`
	Error  string `json:"error,omitempty"`
}

func readStatusFile(path string) (*statusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var status statusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
