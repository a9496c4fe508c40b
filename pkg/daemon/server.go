package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
)

// socketMode keeps the control socket private to the user running the daemon.
const socketMode = 0o600

// Config holds the server's filesystem locations.
type Config struct {
	SocketPath string
	DataDir    string
}

// Server serves the declutter API on a unix socket.
type Server struct {
	socket   string
	grpc     *grpc.Server
	listener net.Listener
}

// NewServer binds cfg.SocketPath, replacing any socket a previous daemon
// left behind, and registers svc.
func NewServer(cfg Config, svc declutterv1.DeclutterDaemonServer) (*Server, error) {
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.SocketPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	listener, err := listenUnix(cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	gs := grpc.NewServer()
	declutterv1.RegisterDeclutterDaemonServer(gs, svc)
	return &Server{socket: cfg.SocketPath, grpc: gs, listener: listener}, nil
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), "unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, socketMode); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("securing socket: %w", err)
	}
	return l, nil
}

// Serve blocks until the server is closed.
func (s *Server) Serve() error {
	return s.grpc.Serve(s.listener)
}

// Close drains in-flight calls and removes the socket.
func (s *Server) Close() error {
	s.grpc.GracefulStop()
	return os.RemoveAll(s.socket)
}
