package daemon

import (
	"context"
	"os"
	"runtime"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
	"github.com/jamesainslie/declutter/pkg/daemon/broadcaster"
	"github.com/jamesainslie/declutter/pkg/declutter/engine"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Service implements the DeclutterDaemon gRPC service on top of the engine.
type Service struct {
	declutterv1.UnimplementedDeclutterDaemonServer

	engine      *engine.Engine
	broadcaster *broadcaster.Broadcaster
	scheduler   *scheduler.Scheduler
	connected   func() bool
	shutdown    func()
	startTime   time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBroadcaster enables WatchEvents.
func WithBroadcaster(b *broadcaster.Broadcaster) ServiceOption {
	return func(s *Service) {
		s.broadcaster = b
	}
}

// WithScheduler lets status report the next sweep.
func WithScheduler(sch *scheduler.Scheduler) ServiceOption {
	return func(s *Service) {
		s.scheduler = sch
	}
}

// WithBrowserStatus reports whether a browser is attached.
func WithBrowserStatus(connected func() bool) ServiceOption {
	return func(s *Service) {
		s.connected = connected
	}
}

// WithShutdown sets the function Shutdown calls.
func WithShutdown(fn func()) ServiceOption {
	return func(s *Service) {
		s.shutdown = fn
	}
}

// NewService creates a gRPC service over eng.
func NewService(eng *engine.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		engine:    eng,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Command dispatches one command envelope. Command failures travel inside
// the response envelope; only transport problems become gRPC errors.
func (s *Service) Command(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := engine.DecodeRequest(in.AsMap())
	resp := s.engine.Handle(ctx, req)

	out, err := declutterv1.ToStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// TabEvent feeds a tab event into the engine.
func (s *Service) TabEvent(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var ev declutterv1.TabEventRequest
	if err := declutterv1.FromStruct(in, &ev); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, ok := types.ParseTabID(ev.TabID)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "tabId is required")
	}

	var err error
	switch ev.Kind {
	case declutterv1.TabActivated:
		err = s.engine.OnTabActivated(id)
	case declutterv1.TabUpdated:
		err = s.engine.OnTabUpdated(id, engine.TabChange{Status: ev.Status, URL: ev.URL})
	case declutterv1.TabRemoved:
		err = s.engine.OnTabRemoved(id)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown tab event %q", ev.Kind)
	}
	if err != nil {
		logging.Get("daemon").Warn("tab event failed", "kind", ev.Kind, "tab", id, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// GetDaemonStatus returns daemon health information.
func (s *Service) GetDaemonStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := declutterv1.DaemonStatus{
		Running:       true,
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		MemoryBytes:   int64(mem.Alloc), //nolint:gosec // heap size fits in int64
		LastSweep:     s.engine.LastSweep().At,
	}

	if snap, err := s.engine.Snapshot(); err == nil {
		st.TrackedTabs = len(snap.LastActive)
		st.ImportantTabs = len(snap.Important)
	}
	if queued, err := s.engine.Queued(); err == nil {
		st.QueuedCandidates = len(queued)
	}
	if s.scheduler != nil {
		if info, ok := s.scheduler.Get(scheduler.SweepAlarm); ok {
			st.NextSweep = info.Next
			st.SweepPeriod = info.Period.String()
		}
	}
	if s.connected != nil {
		st.BrowserConnected = s.connected()
	}
	if s.broadcaster != nil {
		st.Subscribers = s.broadcaster.SubscriberCount()
	}

	out, err := declutterv1.ToStruct(st)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding status: %v", err)
	}
	return out, nil
}

// Shutdown asks the daemon to stop. The reply is sent before the server
// goes away.
func (s *Service) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	logging.Get("daemon").Info("shutdown requested")
	if s.shutdown != nil {
		go s.shutdown()
	}
	return &emptypb.Empty{}, nil
}

// WatchEvents streams engine events until the client disconnects.
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.broadcaster == nil {
		return status.Error(codes.Unavailable, "event streaming not available")
	}

	var req declutterv1.WatchRequest
	if err := declutterv1.FromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	kinds := make([]types.EventKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds = append(kinds, types.EventKind(k))
	}

	sub := s.broadcaster.Subscribe(kinds...)
	if sub == nil {
		return status.Error(codes.Unavailable, "failed to subscribe")
	}
	defer s.broadcaster.Unsubscribe(sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			msg, err := declutterv1.ToStruct(ev)
			if err != nil {
				return status.Errorf(codes.Internal, "encoding event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
