package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"google.golang.org/grpc"

	"github.com/jamesainslie/declutter/pkg/daemon/broadcaster"
	"github.com/jamesainslie/declutter/pkg/daemon/browser"
	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/daemon/watcher"
	"github.com/jamesainslie/declutter/pkg/declutter/config"
	"github.com/jamesainslie/declutter/pkg/declutter/engine"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/manifest"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/selector"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// tabSource is everything the daemon needs from a browser.
type tabSource interface {
	types.TabDirectory
	types.MediaProbe
	types.ReviewSurface
	Connected() bool
}

// Run starts the daemon and blocks until ctx is done or a client asks it to
// shut down. The instance lock, PID, status file and socket live next to
// the PID file.
func Run(ctx context.Context, cfg *config.Config) (err error) {
	log := logging.Get("daemon")

	pidPath, socketPath, dbPath := cfg.PIDPath(), cfg.SocketPath(), cfg.DBPath()
	dataDir := filepath.Dir(pidPath)
	statusPath := StatusPath(dataDir)

	lock, err := AcquireInstanceLock(LockPath(dataDir))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	_ = RemoveStatus(statusPath)
	defer func() {
		if err != nil {
			_ = WriteStatusError(statusPath, err)
		}
	}()

	if err := RecoverFromStaleDaemon(pidPath, socketPath, dbPath); err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()
	firstRun := st.IsEmpty()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := broadcaster.New()
	defer events.Close()

	tabs := attachBrowser(cfg)
	sched := scheduler.New()

	eng, err := engine.New(engine.Config{
		Records:  st,
		Defaults: cfg.PolicyDefaults(),
		Tabs:     tabs,
		Review:   tabs,
		Alarms:   sched,
		Selector: newSelector(cfg, tabs),
		Notifier: events,
		History:  openHistory(cfg),
	})
	if err != nil {
		return err
	}

	if b, ok := tabs.(*browser.Browser); ok {
		b.SetListener(eng)
		defer func() {
			if derr := b.Disconnect(); derr != nil {
				log.Warn("detaching from browser", "error", derr)
			}
		}()
	}

	if firstRun {
		err = eng.Install()
	} else {
		err = eng.Start()
	}
	if err != nil {
		return err
	}

	svc := NewService(eng,
		WithBroadcaster(events),
		WithScheduler(sched),
		WithBrowserStatus(tabs.Connected),
		WithShutdown(cancel),
	)
	srv, err := NewServer(Config{SocketPath: socketPath, DataDir: dataDir}, svc)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := WritePIDFile(pidPath); err != nil {
		_ = srv.Close()
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() { _ = RemovePIDFile(pidPath) }()

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx, eng.OnTimerFired); err != nil {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	if w := watchConfig(ctx, cfg, eng, tabs, &wg); w != nil {
		defer func() { _ = w.Close() }()
	}

	if err := WriteStatusReady(statusPath); err != nil {
		log.Warn("writing status file", "error", err)
	}
	log.Info("declutterd started", "socket", socketPath, "firstRun", firstRun, "browser", tabs.Connected())

	<-ctx.Done()
	log.Info("declutterd stopping")

	// Open WatchEvents streams end when their subscription closes; the
	// graceful stop below waits for them.
	events.Close()
	if err := srv.Close(); err != nil {
		log.Warn("closing server", "error", err)
	}
	wg.Wait()
	_ = RemoveStatus(statusPath)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	default:
		return nil
	}
}

// attachBrowser connects to the configured browser. Without one, or when
// it cannot be reached, the daemon runs detached.
func attachBrowser(cfg *config.Config) tabSource {
	if cfg.Browser.CDPURL == "" {
		return browser.Detached{}
	}
	b, err := browser.Connect(browser.Options{
		CDPURL:    cfg.Browser.CDPURL,
		ReviewURL: cfg.Browser.ReviewURL,
	})
	if err != nil {
		logging.Get("daemon").Error("browser unavailable, running detached", "cdp", cfg.Browser.CDPURL, "error", err)
		return browser.Detached{}
	}
	return b
}

// openHistory prepares the closed-tab history and expires old entries.
// A nil log disables recording.
func openHistory(cfg *config.Config) engine.ClosureLog {
	if !cfg.History.Enabled {
		return nil
	}
	log := logging.Get("history")

	m, err := manifest.New(cfg.HistoryDir())
	if err == nil {
		err = m.EnsureDir()
	}
	if err != nil {
		log.Warn("closed-tab history disabled", "path", cfg.HistoryDir(), "error", err)
		return nil
	}

	if cfg.History.RetentionDays > 0 {
		removed, err := m.Cleanup(cfg.History.RetentionDays)
		if err != nil {
			log.Warn("expiring history", "error", err)
		} else if removed > 0 {
			log.Info("expired history entries", "removed", removed, "retentionDays", cfg.History.RetentionDays)
		}
	}
	return m
}

func newSelector(cfg *config.Config, probe types.MediaProbe) *selector.Selector {
	return selector.New(
		selector.WithMediaPatterns(cfg.Media.Patterns...),
		selector.WithProbeTimeout(cfg.Media.ProbeTimeout),
		selector.WithProbe(probe),
	)
}

// watchConfig reloads the media settings when the config file changes.
// It returns nil when watching is not possible.
func watchConfig(ctx context.Context, cfg *config.Config, eng *engine.Engine, probe types.MediaProbe, wg *sync.WaitGroup) *watcher.Watcher {
	log := logging.Get("watcher")

	path := cfg.File
	explicit := path != ""
	if !explicit {
		p, err := config.ConfigFile()
		if err != nil {
			log.Warn("config watching disabled", "error", err)
			return nil
		}
		path = p
	}

	w, err := watcher.New()
	if err != nil {
		log.Warn("config watching disabled", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		log.Warn("config watching disabled", "path", path, "error", err)
		_ = w.Close()
		return nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, func(changed string) {
			load := ""
			if explicit {
				load = changed
			}
			next, err := config.LoadFile(load)
			if err != nil {
				log.Warn("ignoring unreadable config", "path", changed, "error", err)
				return
			}
			eng.SetSelector(newSelector(next, probe))
			log.Info("reloaded media settings", "path", changed, "patterns", next.Media.Patterns)
		})
	}()
	return w
}
