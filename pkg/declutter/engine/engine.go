// Package engine runs the declutter policy: it reacts to tab events, sweeps
// idle tabs on the alarm and serves the command surface used by the CLI and
// the review page.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/manifest"
	"github.com/jamesainslie/declutter/pkg/declutter/queue"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/selector"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/tracker"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// ClosureLog records tabs the engine closed.
type ClosureLog interface {
	LogClose(reason manifest.Reason, closed []types.Candidate) (*manifest.Entry, error)
}

// Config holds the engine's collaborators.
type Config struct {
	// Records backs settings, tracking state and the review queue.
	Records types.Records

	// Defaults seeds every setting the stored record does not override.
	Defaults settings.Settings

	Tabs     types.TabDirectory
	Review   types.ReviewSurface
	Alarms   types.Alarms
	Selector *selector.Selector

	// Notifier receives engine events. Optional.
	Notifier types.Notifier

	// History records closed tabs. Optional.
	History ClosureLog

	// Now overrides the clock. Optional.
	Now func() time.Time
}

// Engine is the declutter policy engine.
type Engine struct {
	settings *settings.Store
	tracker  *tracker.Tracker
	queue    *queue.Queue

	tabs     types.TabDirectory
	review   types.ReviewSurface
	alarms   types.Alarms
	notifier types.Notifier
	history  ClosureLog
	now      func() time.Time
	logger   *logging.Logger

	mu        sync.RWMutex
	selector  *selector.Selector
	lastSweep SweepResult
}

// SweepResult summarises one sweep.
type SweepResult struct {
	At         time.Time
	Candidates []types.Candidate

	// AutoClosed is true when the candidates were closed without review.
	AutoClosed bool
}

// New creates an engine. Tabs, Review, Alarms and Records are required.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Records == nil:
		return nil, errors.New("engine: records are required")
	case cfg.Tabs == nil:
		return nil, errors.New("engine: tab directory is required")
	case cfg.Review == nil:
		return nil, errors.New("engine: review surface is required")
	case cfg.Alarms == nil:
		return nil, errors.New("engine: alarms are required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sel := cfg.Selector
	if sel == nil {
		sel = selector.New()
	}

	return &Engine{
		settings: settings.NewStore(cfg.Records, cfg.Defaults),
		tracker:  tracker.New(cfg.Records, tracker.WithClock(now)),
		queue:    queue.New(cfg.Records),
		tabs:     cfg.Tabs,
		review:   cfg.Review,
		alarms:   cfg.Alarms,
		notifier: cfg.Notifier,
		history:  cfg.History,
		now:      now,
		logger:   logging.Get("engine"),
		selector: sel,
	}, nil
}

// Install persists the default settings and arms the sweep alarm. It is
// called on the first start against an empty store.
func (e *Engine) Install() error {
	cfg, err := e.settings.Patch(map[string]any{})
	if err != nil {
		return fmt.Errorf("persisting default settings: %w", err)
	}
	e.logger.Info("installed", "thresholdMinutes", cfg.ThresholdMinutes, "alarmPeriodMinutes", cfg.AlarmPeriodMinutes)
	return e.armSweep(cfg.AlarmPeriodMinutes)
}

// Start arms the sweep alarm from the stored settings.
func (e *Engine) Start() error {
	cfg, err := e.settings.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	return e.armSweep(cfg.AlarmPeriodMinutes)
}

func (e *Engine) armSweep(periodMinutes float64) error {
	period := time.Duration(periodMinutes * float64(time.Minute))
	if err := e.alarms.Arm(scheduler.SweepAlarm, period); err != nil {
		return fmt.Errorf("arming sweep alarm: %w", err)
	}
	return nil
}

// SetSelector swaps the candidate selector, e.g. after a config reload.
func (e *Engine) SetSelector(sel *selector.Selector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selector = sel
}

func (e *Engine) currentSelector() *selector.Selector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selector
}

// Settings returns the current settings.
func (e *Engine) Settings() (settings.Settings, error) {
	return e.settings.Get()
}

// Snapshot returns the current tracking state.
func (e *Engine) Snapshot() (tracker.Snapshot, error) {
	return e.tracker.Snapshot()
}

// Queued returns the pending review batch.
func (e *Engine) Queued() ([]types.Candidate, error) {
	return e.queue.Load()
}

// LastSweep returns the result of the most recent sweep. Its At is zero
// before the first sweep.
func (e *Engine) LastSweep() SweepResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSweep
}

// Sweep selects idle tabs and either closes them (auto-approve) or queues
// them for review. The review surface only takes focus when focus is true.
func (e *Engine) Sweep(ctx context.Context, focus bool) (SweepResult, error) {
	cfg, err := e.settings.Get()
	if err != nil {
		return SweepResult{}, fmt.Errorf("reading settings: %w", err)
	}

	tabs, err := e.tabs.Tabs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing tabs: %w", err)
	}

	snap, err := e.tracker.Snapshot()
	if err != nil {
		return SweepResult{}, fmt.Errorf("reading tracking state: %w", err)
	}

	now := e.now()
	candidates := e.currentSelector().Select(ctx, tabs, snap, cfg, now)
	result := SweepResult{At: now, Candidates: candidates}

	switch {
	case len(candidates) == 0:
		if err := e.queue.Clear(); err != nil {
			return result, fmt.Errorf("clearing review queue: %w", err)
		}
		e.notify(types.EventQueueCleared, nil, "sweep found nothing")

	case cfg.AutoApprove:
		if err := e.closeAndForget(ctx, candidates, manifest.ReasonAuto); err != nil {
			return result, err
		}
		result.AutoClosed = true

	default:
		if err := e.queue.Replace(candidates); err != nil {
			return result, fmt.Errorf("queueing candidates: %w", err)
		}
		e.notify(types.EventQueueReplaced, types.CandidateIDs(candidates), "")
		if err := e.openReview(ctx, focus); err != nil {
			return result, err
		}
	}

	e.mu.Lock()
	e.lastSweep = result
	e.mu.Unlock()

	e.logger.Info("sweep finished",
		"tabs", len(tabs),
		"candidates", len(candidates),
		"autoApprove", cfg.AutoApprove,
	)
	e.notify(types.EventSweepFinished, types.CandidateIDs(candidates), "")
	return result, nil
}

// RunNow sweeps and then brings the review surface to the front, whatever
// the sweep found.
func (e *Engine) RunNow(ctx context.Context) error {
	_, sweepErr := e.Sweep(ctx, false)
	if sweepErr != nil {
		e.logger.Warn("manual sweep failed", "error", sweepErr)
	}
	return errors.Join(sweepErr, e.openReview(ctx, true))
}

// CloseReview closes every queued tab, purges their tracking state and
// empties the queue. It returns the number of tabs closed. An empty queue
// returns 0 without touching the tab directory.
func (e *Engine) CloseReview(ctx context.Context) (int, error) {
	queued, err := e.queue.Load()
	if err != nil {
		return 0, fmt.Errorf("loading review queue: %w", err)
	}

	ids := types.CandidateIDs(queued)
	if len(ids) == 0 {
		return 0, nil
	}

	if err := e.closeAndForget(ctx, queued, manifest.ReasonReview); err != nil {
		return 0, err
	}
	if err := e.queue.Clear(); err != nil {
		return len(ids), fmt.Errorf("clearing review queue: %w", err)
	}
	e.notify(types.EventQueueCleared, nil, "review closed")
	return len(ids), nil
}

// ClearReview discards the pending batch without closing anything.
func (e *Engine) ClearReview() error {
	if err := e.queue.Clear(); err != nil {
		return fmt.Errorf("clearing review queue: %w", err)
	}
	e.notify(types.EventQueueCleared, nil, "review dismissed")
	return nil
}

// ToggleImportant flips the important flag of id and returns the new state.
func (e *Engine) ToggleImportant(id types.TabID) (bool, error) {
	important, err := e.tracker.ToggleImportant(id)
	if err != nil {
		return false, err
	}
	detail := "unmarked"
	if important {
		detail = "marked"
	}
	e.notify(types.EventImportantChanged, []types.TabID{id}, detail)
	return important, nil
}

// UpdateSettings patches the settings. A numeric alarmPeriodMinutes in the
// patch re-arms the sweep alarm.
func (e *Engine) UpdateSettings(patch map[string]any) (settings.Settings, error) {
	next, err := e.settings.Patch(patch)
	if err != nil {
		return settings.Settings{}, err
	}

	if isNumber(patch[settings.FieldAlarmPeriodMinutes]) {
		if err := e.armSweep(next.AlarmPeriodMinutes); err != nil {
			return next, err
		}
	}

	e.notify(types.EventSettingsChanged, nil, "")
	return next, nil
}

// closeAndForget closes the candidates, purges their tracking state and
// records them in the history. A history failure is logged only.
func (e *Engine) closeAndForget(ctx context.Context, cands []types.Candidate, reason manifest.Reason) error {
	ids := types.CandidateIDs(cands)
	if err := e.tabs.Close(ctx, ids); err != nil {
		return fmt.Errorf("closing tabs: %w", err)
	}
	if err := e.tracker.ForgetAll(ids); err != nil {
		return fmt.Errorf("purging closed tabs: %w", err)
	}
	e.logger.Info("closed tabs", "count", len(ids), "reason", reason)

	if e.history != nil {
		if _, err := e.history.LogClose(reason, cands); err != nil {
			e.logger.Warn("recording closed tabs", "error", err)
		}
	}

	e.notify(types.EventTabsClosed, ids, string(reason))
	return nil
}

func (e *Engine) openReview(ctx context.Context, focus bool) error {
	if err := e.review.OpenReview(ctx, focus); err != nil {
		return fmt.Errorf("opening review: %w", err)
	}
	detail := "background"
	if focus {
		detail = "focused"
	}
	e.notify(types.EventReviewOpened, nil, detail)
	return nil
}

func (e *Engine) notify(kind types.EventKind, ids []types.TabID, detail string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(types.Event{
		Kind:   kind,
		Time:   e.now(),
		TabIDs: ids,
		Count:  len(ids),
		Detail: detail,
	})
}
