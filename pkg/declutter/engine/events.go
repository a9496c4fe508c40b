package engine

import (
	"context"

	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// TabChange describes a tab update as reported by the browser.
type TabChange struct {
	// Status is the load status; "complete" marks a finished load.
	Status string

	// URL is set when the tab navigated.
	URL string
}

// StatusComplete is the load status of a finished page load.
const StatusComplete = "complete"

// OnTabActivated records activity for a tab that became active.
func (e *Engine) OnTabActivated(id types.TabID) error {
	return e.tracker.Touch(id)
}

// OnTabUpdated records activity when a tab finished loading or navigated.
// Other updates are ignored.
func (e *Engine) OnTabUpdated(id types.TabID, change TabChange) error {
	if change.Status != StatusComplete && change.URL == "" {
		return nil
	}
	return e.tracker.Touch(id)
}

// OnTabRemoved drops all tracking state of a closed tab.
func (e *Engine) OnTabRemoved(id types.TabID) error {
	return e.tracker.Forget(id)
}

// OnTimerFired sweeps when the sweep alarm fires. Other alarms are ignored.
// Failures are logged; the alarm keeps running.
func (e *Engine) OnTimerFired(ctx context.Context, name string) {
	if name != scheduler.SweepAlarm {
		return
	}
	if _, err := e.Sweep(ctx, false); err != nil {
		e.logger.Error("scheduled sweep failed", "error", err)
	}
}
