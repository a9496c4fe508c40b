// Package tracker keeps per-tab activity timestamps and the important-tab set.
//
// Both maps are keyed by tab id and stay in lock-step with the live tab
// directory: a removed tab loses its entries in both, and a removal is final
// for that id.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Snapshot is a point-in-time copy of the tracking state.
type Snapshot struct {
	LastActive map[types.TabID]int64
	Important  map[types.TabID]bool
}

// Tracker maintains last-active timestamps and important flags.
type Tracker struct {
	mu      sync.Mutex
	records types.Records
	now     func() time.Time

	// removed holds ids the tab directory confirmed closed. Tab ids are not
	// reused within a browser session, so a touch for one of these is stale.
	removed map[types.TabID]struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a tracker over records.
func New(records types.Records, opts ...Option) *Tracker {
	t := &Tracker{
		records: records,
		now:     time.Now,
		removed: make(map[types.TabID]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Touch stamps now as the last activity of id.
func (t *Tracker) Touch(id types.TabID) error {
	if id == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, gone := t.removed[id]; gone {
		logging.Get("engine").Debug("ignoring activity for removed tab", "tab", id)
		return nil
	}

	lastActive, err := t.loadActivity()
	if err != nil {
		return err
	}
	lastActive[string(id)] = t.now().UnixMilli()
	return t.records.Put(store.KeyLastActive, lastActive)
}

// Forget drops id from both maps. It is a no-op for unknown ids.
func (t *Tracker) Forget(id types.TabID) error {
	return t.ForgetAll([]types.TabID{id})
}

// ForgetAll drops every id from both maps and marks them removed.
func (t *Tracker) ForgetAll(ids []types.TabID) error {
	if len(ids) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lastActive, err := t.loadActivity()
	if err != nil {
		return err
	}
	important, err := t.loadImportant()
	if err != nil {
		return err
	}

	for _, id := range ids {
		t.removed[id] = struct{}{}
		delete(lastActive, string(id))
		delete(important, string(id))
	}

	if err := t.records.Put(store.KeyLastActive, lastActive); err != nil {
		return err
	}
	return t.records.Put(store.KeyImportant, important)
}

// IsImportant reports whether id is in the important set.
func (t *Tracker) IsImportant(id types.TabID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	important, err := t.loadImportant()
	if err != nil {
		return false, err
	}
	return important[string(id)], nil
}

// ToggleImportant flips the important flag of id and returns the new state.
func (t *Tracker) ToggleImportant(id types.TabID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	important, err := t.loadImportant()
	if err != nil {
		return false, err
	}

	key := string(id)
	if important[key] {
		delete(important, key)
	} else {
		important[key] = true
	}

	if err := t.records.Put(store.KeyImportant, important); err != nil {
		return false, err
	}
	return important[key], nil
}

// Snapshot returns copies of both maps.
func (t *Tracker) Snapshot() (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastActive, err := t.loadActivity()
	if err != nil {
		return Snapshot{}, err
	}
	important, err := t.loadImportant()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		LastActive: make(map[types.TabID]int64, len(lastActive)),
		Important:  make(map[types.TabID]bool, len(important)),
	}
	for k, v := range lastActive {
		snap.LastActive[types.TabID(k)] = v
	}
	for k, v := range important {
		if v {
			snap.Important[types.TabID(k)] = true
		}
	}
	return snap, nil
}

func (t *Tracker) loadActivity() (map[string]int64, error) {
	lastActive := make(map[string]int64)
	if _, err := t.records.Get(store.KeyLastActive, &lastActive); err != nil {
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	if lastActive == nil {
		lastActive = make(map[string]int64)
	}
	return lastActive, nil
}

func (t *Tracker) loadImportant() (map[string]bool, error) {
	important := make(map[string]bool)
	if _, err := t.records.Get(store.KeyImportant, &important); err != nil {
		return nil, fmt.Errorf("loading important tabs: %w", err)
	}
	if important == nil {
		important = make(map[string]bool)
	}
	return important, nil
}
