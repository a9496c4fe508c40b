// Package types defines the tab and candidate types shared by the declutter
// engine, the daemon and the CLI.
package types

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// TabID identifies a tab for as long as it is open. Ids are never reused
// while the browser session lives.
type TabID string

// Tab is a live tab as reported by the tab directory.
type Tab struct {
	ID         TabID
	WindowID   string
	Title      string
	URL        string
	FavIconURL string
	Active     bool // active tab in its window
	Pinned     bool

	// LastAccessed is the directory's own last-accessed hint in epoch
	// milliseconds. Zero means unknown.
	LastAccessed int64
}

// Candidate is a tab judged idle and unexempt, eligible for closing.
type Candidate struct {
	ID          TabID  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	FavIconURL  string `json:"favIconUrl" yaml:"favicon_url"`
	IdleMinutes int64  `json:"idleMinutes" yaml:"idle_minutes"`
}

// IdleFor returns the idle time as a duration.
func (c Candidate) IdleFor() time.Duration {
	return time.Duration(c.IdleMinutes) * time.Minute
}

// HumanIdle returns a rough human-readable idle time, e.g. "2 hours ago".
func (c Candidate) HumanIdle(now time.Time) string {
	return humanize.RelTime(now.Add(-c.IdleFor()), now, "ago", "from now")
}

// CandidateIDs returns the ids of the given candidates in order.
func CandidateIDs(cands []Candidate) []TabID {
	ids := make([]TabID, 0, len(cands))
	for _, c := range cands {
		if c.ID == "" {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

// TabIDFromNumber formats a numeric tab id the way it is keyed in storage.
func TabIDFromNumber(n float64) TabID {
	return TabID(strconv.FormatFloat(n, 'f', -1, 64))
}

// TabDirectory enumerates and closes tabs.
type TabDirectory interface {
	// Tabs returns all open tabs in enumeration order.
	Tabs(ctx context.Context) ([]Tab, error)

	// Close closes the given tabs. Ids that are already gone are ignored.
	Close(ctx context.Context, ids []TabID) error
}

// MediaProbe reports whether a tab is currently playing video.
type MediaProbe interface {
	IsPlaying(ctx context.Context, tab Tab) (bool, error)
}

// ReviewSurface shows the pending review batch to the user.
type ReviewSurface interface {
	// OpenReview surfaces the existing review page or creates one. Focus is
	// only taken when focus is true.
	OpenReview(ctx context.Context, focus bool) error
}

// EpochMillis converts a time to epoch milliseconds.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// Records is the persistent key-value store. Each record is read and written
// wholesale.
type Records interface {
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
	Delete(key string) error
}

// Alarms arms named recurring timers. Arming an existing name replaces its
// period.
type Alarms interface {
	Arm(name string, period time.Duration) error
}

// ParseTabID normalises a tab id as it arrives over a transport: strings
// are taken as-is and numbers are formatted in decimal.
func ParseTabID(v any) (TabID, bool) {
	switch id := v.(type) {
	case string:
		return TabID(id), id != ""
	case TabID:
		return id, id != ""
	case float64:
		return TabIDFromNumber(id), true
	case float32:
		return TabIDFromNumber(float64(id)), true
	case int:
		return TabID(strconv.Itoa(id)), true
	case int64:
		return TabID(strconv.FormatInt(id, 10)), true
	case json.Number:
		return TabID(id.String()), true
	default:
		return "", false
	}
}

// EventKind names something the engine did.
type EventKind string

// Engine event kinds.
const (
	EventSweepFinished    EventKind = "sweep_finished"
	EventQueueReplaced    EventKind = "queue_replaced"
	EventQueueCleared     EventKind = "queue_cleared"
	EventTabsClosed       EventKind = "tabs_closed"
	EventReviewOpened     EventKind = "review_opened"
	EventSettingsChanged  EventKind = "settings_changed"
	EventImportantChanged EventKind = "important_changed"
)

// Event is a notification published by the engine.
type Event struct {
	Kind   EventKind `json:"kind" yaml:"kind"`
	Time   time.Time `json:"time" yaml:"time"`
	TabIDs []TabID   `json:"tabIds,omitempty" yaml:"tab_ids,omitempty"`
	Count  int       `json:"count" yaml:"count"`
	Detail string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Notifier receives engine events. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}
