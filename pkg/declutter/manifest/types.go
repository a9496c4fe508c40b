// Package manifest keeps a record of the tabs declutter closed, one JSON
// file per close operation.
package manifest

import (
	"time"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Reason says why tabs were closed.
type Reason string

const (
	// ReasonReview marks tabs closed from the review batch.
	ReasonReview Reason = "review"
	// ReasonAuto marks tabs closed by a sweep with auto-approve on.
	ReasonAuto Reason = "auto"
)

// Entry is one close operation.
type Entry struct {
	ID        string      `json:"id" yaml:"id"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Reason    Reason      `json:"reason" yaml:"reason"`
	Tabs      []TabRecord `json:"tabs" yaml:"tabs"`
	Summary   Summary     `json:"summary" yaml:"summary"`
}

// TabRecord is a closed tab.
type TabRecord struct {
	ID          types.TabID `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	URL         string      `json:"url" yaml:"url"`
	FavIconURL  string      `json:"favicon_url,omitempty" yaml:"favicon_url,omitempty"`
	IdleMinutes int64       `json:"idle_minutes" yaml:"idle_minutes"`
}

// Summary totals an entry.
type Summary struct {
	TotalTabs        int   `json:"total_tabs" yaml:"total_tabs"`
	TotalIdleMinutes int64 `json:"total_idle_minutes" yaml:"total_idle_minutes"`
}
