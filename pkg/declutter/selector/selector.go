// Package selector picks the idle, non-exempt tabs that a sweep may close.
package selector

import (
	"context"
	"math"
	"time"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/tracker"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// DefaultMediaPatterns match the streaming sites whose tabs are probed for
// playing video before being selected.
var DefaultMediaPatterns = []string{"*youtube.com*"}

// DefaultProbeTimeout bounds a single media probe round-trip.
const DefaultProbeTimeout = 2 * time.Second

// UntitledTitle is shown for tabs with neither a title nor a URL.
const UntitledTitle = "(untitled)"

// Reason says why a tab was left out of the candidate list.
type Reason int

// Exemption reasons in the order they are checked.
const (
	Eligible Reason = iota
	ExemptActive
	ExemptImportant
	ExemptPinned
	ExemptRecent
	ExemptPlaying
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case Eligible:
		return "eligible"
	case ExemptActive:
		return "active"
	case ExemptImportant:
		return "important"
	case ExemptPinned:
		return "pinned"
	case ExemptRecent:
		return "recent"
	case ExemptPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Selector computes sweep candidates.
type Selector struct {
	patterns     []glob.Glob
	probe        types.MediaProbe
	probeTimeout time.Duration
}

// Option configures a Selector.
type Option func(*Selector)

// WithMediaPatterns sets the URL glob patterns that trigger a media probe.
// Invalid patterns are skipped.
func WithMediaPatterns(patterns ...string) Option {
	return func(s *Selector) {
		s.patterns = compilePatterns(patterns)
	}
}

// WithProbe sets the media probe. Without one no tab is considered playing.
func WithProbe(p types.MediaProbe) Option {
	return func(s *Selector) {
		s.probe = p
	}
}

// WithProbeTimeout bounds each probe call. Non-positive values keep the default.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// New creates a selector.
// Default values:
//   - media patterns: DefaultMediaPatterns
//   - probe timeout: DefaultProbeTimeout
func New(opts ...Option) *Selector {
	s := &Selector{
		patterns:     compilePatterns(DefaultMediaPatterns),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the candidates among tabs, in tab enumeration order.
func (s *Selector) Select(ctx context.Context, tabs []types.Tab, snap tracker.Snapshot, cfg settings.Settings, now time.Time) []types.Candidate {
	log := logging.Get("selector")
	nowMs := now.UnixMilli()
	thresholdMs := cfg.ThresholdMillis()

	candidates := make([]types.Candidate, 0)
	for _, tab := range tabs {
		if tab.ID == "" {
			continue
		}

		idleMs := IdleMillis(tab, snap, nowMs)
		if reason := s.Check(ctx, tab, snap, idleMs, thresholdMs); reason != Eligible {
			log.Debug("tab exempt", "tab", tab.ID, "reason", reason.String())
			continue
		}

		candidates = append(candidates, toCandidate(tab, idleMs))
	}
	return candidates
}

// Check applies the exemption rules in precedence order and returns the
// first that matches, or Eligible.
func (s *Selector) Check(ctx context.Context, tab types.Tab, snap tracker.Snapshot, idleMs, thresholdMs int64) Reason {
	switch {
	case tab.Active:
		return ExemptActive
	case snap.Important[tab.ID]:
		return ExemptImportant
	case tab.Pinned:
		return ExemptPinned
	case idleMs < thresholdMs:
		return ExemptRecent
	case s.isMedia(tab.URL) && s.isPlaying(ctx, tab):
		return ExemptPlaying
	default:
		return Eligible
	}
}

// IdleMillis returns how long tab has been idle. The tracked activity wins,
// then the directory's hint; with neither the tab counts as just seen.
func IdleMillis(tab types.Tab, snap tracker.Snapshot, nowMs int64) int64 {
	lastSeen, ok := snap.LastActive[tab.ID]
	if !ok {
		lastSeen = tab.LastAccessed
	}
	if lastSeen == 0 {
		lastSeen = nowMs
	}
	return nowMs - lastSeen
}

// isMedia reports whether url belongs to a probed streaming site.
func (s *Selector) isMedia(url string) bool {
	if url == "" {
		return false
	}
	for _, g := range s.patterns {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// isPlaying asks the probe and treats every failure as not playing.
func (s *Selector) isPlaying(ctx context.Context, tab types.Tab) bool {
	if s.probe == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	playing, err := s.probe.IsPlaying(probeCtx, tab)
	if err != nil {
		logging.Get("selector").Debug("media probe failed, assuming not playing", "tab", tab.ID, "error", err)
		return false
	}
	return playing
}

func toCandidate(tab types.Tab, idleMs int64) types.Candidate {
	title := tab.Title
	if title == "" {
		title = tab.URL
	}
	if title == "" {
		title = UntitledTitle
	}

	return types.Candidate{
		ID:          tab.ID,
		Title:       title,
		URL:         tab.URL,
		FavIconURL:  tab.FavIconURL,
		IdleMinutes: RoundMinutes(idleMs),
	}
}

// RoundMinutes converts milliseconds to whole minutes, halves rounding up.
func RoundMinutes(ms int64) int64 {
	return int64(math.Floor(float64(ms)/60000 + 0.5))
}

func compilePatterns(patterns []string) []glob.Glob {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			logging.Get("selector").Warn("skipping invalid media pattern", "pattern", p, "error", err)
			continue
		}
		compiled = append(compiled, g)
	}
	return compiled
}
