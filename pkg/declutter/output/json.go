package output

import (
	"bytes"
	"time"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// document is the shared shape of the json and yaml outputs.
type document struct {
	Candidates *[]types.Candidate `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Settings   map[string]any     `json:"settings,omitempty" yaml:"settings,omitempty"`
	Status     *statusDoc         `json:"status,omitempty" yaml:"status,omitempty"`
}

type statusDoc struct {
	Running          bool       `json:"running" yaml:"running"`
	PID              int        `json:"pid" yaml:"pid"`
	Uptime           string     `json:"uptime" yaml:"uptime"`
	MemoryBytes      int64      `json:"memory_bytes" yaml:"memory_bytes"`
	BrowserConnected bool       `json:"browser_connected" yaml:"browser_connected"`
	TrackedTabs      int        `json:"tracked_tabs" yaml:"tracked_tabs"`
	ImportantTabs    int        `json:"important_tabs" yaml:"important_tabs"`
	QueuedCandidates int        `json:"queued_candidates" yaml:"queued_candidates"`
	LastSweep        *time.Time `json:"last_sweep,omitempty" yaml:"last_sweep,omitempty"`
	NextSweep        *time.Time `json:"next_sweep,omitempty" yaml:"next_sweep,omitempty"`
	SweepPeriod      string     `json:"sweep_period,omitempty" yaml:"sweep_period,omitempty"`
	Subscribers      int        `json:"subscribers" yaml:"subscribers"`
}

func buildDocument(r *Report) document {
	var doc document
	if r.Candidates != nil {
		doc.Candidates = &r.Candidates
	}
	if r.Settings != nil {
		doc.Settings = r.Settings.ToMap()
	}
	if st := r.Status; st != nil {
		doc.Status = &statusDoc{
			Running:          st.Running,
			PID:              st.PID,
			Uptime:           (time.Duration(st.UptimeSeconds) * time.Second).String(),
			MemoryBytes:      st.MemoryBytes,
			BrowserConnected: st.BrowserConnected,
			TrackedTabs:      st.TrackedTabs,
			ImportantTabs:    st.ImportantTabs,
			QueuedCandidates: st.QueuedCandidates,
			LastSweep:        optionalTime(st.LastSweep),
			NextSweep:        optionalTime(st.NextSweep),
			SweepPeriod:      st.SweepPeriod,
			Subscribers:      st.Subscribers,
		}
	}
	return doc
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// JSONFormatter writes one indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	return encodeJSON(w, buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
