package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Column width caps for the candidate table.
const (
	maxTitleWidth = 48
	maxURLWidth   = 60
)

// PrettyFormatter renders boxes and rounded tables for a terminal.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Status != nil {
		w.WriteString(f.formatStatus(r.Status, r.now()))
		w.WriteString("\n")
	}
	if r.Settings != nil {
		w.WriteString(f.formatSettings(*r.Settings))
		w.WriteString("\n")
	}
	if r.Candidates != nil {
		w.WriteString(f.formatCandidates(r.Candidates, r.now()))
		w.WriteString(f.formatFooter(r.Candidates))
		w.WriteString("\n")
	}
	return nil
}

func (f *PrettyFormatter) formatStatus(st *declutterv1.DaemonStatus, now time.Time) string {
	var lines []string

	state := ErrorStyle.Render("stopped")
	if st.Running {
		state = SuccessStyle.Render("running")
	}
	lines = append(lines, field("Daemon:", fmt.Sprintf("%s (pid %d)", state, st.PID)))
	lines = append(lines, field("Uptime:", (time.Duration(st.UptimeSeconds)*time.Second).String())+"  "+
		field("Memory:", humanize.IBytes(uint64(max(st.MemoryBytes, 0)))))

	browser := MutedStyle.Render("detached")
	if st.BrowserConnected {
		browser = SuccessStyle.Render("connected")
	}
	lines = append(lines, field("Browser:", browser))
	lines = append(lines, field("Tabs:", fmt.Sprintf("%d tracked, %d important, %d queued",
		st.TrackedTabs, st.ImportantTabs, st.QueuedCandidates)))

	sweep := field("Last sweep:", relative(st.LastSweep, now))
	if !st.NextSweep.IsZero() {
		sweep += "  " + field("Next:", relative(st.NextSweep, now))
	}
	if st.SweepPeriod != "" {
		sweep += "  " + field("Every:", st.SweepPeriod)
	}
	lines = append(lines, sweep)

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatSettings(s settings.Settings) string {
	lines := []string{
		TitleStyle.Render("Settings"),
		field("Threshold:", humanize.FtoaWithDigits(s.ThresholdMinutes, 2)+" min"),
		field("Auto-approve:", fmt.Sprintf("%t", s.AutoApprove)),
		field("Sweep every:", humanize.FtoaWithDigits(s.AlarmPeriodMinutes, 2)+" min"),
	}
	for _, k := range sortedKeys(s.Extra) {
		lines = append(lines, field(k+":", fmt.Sprintf("%v", s.Extra[k])))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatCandidates(cands []types.Candidate, now time.Time) string {
	if len(cands) == 0 {
		return MutedStyle.Render("  No tabs waiting for review") + "\n"
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "TITLE", "URL", "IDLE"})
	for _, c := range cands {
		tw.AppendRow(table.Row{string(c.ID), c.Title, c.URL, c.HumanIdle(now)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, WidthMax: maxTitleWidth, WidthMaxEnforcer: text.Trim},
		{Number: 3, WidthMax: maxURLWidth, WidthMaxEnforcer: text.Trim},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render() + "\n"
}

func (f *PrettyFormatter) formatFooter(cands []types.Candidate) string {
	var idle int64
	for _, c := range cands {
		idle += c.IdleMinutes
	}
	parts := []string{
		field("Candidates:", fmt.Sprintf("%d", len(cands))),
		field("Idle total:", (time.Duration(idle) * time.Minute).String()),
		MutedStyle.Render("declutter review close to close them"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

// relative renders t relative to now, or "never" for the zero time.
func relative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
