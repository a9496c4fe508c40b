package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/declutter/pkg/declutter/manifest"
)

// maxHistoryTabs caps the tabs listed by FormatHistoryEntry in pretty mode.
const maxHistoryTabs = 50

// FormatHistory writes a list of closed-tab history entries.
func FormatHistory(w *bytes.Buffer, format string, entries []manifest.Entry, now time.Time) error {
	if entries == nil {
		entries = []manifest.Entry{}
	}
	switch format {
	case "json":
		return encodeJSON(w, entries)
	case "yaml":
		return encodeYAML(w, entries)
	case "pretty":
		if len(entries) == 0 {
			w.WriteString(MutedStyle.Render("  No tabs closed yet") + "\n")
			return nil
		}
		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"ID", "WHEN", "REASON", "TABS", "IDLE"})
		for _, e := range entries {
			tw.AppendRow(table.Row{
				e.ID,
				relative(e.Timestamp, now),
				string(e.Reason),
				e.Summary.TotalTabs,
				(time.Duration(e.Summary.TotalIdleMinutes) * time.Minute).String(),
			})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
			{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		})
		w.WriteString(tw.Render())
		w.WriteString("\n")
		return nil
	default:
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.Timestamp.Format(time.RFC3339), e.Reason, e.Summary.TotalTabs)
		}
		return nil
	}
}

// FormatHistoryEntry writes one entry with its tabs.
func FormatHistoryEntry(w *bytes.Buffer, format string, e *manifest.Entry) error {
	switch format {
	case "json":
		return encodeJSON(w, e)
	case "yaml":
		return encodeYAML(w, e)
	case "pretty":
		lines := []string{
			TitleStyle.Render("Closed tabs"),
			field("ID:", e.ID),
			field("When:", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST")),
			field("Reason:", string(e.Reason)),
			field("Tabs:", fmt.Sprintf("%d", e.Summary.TotalTabs)),
		}
		w.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
		w.WriteString("\n")
		if len(e.Tabs) == 0 {
			return nil
		}

		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"TITLE", "URL", "IDLE"})
		shown := e.Tabs[:min(len(e.Tabs), maxHistoryTabs)]
		for _, tab := range shown {
			tw.AppendRow(table.Row{tab.Title, tab.URL, (time.Duration(tab.IdleMinutes) * time.Minute).String()})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: maxTitleWidth, WidthMaxEnforcer: text.Trim},
			{Number: 2, WidthMax: maxURLWidth, WidthMaxEnforcer: text.Trim},
			{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		})
		w.WriteString(tw.Render())
		w.WriteString("\n")
		if rest := len(e.Tabs) - len(shown); rest > 0 {
			w.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", rest)) + "\n")
		}
		return nil
	default:
		for _, tab := range e.Tabs {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", tab.ID, tab.IdleMinutes, tab.URL, tab.Title)
		}
		return nil
	}
}

func encodeJSON(w *bytes.Buffer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func encodeYAML(w *bytes.Buffer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
