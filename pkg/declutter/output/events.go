package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// FormatEvent writes one engine event as a single line. json and yaml
// produce one compact JSON object per line so the stream stays parseable;
// pretty adds color.
func FormatEvent(w *bytes.Buffer, format string, ev types.Event) error {
	switch format {
	case "json", "yaml":
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
		return nil
	case "pretty":
		w.WriteString(MutedStyle.Render(ev.Time.Format(time.TimeOnly)))
		w.WriteString(" ")
		w.WriteString(eventStyle(ev.Kind).Render(fmt.Sprintf("%-17s", ev.Kind)))
		w.WriteString(" ")
		w.WriteString(eventSummary(ev))
		w.WriteByte('\n')
		return nil
	default:
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Time.Format(time.RFC3339), ev.Kind, eventSummary(ev))
		return nil
	}
}

func eventSummary(ev types.Event) string {
	var parts []string
	if ev.Count > 0 || len(ev.TabIDs) > 0 {
		parts = append(parts, fmt.Sprintf("count=%d", ev.Count))
	}
	if len(ev.TabIDs) > 0 {
		ids := make([]string, len(ev.TabIDs))
		for i, id := range ev.TabIDs {
			ids[i] = string(id)
		}
		parts = append(parts, "tabs="+strings.Join(ids, ","))
	}
	if ev.Detail != "" {
		parts = append(parts, ev.Detail)
	}
	return strings.Join(parts, " ")
}

func eventStyle(kind types.EventKind) lipgloss.Style {
	switch kind {
	case types.EventTabsClosed:
		return WarningStyle
	case types.EventQueueReplaced, types.EventReviewOpened:
		return TitleStyle
	case types.EventSweepFinished:
		return SuccessStyle
	default:
		return LabelStyle
	}
}
