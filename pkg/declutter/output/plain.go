package output

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"
)

// PlainFormatter writes aligned, unstyled columns for scripting.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if st := r.Status; st != nil {
		fmt.Fprintf(tw, "running\t%t\n", st.Running)
		fmt.Fprintf(tw, "pid\t%d\n", st.PID)
		fmt.Fprintf(tw, "uptime\t%s\n", time.Duration(st.UptimeSeconds)*time.Second)
		fmt.Fprintf(tw, "browser_connected\t%t\n", st.BrowserConnected)
		fmt.Fprintf(tw, "tracked_tabs\t%d\n", st.TrackedTabs)
		fmt.Fprintf(tw, "important_tabs\t%d\n", st.ImportantTabs)
		fmt.Fprintf(tw, "queued_candidates\t%d\n", st.QueuedCandidates)
		fmt.Fprintf(tw, "last_sweep\t%s\n", plainTime(st.LastSweep))
		fmt.Fprintf(tw, "next_sweep\t%s\n", plainTime(st.NextSweep))
	}

	if s := r.Settings; s != nil {
		m := s.ToMap()
		for _, k := range sortedKeys(m) {
			fmt.Fprintf(tw, "%s\t%v\n", k, m[k])
		}
	}

	if r.Candidates != nil {
		if _, err := tw.Write([]byte("ID\tIDLE_MIN\tURL\tTITLE\n")); err != nil {
			return err
		}
		for _, c := range r.Candidates {
			line := string(c.ID) + "\t" + strconv.FormatInt(c.IdleMinutes, 10) + "\t" + c.URL + "\t" + c.Title + "\n"
			if _, err := tw.Write([]byte(line)); err != nil {
				return err
			}
		}
	}

	return tw.Flush()
}

func plainTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
