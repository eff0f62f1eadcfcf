package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/lead-studio/internal/model"
)

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	Completed   int
	Failed      int
	Other       int
	NodesRun    int
	NodesFailed int
	AvgDurSecs  float64
}

// nodeCounts reads how many nodes a run executed and how many errored from
// its results document. Unreadable results count as zero.
func nodeCounts(results json.RawMessage) (total, failed int) {
	var doc struct {
		Nodes []model.NodeResult `json:"nodes"`
	}
	if len(results) == 0 || json.Unmarshal(results, &doc) != nil {
		return 0, 0
	}
	for _, n := range doc.Nodes {
		if n.Status == model.NodeError {
			failed++
		}
	}
	return len(doc.Nodes), failed
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.WorkflowRun) runStats {
	var s runStats
	s.Total = len(runs)

	var totalMs int64
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
			totalMs += r.DurationMs
			durCount++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Other++
		}
		n, f := nodeCounts(r.Results)
		s.NodesRun += n
		s.NodesFailed += f
	}

	if durCount > 0 {
		s.AvgDurSecs = float64(totalMs) / 1000 / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.WorkflowRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVERSION\tSTATUS\tNODES\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-----\t------\t-------\t--------")

	for _, r := range runs {
		dur := (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second).String()
		version := "-"
		if r.WorkflowVersion > 0 {
			version = fmt.Sprintf("v%d", r.WorkflowVersion)
		}
		nodes, failed := nodeCounts(r.Results)

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			version,
			r.Status,
			nodes,
			failed,
			r.StartTime.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Other:\t%d\n", s.Other)
	_, _ = fmt.Fprintf(w, "Nodes run:\t%d\n", s.NodesRun)
	_, _ = fmt.Fprintf(w, "  Errored:\t%d\n", s.NodesFailed)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// formatVersionList writes a tabular list of workflow versions to w.
func formatVersionList(out io.Writer, versions []model.WorkflowVersion) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tID\tLABEL\tFOLDER\tCREATED")
	for _, v := range versions {
		_, _ = fmt.Fprintf(w, "v%d\t%s\t%s\t%s\t%s\n",
			v.Version,
			truncateID(v.ID),
			v.Label,
			v.Folder,
			v.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
