package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-studio/internal/model"
)

func results(statuses ...model.NodeStatus) json.RawMessage {
	nodes := make([]model.NodeResult, len(statuses))
	for i, s := range statuses {
		nodes[i] = model.NodeResult{NodeID: "n", Type: "JSON", Status: s}
	}
	b, _ := json.Marshal(map[string]any{"nodes": nodes, "context": map[string]any{}})
	return b
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.WorkflowRun{
		{
			ID:              "abc12345-6789-0000-0000-000000000000",
			Type:            model.WorkflowPrecrafter,
			Status:          model.RunStatusCompleted,
			StartTime:       now,
			DurationMs:      2500,
			Results:         results(model.NodeSuccess, model.NodeSuccess),
			WorkflowVersion: 4,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			Type:       model.WorkflowPrecrafter,
			Status:     model.RunStatusFailed,
			StartTime:  now.Add(-1 * time.Hour),
			DurationMs: 900,
			Results:    results(model.NodeSuccess, model.NodeError),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "VERSION")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "v4")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "3s")
}

func TestNodeCounts(t *testing.T) {
	total, failed := nodeCounts(results(model.NodeSuccess, model.NodeError, model.NodeError))
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, failed)

	total, failed = nodeCounts(json.RawMessage(`[]`))
	assert.Zero(t, total)
	assert.Zero(t, failed)

	total, failed = nodeCounts(nil)
	assert.Zero(t, total)
	assert.Zero(t, failed)
}

func TestRunsStats(t *testing.T) {
	runs := []model.WorkflowRun{
		{ID: "1", Status: model.RunStatusCompleted, DurationMs: 120000, Results: results(model.NodeSuccess)},
		{ID: "2", Status: model.RunStatusCompleted, DurationMs: 180000, Results: results(model.NodeSuccess, model.NodeSuccess)},
		{ID: "3", Status: model.RunStatusFailed, DurationMs: 5000, Results: results(model.NodeError)},
		{ID: "4", Status: model.RunStatusRunning},
	}

	stats := computeRunStats(runs)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Other)
	assert.Equal(t, 4, stats.NodesRun)
	assert.Equal(t, 1, stats.NodesFailed)
	// Average duration of the 2 completed runs: (120s + 180s) / 2 = 150s.
	assert.InDelta(t, 150.0, stats.AvgDurSecs, 0.1)

	var buf bytes.Buffer
	formatRunStats(&buf, stats)

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Completed:")
	assert.Contains(t, output, "Failed:")
	assert.Contains(t, output, "Errored:")
	assert.Contains(t, output, "150.0s")
}

func TestFormatVersionList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	versions := []model.WorkflowVersion{
		{ID: "11112222-3333", Version: 2, Label: "tuned", Folder: "outreach", CreatedAt: now},
		{ID: "44445555-6666", Version: 1, CreatedAt: now.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	formatVersionList(&buf, versions)

	output := buf.String()
	assert.Contains(t, output, "v2")
	assert.Contains(t, output, "11112222")
	assert.Contains(t, output, "tuned")
	assert.Contains(t, output, "outreach")
	assert.Contains(t, output, "v1")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
