package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// WorkflowType identifies a family of versioned workflow graphs.
type WorkflowType string

const (
	WorkflowPrecrafter WorkflowType = "precrafter"
	WorkflowCrafter    WorkflowType = "crafter"
)

// ParseWorkflowType rejects anything but the known workflow types.
func ParseWorkflowType(s string) (WorkflowType, error) {
	switch t := WorkflowType(s); t {
	case WorkflowPrecrafter, WorkflowCrafter:
		return t, nil
	}
	return "", eris.Wrapf(ErrInvalidWorkflowType, "model: workflow type %q", s)
}

// Graph is the node/edge content of a workflow version. Nodes stay raw here;
// the workflow package decodes them into typed nodes when executing.
type Graph struct {
	Nodes []json.RawMessage `json:"nodes" yaml:"nodes"`
	Edges []json.RawMessage `json:"edges" yaml:"edges"`
}

// WorkflowVersion is an immutable snapshot of a workflow graph.
type WorkflowVersion struct {
	ID        string       `json:"id"`
	Type      WorkflowType `json:"type"`
	Version   int          `json:"version"`
	Content   Graph        `json:"content"`
	Label     string       `json:"label,omitempty"`
	Folder    string       `json:"folder,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// NodeStatus is the outcome of a single node within a run.
type NodeStatus string

const (
	NodeSuccess NodeStatus = "success"
	NodeError   NodeStatus = "error"
)

// NodeResult records one node's outcome within a run.
type NodeResult struct {
	NodeID string     `json:"nodeId"`
	Type   string     `json:"type"`
	Status NodeStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// WorkflowRun is the append-only audit record of one execution.
type WorkflowRun struct {
	ID              string          `json:"id"`
	Type            WorkflowType    `json:"type"`
	Status          RunStatus       `json:"status"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	DurationMs      int64           `json:"duration_ms"`
	Results         json.RawMessage `json:"results"`
	WorkflowVersion int             `json:"workflow_version"`
}
