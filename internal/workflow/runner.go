package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/model"
)

// NodeRunner executes a single node.
type NodeRunner interface {
	Execute(ctx context.Context, n Node, rc *RunContext) (*Result, error)
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.WorkflowRun) error
}

// Seed is a context entry supplied by the caller before the run starts.
// The seeded node is not executed.
type Seed struct {
	Node  NodeID
	Entry Entry
}

// RunSpec describes one run.
type RunSpec struct {
	Type    model.WorkflowType
	Version int
	Nodes   []Node
	Seeds   []Seed
	// Exclude lists node kinds this run skips.
	Exclude []Kind
	// Status is recorded on the run. Empty means completed, even when some
	// nodes failed.
	Status model.RunStatus
}

// Outcome is the result of a run.
type Outcome struct {
	Run     *model.WorkflowRun
	Nodes   []model.NodeResult
	Context *RunContext
}

// Succeeded counts nodes that ran without error.
func (o *Outcome) Succeeded() int {
	n := 0
	for _, r := range o.Nodes {
		if r.Status == model.NodeSuccess {
			n++
		}
	}
	return n
}

// runResults is the stored results document of a run.
type runResults struct {
	Nodes   []model.NodeResult `json:"nodes"`
	Context *RunContext        `json:"context"`
}

// Runner executes node lists in order and records the run.
type Runner struct {
	exec NodeRunner
	runs RunStore
	now  func() time.Time
}

// NewRunner returns a Runner. A nil runs store skips persistence.
func NewRunner(exec NodeRunner, runs RunStore) *Runner {
	return &Runner{exec: exec, runs: runs, now: time.Now}
}

// Run executes every node that is neither seeded nor excluded, in list
// order. A failing node is recorded and the run continues.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Outcome, error) {
	start := r.now().UTC()
	rc := NewRunContext()
	for _, s := range spec.Seeds {
		if err := rc.Set(s.Node, s.Entry); err != nil {
			return nil, err
		}
	}

	excluded := make(map[Kind]bool, len(spec.Exclude))
	for _, k := range spec.Exclude {
		excluded[k] = true
	}

	log := zap.L().With(zap.String("workflow", string(spec.Type)), zap.Int("version", spec.Version))
	results := make([]model.NodeResult, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "workflow: run cancelled")
		}
		if rc.Has(n.ID()) || excluded[n.Kind()] {
			continue
		}

		res := model.NodeResult{NodeID: string(n.ID()), Type: n.TypeName(), Status: model.NodeSuccess}
		out, err := r.exec.Execute(ctx, n, rc)
		if err == nil {
			input := out.Input
			if input == nil {
				input = n.Definition()
			}
			err = rc.Set(n.ID(), Entry{Input: input, Output: out.Output})
		}
		if err != nil {
			res.Status = model.NodeError
			res.Error = err.Error()
			log.Warn("workflow: node failed", zap.String("node", string(n.ID())), zap.String("type", n.TypeName()), zap.Error(err))
		} else {
			log.Debug("workflow: node completed", zap.String("node", string(n.ID())), zap.String("type", n.TypeName()))
		}
		results = append(results, res)
	}

	end := r.now().UTC()
	status := spec.Status
	if status == "" {
		status = model.RunStatusCompleted
	}
	blob, err := json.Marshal(runResults{Nodes: results, Context: rc})
	if err != nil {
		return nil, eris.Wrap(err, "workflow: marshal run results")
	}
	run := &model.WorkflowRun{
		Type:            spec.Type,
		Status:          status,
		StartTime:       start,
		EndTime:         end,
		DurationMs:      end.Sub(start).Milliseconds(),
		Results:         blob,
		WorkflowVersion: spec.Version,
	}

	out := &Outcome{Run: run, Nodes: results, Context: rc}
	if r.runs != nil {
		if err := r.runs.SaveRun(ctx, run); err != nil {
			return out, eris.Wrap(err, "workflow: save run")
		}
	}
	log.Info("workflow: run finished",
		zap.Int("nodes", len(results)),
		zap.Int("succeeded", out.Succeeded()),
		zap.Int64("duration_ms", run.DurationMs),
	)
	return out, nil
}
