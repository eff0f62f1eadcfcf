package flows

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// box1Excluded are the node kinds a box1 run never executes.
var box1Excluded = []workflow.Kind{
	workflow.KindBox1Input,
	workflow.KindLeadInput,
	workflow.KindLeadOutput,
	workflow.KindAnymailfinder,
}

// Box1Summary is the outcome of RunBox1.
type Box1Summary struct {
	Count           int                     `json:"count"`
	LeadNumbers     []int64                 `json:"leadNumbers"`
	Data            []model.InputRow        `json:"data"`
	WorkflowResults []model.NodeResult      `json:"workflowResults"`
	RunID           string                  `json:"runId,omitempty"`
	Transition      *model.TransitionResult `json:"transition"`
}

// RunBox1 runs the latest precrafter over the given leads, seeded as the
// BOX1_INPUT output, then advances them with the guarded box1 transition.
func (s *Service) RunBox1(ctx context.Context, leadNumbers []int64) (*Box1Summary, error) {
	rows, err := s.leads.InputRows(ctx, string(model.StepBox1), leadNumbers)
	if err != nil {
		return nil, eris.Wrap(err, "flows: load box1 rows")
	}
	if len(rows) == 0 {
		return nil, eris.Wrap(model.ErrNotFound, "flows: no valid leads found")
	}

	version, nodes, err := s.precrafter(ctx)
	if err != nil {
		return nil, err
	}

	numbers := make([]int64, 0, len(rows))
	for _, r := range rows {
		if n, ok := leadNumberOf(r); ok {
			numbers = append(numbers, n)
		}
	}

	spec := workflow.RunSpec{
		Type:    model.WorkflowPrecrafter,
		Version: version.Version,
		Nodes:   nodes,
		Exclude: box1Excluded,
	}
	if in, ok := findNode(nodes, workflow.KindBox1Input); ok {
		seed, err := json.Marshal(map[string]any{"leads": rows, "leadCount": len(rows)})
		if err != nil {
			return nil, eris.Wrap(err, "flows: marshal box1 input")
		}
		spec.Seeds = []workflow.Seed{{
			Node:  in.ID(),
			Entry: workflow.Entry{Input: map[string]any{}, Output: string(seed)},
		}}
	}

	out, err := s.runner.Run(ctx, spec)
	if err != nil {
		return nil, eris.Wrap(err, "flows: run box1 workflow")
	}

	// Leads BOX1_OUTPUT already classified fail the guard and are skipped.
	tr, err := s.leads.Send(ctx, string(model.StepBox1), numbers)
	if err != nil {
		return nil, eris.Wrap(err, "flows: send to box1")
	}

	zap.L().Info("flows: box1 run completed",
		zap.Int("leads", len(rows)),
		zap.Int("sent", len(tr.Updated)),
		zap.Int("nodes", len(out.Nodes)),
		zap.Int("succeeded", out.Succeeded()),
	)
	return &Box1Summary{
		Count:           len(rows),
		LeadNumbers:     numbers,
		Data:            rows,
		WorkflowResults: out.Nodes,
		RunID:           out.Run.ID,
		Transition:      tr,
	}, nil
}

func leadNumberOf(r model.InputRow) (int64, bool) {
	switch v := r["LeadNumber"].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
