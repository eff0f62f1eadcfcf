// Package workflow executes workflow graphs: typed nodes, variable
// resolution against a run context, schema normalization and the lead
// adapter nodes that connect a graph to the lead state machine.
package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/model"
)

// ErrMalformedOutput is returned when a node that asked for JSON got
// something that does not parse. It is not retried.
var ErrMalformedOutput = eris.New("model output is not valid JSON")

// ErrNoLeads is returned by adapter nodes that find no leads in the context.
var ErrNoLeads = eris.New("no leads found in context")

// LeadStore is the part of the lead state machine adapter nodes use.
type LeadStore interface {
	LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error)
	GetInput(ctx context.Context, view string, limit int) ([]model.InputRow, error)
	ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error)
	MarkAsStorage(ctx context.Context, leadNumbers []int64) (int, error)
}

// PromptInput is the configuration an LLM node actually ran with.
type PromptInput struct {
	SystemPrompt string   `json:"systemPrompt"`
	UserPrompt   string   `json:"userPrompt"`
	Temperature  *float64 `json:"temperature"`
	Model        string   `json:"model"`
}

// Result is one node execution: the produced text and the input used.
type Result struct {
	Output string
	Input  any
}

// Executor runs single nodes against a run context.
type Executor struct {
	leads        LeadStore
	gen          llm.Generator
	verifier     *EmailVerifier
	defaultModel string
}

// NewExecutor returns an Executor. An empty defaultModel falls back to
// DefaultGeminiModel.
func NewExecutor(store LeadStore, gen llm.Generator, verifier *EmailVerifier, defaultModel string) *Executor {
	if defaultModel == "" {
		defaultModel = DefaultGeminiModel
	}
	return &Executor{leads: store, gen: gen, verifier: verifier, defaultModel: defaultModel}
}

// Execute runs one node. rc is read, never written.
func (e *Executor) Execute(ctx context.Context, n Node, rc *RunContext) (*Result, error) {
	switch node := n.(type) {
	case JSONNode:
		return &Result{Output: node.JSON}, nil
	case JSONBuilderNode:
		return &Result{Output: Resolve(node.Template, rc)}, nil
	case LeadInputNode:
		return e.leadInput(ctx, node)
	case Box1InputNode:
		return e.box1Input(ctx, node, rc)
	case Box1OutputNode:
		return e.box1Output(ctx, rc)
	case LeadOutputNode:
		return e.leadOutput(ctx, node, rc)
	case AnymailfinderNode:
		return e.anymailfinder(ctx, node, rc)
	case LLMNode:
		return e.prompt(ctx, node, rc)
	}
	return nil, eris.Errorf("workflow: unsupported node %T", n)
}

func (e *Executor) leadInput(ctx context.Context, n LeadInputNode) (*Result, error) {
	found, err := e.leads.LeadsByStatus(ctx, n.StatusFilter, n.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: lead input")
	}
	if found == nil {
		found = []model.Lead{}
	}
	return marshalResult(map[string]any{"leads": found, "leadCount": len(found)})
}

func (e *Executor) box1Input(ctx context.Context, n Box1InputNode, rc *RunContext) (*Result, error) {
	if rows, from, ok := findLeads(rc); ok {
		zap.L().Debug("workflow: box1 input reusing upstream leads",
			zap.String("from", string(from)),
			zap.Int("count", len(rows)),
		)
		return marshalResult(map[string]any{"leads": rows, "leadCount": len(rows)})
	}

	rows, err := e.leads.GetInput(ctx, string(model.StepBox1), n.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: box1 input")
	}
	if rows == nil {
		rows = []model.InputRow{}
	}
	return marshalResult(map[string]any{"leads": rows, "leadCount": len(rows)})
}

// Box1OutputSummary is the BOX1_OUTPUT node output.
type Box1OutputSummary struct {
	Updated      int      `json:"updated"`
	MovedToStock int      `json:"movedToStock"`
	Dropped      int      `json:"dropped"`
	Errors       int      `json:"errors"`
	Messages     []string `json:"messages,omitempty"`
}

func (e *Executor) box1Output(ctx context.Context, rc *RunContext) (*Result, error) {
	results := findBox1Results(rc)
	if len(results) == 0 {
		return nil, eris.New("workflow: no box1 results found in context")
	}

	var sum Box1OutputSummary
	for _, r := range results {
		rec := leads.Record(r)
		n, ok := rec.LeadNumber()
		if !ok {
			sum.Errors++
			sum.Messages = append(sum.Messages, "result without lead number")
			continue
		}

		status := strings.ToUpper(rec.Value("status", "Status", "Box1Status", "box1Status"))
		var patch model.StatusPatch
		switch status {
		case "HIT", "FIT":
			patch = model.StatusPatch{
				model.StepBox1:      model.Status(strings.ToLower(status)),
				model.StepInstantly: model.StatusPending,
			}
		default:
			patch = model.StatusPatch{
				model.StepBox1:      model.StatusCompleted,
				model.StepInstantly: model.StatusDropped,
			}
		}

		if _, err := e.leads.ApplyPatch(ctx, n, patch, model.Fields{"box1_result": r}); err != nil {
			sum.Errors++
			sum.Messages = append(sum.Messages, err.Error())
			zap.L().Warn("workflow: box1 output update failed", zap.Int64("lead_number", n), zap.Error(err))
			continue
		}
		sum.Updated++
		if status == "FIT" || status == "HIT" {
			sum.MovedToStock++
		} else {
			sum.Dropped++
		}
		if status == "FIT" {
			if _, err := e.leads.MarkAsStorage(ctx, []int64{n}); err != nil {
				return nil, eris.Wrapf(err, "workflow: box1 output storage %d", n)
			}
		}
	}
	return marshalResult(sum)
}

// resultSteps maps a LEAD_OUTPUT result column to the step it completes.
var resultSteps = map[string]model.Step{
	"verification_result": model.StepVerification,
	"compscrap_result":    model.StepCompScrap,
	"box1_result":         model.StepBox1,
}

// LeadOutputSummary is the LEAD_OUTPUT node output.
type LeadOutputSummary struct {
	Updated  int      `json:"updated"`
	Errors   int      `json:"errors"`
	Messages []string `json:"messages,omitempty"`
}

func (e *Executor) leadOutput(ctx context.Context, n LeadOutputNode, rc *RunContext) (*Result, error) {
	rows, _, ok := findLeads(rc)
	if !ok {
		return nil, eris.Wrap(ErrNoLeads, "workflow: lead output")
	}
	field := n.ResultField
	if field == "" {
		field = "verification_result"
	}

	var sum LeadOutputSummary
	for _, row := range rows {
		num, ok := leads.Record(row).LeadNumber()
		if !ok {
			sum.Errors++
			sum.Messages = append(sum.Messages, "lead without lead number")
			continue
		}

		fields := model.Fields{}
		value, hasValue := row[field]
		if hasValue {
			fields[field] = value
		}
		var patch model.StatusPatch
		if n.MarkAsSent {
			patch = sentPatch(field, value)
		}
		if len(fields) == 0 && len(patch) == 0 {
			continue
		}

		if _, err := e.leads.ApplyPatch(ctx, num, patch, fields); err != nil {
			sum.Errors++
			sum.Messages = append(sum.Messages, err.Error())
			zap.L().Warn("workflow: lead output update failed", zap.Int64("lead_number", num), zap.Error(err))
			continue
		}
		sum.Updated++
	}
	return marshalResult(sum)
}

// sentPatch is the step advance LEAD_OUTPUT applies when marking leads.
// Verification results move straight to their outcome.
func sentPatch(field string, value any) model.StatusPatch {
	step, ok := resultSteps[field]
	if !ok {
		return nil
	}
	if step == model.StepVerification {
		var status string
		if m, ok := value.(map[string]any); ok {
			status, _ = m["status"].(string)
		}
		switch status {
		case "valid":
			return model.StatusPatch{
				model.StepVerification: model.StatusVerified,
				model.StepCompScrap:    model.StatusPending,
			}
		case "invalid":
			return model.StatusPatch{model.StepVerification: model.StatusFailed}
		}
	}
	return model.StatusPatch{step: model.StatusSent}
}

func (e *Executor) anymailfinder(ctx context.Context, n AnymailfinderNode, rc *RunContext) (*Result, error) {
	rows, _, ok := findLeads(rc)
	if !ok {
		return nil, eris.Wrap(ErrNoLeads, "workflow: anymailfinder")
	}
	if e.verifier == nil {
		return nil, eris.Wrap(ErrNoAPIKey, "workflow: anymailfinder")
	}

	verified, err := e.verifier.Verify(ctx, n.APIKey, rows)
	if err != nil {
		return nil, err
	}
	annotated := make([]map[string]any, len(verified))
	for i, v := range verified {
		row := make(map[string]any, len(v.Lead)+1)
		for k, val := range v.Lead {
			row[k] = val
		}
		row["verification_result"] = v.Result
		annotated[i] = row
	}
	return marshalResult(map[string]any{"leads": annotated, "leadCount": len(annotated)})
}

func (e *Executor) prompt(ctx context.Context, n LLMNode, rc *RunContext) (*Result, error) {
	modelName := n.Model
	if modelName == "" {
		modelName = e.defaultModel
	}
	if _, err := llm.FamilyOf(modelName); err != nil {
		return nil, err
	}

	req := llm.Request{
		Model:        modelName,
		SystemPrompt: Resolve(n.SystemPrompt, rc),
		UserPrompt:   Resolve(n.UserPrompt, rc),
		Temperature:  n.Temperature,
		Recency:      n.Recency,
		Citations:    n.Citations,
	}
	switch {
	case n.OutputMode == OutputFree:
		req.JSONMode = true
	case n.Schema != nil:
		req.Schema = Normalize(n.Schema)
	}
	input := PromptInput{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Temperature:  n.Temperature,
		Model:        modelName,
	}

	out, err := e.gen.Generate(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: node %s", n.ID())
	}

	if req.WantsJSON() {
		parsed, ok := ExtractJSON(out)
		if !ok {
			return nil, eris.Wrapf(ErrMalformedOutput, "workflow: node %s", n.ID())
		}
		if req.Schema != nil {
			checkSchema(n.ID(), req.Schema, parsed)
		}
	}
	return &Result{Output: out, Input: input}, nil
}

// checkSchema logs where generated JSON departs from the requested schema.
// Providers enforce the schema themselves, so a mismatch is not fatal.
func checkSchema(id NodeID, schema map[string]any, doc any) {
	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		zap.L().Debug("workflow: schema check skipped", zap.String("node", string(id)), zap.Error(err))
		return
	}
	if res.Valid() {
		return
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	zap.L().Warn("workflow: output does not match schema",
		zap.String("node", string(id)),
		zap.Strings("errors", msgs),
	)
}

// findLeads returns the most recent leads list in the context: a "leads"
// array, a bare array or a "data" array of objects.
func findLeads(rc *RunContext) ([]map[string]any, NodeID, bool) {
	var rows []map[string]any
	var from NodeID
	rc.Latest(func(id NodeID, e Entry) bool {
		v, ok := ExtractJSON(e.Output)
		if !ok {
			return false
		}
		var list []any
		switch t := v.(type) {
		case []any:
			list = t
		case map[string]any:
			if l, ok := t["leads"].([]any); ok {
				list = l
			} else if l, ok := t["data"].([]any); ok {
				list = l
			}
		}
		if list == nil {
			return false
		}
		rows, from = objects(list), id
		return true
	})
	return rows, from, rows != nil
}

// findBox1Results returns the most recent box1 classifications: objects
// with a status from a "leads" array, or a single object with a status.
func findBox1Results(rc *RunContext) []map[string]any {
	var found []map[string]any
	rc.Latest(func(_ NodeID, e Entry) bool {
		v, ok := ExtractJSON(e.Output)
		if !ok {
			return false
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return false
		}
		if list, ok := obj["leads"].([]any); ok {
			for _, r := range objects(list) {
				if leads.Record(r).Value("status", "Status", "Box1Status", "box1Status") != "" {
					found = append(found, r)
				}
			}
			return len(found) > 0
		}
		if leads.Record(obj).Value("status", "Status", "Box1Status", "box1Status") != "" {
			found = []map[string]any{obj}
			return true
		}
		return false
	})
	return found
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func marshalResult(v any) (*Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: marshal node output")
	}
	return &Result{Output: string(b)}, nil
}
