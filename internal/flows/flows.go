// Package flows composes the lead state machine and the workflow engine
// into the end-to-end operations the studio exposes.
package flows

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// ErrMissingNode is returned when the workflow lacks a node a flow needs.
var ErrMissingNode = eris.New("workflow node not found")

// Leads is the lead state machine surface flows use.
type Leads interface {
	GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error)
	InputRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error)
	ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error)
	Send(ctx context.Context, transition string, leadNumbers []int64) (*model.TransitionResult, error)
}

// Versions loads workflow graphs.
type Versions interface {
	LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error)
}

// Runner executes workflow runs.
type Runner interface {
	Run(ctx context.Context, spec workflow.RunSpec) (*workflow.Outcome, error)
}

// NodeExecutor runs one node against a context.
type NodeExecutor interface {
	Execute(ctx context.Context, n workflow.Node, rc *workflow.RunContext) (*workflow.Result, error)
}

// Service runs flows.
type Service struct {
	leads     Leads
	versions  Versions
	runner    Runner
	exec      NodeExecutor
	verifier  *workflow.EmailVerifier
	gen       llm.Generator
	chatModel string
	fanOut    int
}

// Config wires a Service.
type Config struct {
	Leads    Leads
	Versions Versions
	Runner   Runner
	Exec     NodeExecutor
	Verifier *workflow.EmailVerifier
	Gen      llm.Generator
	// ChatModel serves chat and variations. Default workflow.DefaultGeminiModel.
	ChatModel string
	// VariationConcurrency bounds parallel variation calls. Default 1.
	VariationConcurrency int
}

// New returns a Service.
func New(cfg Config) *Service {
	if cfg.ChatModel == "" {
		cfg.ChatModel = workflow.DefaultGeminiModel
	}
	if cfg.VariationConcurrency < 1 {
		cfg.VariationConcurrency = 1
	}
	return &Service{
		leads:     cfg.Leads,
		versions:  cfg.Versions,
		runner:    cfg.Runner,
		exec:      cfg.Exec,
		verifier:  cfg.Verifier,
		gen:       cfg.Gen,
		chatModel: cfg.ChatModel,
		fanOut:    cfg.VariationConcurrency,
	}
}

// precrafter loads and decodes the latest precrafter graph.
func (s *Service) precrafter(ctx context.Context) (*model.WorkflowVersion, []workflow.Node, error) {
	v, err := s.versions.LatestVersion(ctx, model.WorkflowPrecrafter)
	if err != nil {
		return nil, nil, eris.Wrap(err, "flows: load precrafter workflow")
	}
	nodes, err := workflow.DecodeNodes(v.Content.Nodes)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "flows: precrafter v%d", v.Version)
	}
	return v, nodes, nil
}

func findNode(nodes []workflow.Node, kind workflow.Kind) (workflow.Node, bool) {
	for _, n := range nodes {
		if n.Kind() == kind {
			return n, true
		}
	}
	return nil, false
}
