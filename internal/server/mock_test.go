package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-studio/internal/flows"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

type mockLeads struct {
	mock.Mock
}

func (m *mockLeads) GetLead(ctx context.Context, n int64) (*model.Lead, error) {
	args := m.Called(ctx, n)
	l, _ := args.Get(0).(*model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	l, _ := args.Get(0).([]model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) Update(ctx context.Context, n int64, fields model.Fields) (*model.Lead, error) {
	args := m.Called(ctx, n, fields)
	l, _ := args.Get(0).(*model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) ApplyPatch(ctx context.Context, n int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error) {
	args := m.Called(ctx, n, patch, extra)
	l, _ := args.Get(0).(*model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) Send(ctx context.Context, name string, ns []int64) (*model.TransitionResult, error) {
	args := m.Called(ctx, name, ns)
	r, _ := args.Get(0).(*model.TransitionResult)
	return r, args.Error(1)
}

func (m *mockLeads) GetInput(ctx context.Context, view string, limit int) ([]model.InputRow, error) {
	args := m.Called(ctx, view, limit)
	r, _ := args.Get(0).([]model.InputRow)
	return r, args.Error(1)
}

func (m *mockLeads) GetMetrics(ctx context.Context, campaignID string) (*model.Metrics, error) {
	args := m.Called(ctx, campaignID)
	r, _ := args.Get(0).(*model.Metrics)
	return r, args.Error(1)
}

func (m *mockLeads) ImportLeads(ctx context.Context, campaignID string, records []map[string]string, opts leads.ImportOptions) (*leads.LeadImportResult, error) {
	args := m.Called(ctx, campaignID, records, opts)
	r, _ := args.Get(0).(*leads.LeadImportResult)
	return r, args.Error(1)
}

func (m *mockLeads) ImportStepOutput(ctx context.Context, step model.Step, records []leads.Record) (*leads.ImportResult, error) {
	args := m.Called(ctx, step, records)
	r, _ := args.Get(0).(*leads.ImportResult)
	return r, args.Error(1)
}

type mockWorkflows struct {
	mock.Mock
}

func (m *mockWorkflows) SaveVersion(ctx context.Context, v model.WorkflowVersion) (*model.WorkflowVersion, error) {
	args := m.Called(ctx, v)
	r, _ := args.Get(0).(*model.WorkflowVersion)
	return r, args.Error(1)
}

func (m *mockWorkflows) LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error) {
	args := m.Called(ctx, typ)
	r, _ := args.Get(0).(*model.WorkflowVersion)
	return r, args.Error(1)
}

func (m *mockWorkflows) GetVersion(ctx context.Context, typ model.WorkflowType, version int) (*model.WorkflowVersion, error) {
	args := m.Called(ctx, typ, version)
	r, _ := args.Get(0).(*model.WorkflowVersion)
	return r, args.Error(1)
}

func (m *mockWorkflows) ListVersions(ctx context.Context, typ model.WorkflowType) ([]model.WorkflowVersion, error) {
	args := m.Called(ctx, typ)
	r, _ := args.Get(0).([]model.WorkflowVersion)
	return r, args.Error(1)
}

func (m *mockWorkflows) SaveRun(ctx context.Context, run *model.WorkflowRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockWorkflows) GetRun(ctx context.Context, id string) (*model.WorkflowRun, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*model.WorkflowRun)
	return r, args.Error(1)
}

func (m *mockWorkflows) ListRuns(ctx context.Context, typ model.WorkflowType, limit int) ([]model.WorkflowRun, error) {
	args := m.Called(ctx, typ, limit)
	r, _ := args.Get(0).([]model.WorkflowRun)
	return r, args.Error(1)
}

type mockFlows struct {
	mock.Mock
}

func (m *mockFlows) RunVerification(ctx context.Context, ns []int64) (*flows.VerificationSummary, error) {
	args := m.Called(ctx, ns)
	r, _ := args.Get(0).(*flows.VerificationSummary)
	return r, args.Error(1)
}

func (m *mockFlows) RunBox1(ctx context.Context, ns []int64) (*flows.Box1Summary, error) {
	args := m.Called(ctx, ns)
	r, _ := args.Get(0).(*flows.Box1Summary)
	return r, args.Error(1)
}

func (m *mockFlows) Chat(ctx context.Context, message string, data any) (string, error) {
	args := m.Called(ctx, message, data)
	return args.String(0), args.Error(1)
}

func (m *mockFlows) Variations(ctx context.Context, n workflow.LLMNode, instructions []string) ([]flows.Variation, error) {
	args := m.Called(ctx, n, instructions)
	r, _ := args.Get(0).([]flows.Variation)
	return r, args.Error(1)
}

func (m *mockFlows) RunNode(ctx context.Context, n workflow.Node, rc *workflow.RunContext) (*flows.NodeRun, error) {
	args := m.Called(ctx, n, rc)
	r, _ := args.Get(0).(*flows.NodeRun)
	return r, args.Error(1)
}
