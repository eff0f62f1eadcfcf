package flows

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
	"github.com/sells-group/lead-studio/pkg/anymailfinder"
)

type mockLeads struct {
	mock.Mock
}

func (m *mockLeads) GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error) {
	args := m.Called(ctx, leadNumbers)
	leads, _ := args.Get(0).([]model.Lead)
	return leads, args.Error(1)
}

func (m *mockLeads) InputRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error) {
	args := m.Called(ctx, view, leadNumbers)
	rows, _ := args.Get(0).([]model.InputRow)
	return rows, args.Error(1)
}

func (m *mockLeads) ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error) {
	args := m.Called(ctx, leadNumber, patch, extra)
	l, _ := args.Get(0).(*model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) Send(ctx context.Context, transition string, leadNumbers []int64) (*model.TransitionResult, error) {
	args := m.Called(ctx, transition, leadNumbers)
	r, _ := args.Get(0).(*model.TransitionResult)
	return r, args.Error(1)
}

type mockVersions struct {
	mock.Mock
}

func (m *mockVersions) LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error) {
	args := m.Called(ctx, typ)
	v, _ := args.Get(0).(*model.WorkflowVersion)
	return v, args.Error(1)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, spec workflow.RunSpec) (*workflow.Outcome, error) {
	args := m.Called(ctx, spec)
	o, _ := args.Get(0).(*workflow.Outcome)
	return o, args.Error(1)
}

type mockExec struct {
	mock.Mock
}

func (m *mockExec) Execute(ctx context.Context, n workflow.Node, rc *workflow.RunContext) (*workflow.Result, error) {
	args := m.Called(ctx, n, rc)
	r, _ := args.Get(0).(*workflow.Result)
	return r, args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// fakeMailClient answers from a fixed status table keyed by email.
type fakeMailClient struct {
	mu       sync.Mutex
	statuses map[string]string
	errs     map[string]error
}

func (f *fakeMailClient) VerifyEmail(_ context.Context, email string) (*anymailfinder.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[email]; err != nil {
		return nil, err
	}
	status := f.statuses[email]
	if status == "" {
		status = "unknown"
	}
	return &anymailfinder.Verification{EmailStatus: status}, nil
}
