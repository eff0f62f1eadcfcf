package workflow

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/pkg/anymailfinder"
)

type mockLeads struct {
	mock.Mock
}

func (m *mockLeads) LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error) {
	args := m.Called(ctx, filter, limit)
	leads, _ := args.Get(0).([]model.Lead)
	return leads, args.Error(1)
}

func (m *mockLeads) GetInput(ctx context.Context, view string, limit int) ([]model.InputRow, error) {
	args := m.Called(ctx, view, limit)
	rows, _ := args.Get(0).([]model.InputRow)
	return rows, args.Error(1)
}

func (m *mockLeads) ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error) {
	args := m.Called(ctx, leadNumber, patch, extra)
	l, _ := args.Get(0).(*model.Lead)
	return l, args.Error(1)
}

func (m *mockLeads) MarkAsStorage(ctx context.Context, leadNumbers []int64) (int, error) {
	args := m.Called(ctx, leadNumbers)
	return args.Int(0), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// fakeVerifier answers from a fixed table keyed by email.
type fakeVerifier struct {
	mu      sync.Mutex
	results map[string]*anymailfinder.Verification
	errs    map[string]error
	calls   []string
}

func (f *fakeVerifier) VerifyEmail(_ context.Context, email string) (*anymailfinder.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email)
	if err := f.errs[email]; err != nil {
		return nil, err
	}
	if v, ok := f.results[email]; ok {
		return v, nil
	}
	return &anymailfinder.Verification{EmailStatus: "unknown"}, nil
}
