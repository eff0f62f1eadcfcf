package leads

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-studio/internal/model"
)

type mockStore struct {
	mock.Mock
}

func leadOrNil(args mock.Arguments) *model.Lead {
	if v := args.Get(0); v != nil {
		return v.(*model.Lead)
	}
	return nil
}

func (m *mockStore) ApplyTransition(ctx context.Context, t model.Transition, leadNumbers []int64) ([]model.Lead, error) {
	args := m.Called(ctx, t, leadNumbers)
	ls, _ := args.Get(0).([]model.Lead)
	return ls, args.Error(1)
}

func (m *mockStore) ApplyTransitionRow(ctx context.Context, t model.Transition, leadNumber int64) (*model.Lead, error) {
	args := m.Called(ctx, t, leadNumber)
	return leadOrNil(args), args.Error(1)
}

func (m *mockStore) PatchLead(ctx context.Context, leadNumber int64, patch model.StatusPatch, fields model.Fields) (*model.Lead, error) {
	args := m.Called(ctx, leadNumber, patch, fields)
	return leadOrNil(args), args.Error(1)
}

func (m *mockStore) MarkAsStorage(ctx context.Context, leadNumber int64) (*model.Lead, error) {
	args := m.Called(ctx, leadNumber)
	return leadOrNil(args), args.Error(1)
}

func (m *mockStore) GetLead(ctx context.Context, leadNumber int64) (*model.Lead, error) {
	args := m.Called(ctx, leadNumber)
	return leadOrNil(args), args.Error(1)
}

func (m *mockStore) GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error) {
	args := m.Called(ctx, leadNumbers)
	ls, _ := args.Get(0).([]model.Lead)
	return ls, args.Error(1)
}

func (m *mockStore) FindLeadByEmail(ctx context.Context, campaignID, email string) (*model.Lead, error) {
	args := m.Called(ctx, campaignID, email)
	return leadOrNil(args), args.Error(1)
}

func (m *mockStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	ls, _ := args.Get(0).([]model.Lead)
	return ls, args.Error(1)
}

func (m *mockStore) LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error) {
	args := m.Called(ctx, filter, limit)
	ls, _ := args.Get(0).([]model.Lead)
	return ls, args.Error(1)
}

func (m *mockStore) StepInput(ctx context.Context, view string, limit int) ([]model.InputRow, error) {
	args := m.Called(ctx, view, limit)
	rows, _ := args.Get(0).([]model.InputRow)
	return rows, args.Error(1)
}

func (m *mockStore) StepRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error) {
	args := m.Called(ctx, view, leadNumbers)
	rows, _ := args.Get(0).([]model.InputRow)
	return rows, args.Error(1)
}

func (m *mockStore) FunnelCounts(ctx context.Context, campaignID string) (model.FunnelCounts, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(model.FunnelCounts), args.Error(1)
}

func (m *mockStore) InsertLeads(ctx context.Context, leads []model.NewLead) (int64, error) {
	args := m.Called(ctx, leads)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) MaxLeadNumber(ctx context.Context, campaignID string) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CreateCampaign(ctx context.Context, name, description string) (*model.Campaign, error) {
	args := m.Called(ctx, name, description)
	c, _ := args.Get(0).(*model.Campaign)
	return c, args.Error(1)
}

func (m *mockStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.Campaign)
	return c, args.Error(1)
}

func (m *mockStore) RefreshLeadCount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
