package store

import (
	"context"

	"github.com/sells-group/lead-studio/internal/model"
)

// Store defines the persistence interface for leads, campaigns and
// workflow versions and runs.
type Store interface {
	// Leads
	ApplyTransition(ctx context.Context, t model.Transition, leadNumbers []int64) ([]model.Lead, error)
	ApplyTransitionRow(ctx context.Context, t model.Transition, leadNumber int64) (*model.Lead, error)
	PatchLead(ctx context.Context, leadNumber int64, patch model.StatusPatch, fields model.Fields) (*model.Lead, error)
	MarkAsStorage(ctx context.Context, leadNumber int64) (*model.Lead, error)
	GetLead(ctx context.Context, leadNumber int64) (*model.Lead, error)
	GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error)
	FindLeadByEmail(ctx context.Context, campaignID, email string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error)
	StepInput(ctx context.Context, view string, limit int) ([]model.InputRow, error)
	StepRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error)
	FunnelCounts(ctx context.Context, campaignID string) (model.FunnelCounts, error)
	InsertLeads(ctx context.Context, leads []model.NewLead) (int64, error)
	MaxLeadNumber(ctx context.Context, campaignID string) (int64, error)

	// Campaigns
	CreateCampaign(ctx context.Context, name, description string) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	RefreshLeadCount(ctx context.Context, id string) error

	// Workflows
	SaveVersion(ctx context.Context, v model.WorkflowVersion) (*model.WorkflowVersion, error)
	LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error)
	GetVersion(ctx context.Context, typ model.WorkflowType, version int) (*model.WorkflowVersion, error)
	ListVersions(ctx context.Context, typ model.WorkflowType) ([]model.WorkflowVersion, error)
	SaveRun(ctx context.Context, run *model.WorkflowRun) error
	GetRun(ctx context.Context, id string) (*model.WorkflowRun, error)
	ListRuns(ctx context.Context, typ model.WorkflowType, limit int) ([]model.WorkflowRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var _ Store = (*PostgresStore)(nil)
