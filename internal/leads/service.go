// Package leads implements the lead step-status state machine: guarded step
// transitions, merge-patch status updates, step-output imports, step input
// views and funnel metrics.
package leads

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/model"
)

// Store is the persistence the state machine needs.
type Store interface {
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
	CreateCampaign(ctx context.Context, name, description string) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	RefreshLeadCount(ctx context.Context, id string) error
}

// Service is the lead state machine.
type Service struct {
	store     Store
	batchMode string
}

// NewService returns a Service. batchMode is config.BatchAtomic or
// config.BatchPerRow; anything else is treated as atomic.
func NewService(store Store, batchMode string) *Service {
	if batchMode != config.BatchPerRow {
		batchMode = config.BatchAtomic
	}
	return &Service{store: store, batchMode: batchMode}
}

// UpdateStepStatus sets one step's status as a merge-patch, stamps the
// matching timestamp and writes the allow-listed extra fields. Extra keys
// outside the allow-list are dropped.
func (s *Service) UpdateStepStatus(ctx context.Context, leadNumber int64, step model.Step, status model.Status, extra model.Fields) (*model.Lead, error) {
	return s.ApplyPatch(ctx, leadNumber, model.StatusPatch{step: status}, extra)
}

// ApplyPatch is UpdateStepStatus for several steps at once.
func (s *Service) ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	kept, dropped := extra.Allowed()
	if len(dropped) > 0 {
		zap.L().Debug("leads: ignoring fields outside the allow-list",
			zap.Int64("lead_number", leadNumber),
			zap.Strings("fields", dropped),
		)
	}
	l, err := s.store.PatchLead(ctx, leadNumber, patch, kept)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: update lead %d", leadNumber)
	}
	return l, nil
}

// Update writes allow-listed columns without touching step_status.
func (s *Service) Update(ctx context.Context, leadNumber int64, fields model.Fields) (*model.Lead, error) {
	return s.ApplyPatch(ctx, leadNumber, nil, fields)
}

// MarkAsStorage flags leads as storage. Unknown leads are skipped; the
// number of leads flagged is returned.
func (s *Service) MarkAsStorage(ctx context.Context, leadNumbers []int64) (int, error) {
	marked := 0
	for _, n := range leadNumbers {
		if _, err := s.store.MarkAsStorage(ctx, n); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				zap.L().Debug("leads: storage mark skipped, lead not found", zap.Int64("lead_number", n))
				continue
			}
			return marked, eris.Wrapf(err, "leads: mark lead %d as storage", n)
		}
		marked++
	}
	return marked, nil
}

func (s *Service) GetLead(ctx context.Context, leadNumber int64) (*model.Lead, error) {
	return s.store.GetLead(ctx, leadNumber)
}

func (s *Service) GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error) {
	return s.store.GetLeads(ctx, leadNumbers)
}

func (s *Service) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	return s.store.ListLeads(ctx, filter)
}

// LeadsByStatus lists leads for a LEAD_INPUT status filter.
func (s *Service) LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error) {
	return s.store.LeadsByStatus(ctx, filter, limit)
}

// GetInput returns the leads ready for a step, shaped for its processor.
// view is a step name or "instantlyStock".
func (s *Service) GetInput(ctx context.Context, view string, limit int) ([]model.InputRow, error) {
	rows, err := s.store.StepInput(ctx, view, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: %s input", view)
	}
	return rows, nil
}

// InputRows shapes specific leads into a view's column set regardless of
// their readiness.
func (s *Service) InputRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error) {
	rows, err := s.store.StepRows(ctx, view, leadNumbers)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: %s rows", view)
	}
	return rows, nil
}

// GetMetrics computes funnel counts, ratios and estimates. An empty
// campaignID covers every campaign.
func (s *Service) GetMetrics(ctx context.Context, campaignID string) (*model.Metrics, error) {
	counts, err := s.store.FunnelCounts(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "leads: metrics")
	}
	m := model.ComputeMetrics(counts)
	return &m, nil
}
