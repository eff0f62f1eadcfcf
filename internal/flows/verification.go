package flows

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// VerificationSummary is the outcome of RunVerification.
type VerificationSummary struct {
	Count             int `json:"count"`
	Valid             int `json:"valid"`
	Invalid           int `json:"invalid"`
	Errors            int `json:"errors"`
	NoEmail           int `json:"noEmail"`
	LeadsUpdated      int `json:"leadsUpdated"`
	ReadyForCompScrap int `json:"readyForCompScrap"`
}

// RunVerification verifies the emails of the given leads with the latest
// precrafter's email verification settings and records each outcome.
func (s *Service) RunVerification(ctx context.Context, leadNumbers []int64) (*VerificationSummary, error) {
	found, err := s.leads.GetLeads(ctx, leadNumbers)
	if err != nil {
		return nil, eris.Wrap(err, "flows: load leads")
	}
	if len(found) == 0 {
		return nil, eris.Wrap(model.ErrNotFound, "flows: no valid leads found")
	}

	_, nodes, err := s.precrafter(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := findNode(nodes, workflow.KindAnymailfinder)
	if !ok {
		return nil, eris.Wrap(ErrMissingNode, "flows: ANYMAILFINDER node not found in workflow")
	}
	if s.verifier == nil {
		return nil, eris.Wrap(workflow.ErrNoAPIKey, "flows: run verification")
	}

	rows := make([]map[string]any, len(found))
	for i, l := range found {
		rows[i] = map[string]any{
			"LeadNumber":  l.LeadNumber,
			"email":       l.Email,
			"firstName":   l.FirstName,
			"lastName":    l.LastName,
			"companyName": l.CompanyName,
			"step_status": l.StepStatus,
		}
	}

	verified, err := s.verifier.Verify(ctx, n.(workflow.AnymailfinderNode).APIKey, rows)
	if err != nil {
		return nil, err
	}

	sum := &VerificationSummary{Count: len(found)}
	for _, v := range verified {
		switch v.Result.Status {
		case "valid":
			sum.Valid++
		case "invalid":
			sum.Invalid++
		case workflow.VerificationError:
			sum.Errors++
		case workflow.VerificationNoEmail:
			sum.NoEmail++
		}

		result, err := json.Marshal(v.Result)
		if err != nil {
			return nil, eris.Wrap(err, "flows: marshal verification result")
		}
		patch := verificationPatch(v.Result.Status)
		if _, err := s.leads.ApplyPatch(ctx, v.LeadNumber, patch, model.Fields{"verification_result": json.RawMessage(result)}); err != nil {
			zap.L().Error("flows: record verification failed", zap.Int64("lead_number", v.LeadNumber), zap.Error(err))
			continue
		}
		sum.LeadsUpdated++
	}
	sum.ReadyForCompScrap = sum.Valid

	zap.L().Info("flows: verification completed",
		zap.Int("count", sum.Count),
		zap.Int("valid", sum.Valid),
		zap.Int("invalid", sum.Invalid),
		zap.Int("errors", sum.Errors),
		zap.Int("no_email", sum.NoEmail),
	)
	return sum, nil
}

// verificationPatch maps a provider status to step statuses. compScrap is
// reset to pending whatever the outcome.
func verificationPatch(status string) model.StatusPatch {
	out := model.StatusError
	switch status {
	case "valid":
		out = model.StatusVerified
	case "invalid":
		out = model.StatusFailed
	}
	return model.StatusPatch{
		model.StepVerification: out,
		model.StepCompScrap:    model.StatusPending,
	}
}
