package leads

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/model"
)

// ErrUnknownTransition is returned for a transition name not in the table.
var ErrUnknownTransition = eris.New("unknown transition")

var transitions = map[string]model.Transition{
	"verification": {
		Name: "send_to_verification", Step: model.StepVerification,
		From: model.StatusPending, To: model.StatusSent,
	},
	"compScrap": {
		Name: "send_to_compscrap", Step: model.StepCompScrap,
		From: model.StatusPending, To: model.StatusSent,
		Requires: []model.Condition{{Step: model.StepVerification, Status: model.StatusVerified}},
	},
	"box1": {
		Name: "send_to_box1", Step: model.StepBox1,
		From: model.StatusPending, To: model.StatusSent,
		Requires: []model.Condition{{Step: model.StepCompScrap, Status: model.StatusScraped}},
	},
	"instantly": {
		Name: "send_to_instantly", Step: model.StepInstantly,
		From: model.StatusPending, To: model.StatusSent,
		Requires: []model.Condition{{Step: model.StepBox1, Status: model.StatusHit}},
	},
	"instantlyStock": {
		Name: "send_to_instantly_stock", Step: model.StepInstantly,
		From: model.StatusPending, To: model.StatusStock,
		Requires: []model.Condition{{Step: model.StepBox1, Status: model.StatusHit}},
	},
	"stockToInstantly": {
		Name: "send_from_stock_to_instantly", Step: model.StepInstantly,
		From: model.StatusStock, To: model.StatusSent,
	},
}

// Transitions lists the transition names Send accepts.
func Transitions() []string {
	names := make([]string, 0, len(transitions))
	for name := range transitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SendToStep moves leads of a step from pending to sent.
func (s *Service) SendToStep(ctx context.Context, step model.Step, leadNumbers []int64) (*model.TransitionResult, error) {
	return s.Send(ctx, string(step), leadNumbers)
}

// Send applies a named transition. Leads failing the guard are listed in
// Skipped; in per-row mode a lead whose update errors is listed in Failed
// while the others still advance.
func (s *Service) Send(ctx context.Context, name string, leadNumbers []int64) (*model.TransitionResult, error) {
	t, ok := transitions[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownTransition, "leads: transition %q", name)
	}
	leadNumbers = dedupe(leadNumbers)
	res := &model.TransitionResult{Requested: len(leadNumbers), Updated: []model.Lead{}, Skipped: []int64{}}

	switch s.batchMode {
	case config.BatchPerRow:
		for _, n := range leadNumbers {
			l, err := s.store.ApplyTransitionRow(ctx, t, n)
			switch {
			case err != nil:
				if res.Failed == nil {
					res.Failed = map[int64]string{}
				}
				res.Failed[n] = err.Error()
				zap.L().Warn("leads: transition failed for lead",
					zap.String("transition", t.Name), zap.Int64("lead_number", n), zap.Error(err))
			case l == nil:
				res.Skipped = append(res.Skipped, n)
			default:
				res.Updated = append(res.Updated, *l)
			}
		}
	default:
		updated, err := s.store.ApplyTransition(ctx, t, leadNumbers)
		if err != nil {
			return nil, eris.Wrapf(err, "leads: %s", t.Name)
		}
		res.Updated = append(res.Updated, updated...)
		done := make(map[int64]bool, len(updated))
		for _, l := range updated {
			done[l.LeadNumber] = true
		}
		for _, n := range leadNumbers {
			if !done[n] {
				res.Skipped = append(res.Skipped, n)
			}
		}
	}

	if len(res.Skipped) > 0 {
		zap.L().Debug("leads: transition guard skipped leads",
			zap.String("transition", t.Name), zap.Int64s("lead_numbers", res.Skipped))
	}
	return res, nil
}

func dedupe(ns []int64) []int64 {
	seen := make(map[int64]bool, len(ns))
	out := make([]int64, 0, len(ns))
	for _, n := range ns {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
