package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Step names one stage of the lead pipeline. The export gate is carried in
// StepStatus.Export and is not a Step.
type Step string

const (
	StepVerification Step = "verification"
	StepCompScrap    Step = "compScrap"
	StepBox1         Step = "box1"
	StepInstantly    Step = "instantly"
)

// Steps lists the pipeline steps in order.
var Steps = []Step{StepVerification, StepCompScrap, StepBox1, StepInstantly}

// Status is the value a step holds in a lead's step_status document.
type Status string

const (
	StatusPending       Status = "pending"
	StatusSent          Status = "sent"
	StatusVerified      Status = "verified"
	StatusFailed        Status = "failed"
	StatusError         Status = "error"
	StatusScraped       Status = "scraped"
	StatusFit           Status = "fit"
	StatusDrop          Status = "drop"
	StatusNoFit         Status = "no_fit"
	StatusHit           Status = "hit"
	StatusCompleted     Status = "completed"
	StatusStock         Status = "stock"
	StatusReplied       Status = "replied"
	StatusPositiveReply Status = "positive_reply"
	StatusConverted     Status = "converted"
	StatusBounced       Status = "bounced"
	StatusDropped       Status = "dropped"
)

// legalStatuses is the closed status set of each step. box1 also accepts
// "completed", which BOX1_OUTPUT writes for leads leaving the pipeline.
var legalStatuses = map[Step][]Status{
	StepVerification: {StatusPending, StatusSent, StatusVerified, StatusFailed, StatusError},
	StepCompScrap:    {StatusPending, StatusSent, StatusScraped, StatusFailed},
	StepBox1:         {StatusPending, StatusSent, StatusFit, StatusDrop, StatusNoFit, StatusHit, StatusFailed, StatusCompleted},
	StepInstantly: {
		StatusPending, StatusSent, StatusStock, StatusReplied, StatusPositiveReply,
		StatusConverted, StatusBounced, StatusDropped,
	},
}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if _, ok := legalStatuses[step]; !ok {
		return "", eris.Wrapf(ErrUnknownStep, "model: step %q", s)
	}
	return step, nil
}

// Allows reports whether status is legal for the step.
func (s Step) Allows(status Status) bool {
	for _, st := range legalStatuses[s] {
		if st == status {
			return true
		}
	}
	return false
}

// ValidateStatus returns ErrInvalidStatus unless status is legal for step.
func ValidateStatus(step Step, status Status) error {
	if _, ok := legalStatuses[step]; !ok {
		return eris.Wrapf(ErrUnknownStep, "model: step %q", step)
	}
	if !step.Allows(status) {
		return eris.Wrapf(ErrInvalidStatus, "model: %q is not a %s status", status, step)
	}
	return nil
}

// StepStatus is the per-lead document recording each step's current status.
// All five keys are always present once a lead exists.
type StepStatus struct {
	Export       bool   `json:"export"`
	Verification Status `json:"verification"`
	CompScrap    Status `json:"compScrap"`
	Box1         Status `json:"box1"`
	Instantly    Status `json:"instantly"`
}

// NewStepStatus returns the status document of a freshly imported lead.
func NewStepStatus() StepStatus {
	return StepStatus{
		Export:       true,
		Verification: StatusPending,
		CompScrap:    StatusPending,
		Box1:         StatusPending,
		Instantly:    StatusPending,
	}
}

// Get returns the status of one step.
func (s StepStatus) Get(step Step) Status {
	switch step {
	case StepVerification:
		return s.Verification
	case StepCompScrap:
		return s.CompScrap
	case StepBox1:
		return s.Box1
	case StepInstantly:
		return s.Instantly
	}
	return ""
}

// With returns a copy with one step replaced.
func (s StepStatus) With(step Step, status Status) StepStatus {
	switch step {
	case StepVerification:
		s.Verification = status
	case StepCompScrap:
		s.CompScrap = status
	case StepBox1:
		s.Box1 = status
	case StepInstantly:
		s.Instantly = status
	}
	return s
}

// UnmarshalJSON fills missing keys with their defaults so older rows that
// lack a step still decode to a complete document.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	type plain StepStatus
	p := plain(NewStepStatus())
	if err := json.Unmarshal(data, &p); err != nil {
		return eris.Wrap(err, "model: decode step_status")
	}
	*s = StepStatus(p)
	return nil
}

// StatusPatch is a partial step_status document applied as a JSON merge-patch.
// Steps absent from the patch keep their stored value.
type StatusPatch map[Step]Status

// Validate checks every entry against the step's legal statuses.
func (p StatusPatch) Validate() error {
	for step, status := range p {
		if err := ValidateStatus(step, status); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns s with the patch merged in.
func (p StatusPatch) Apply(s StepStatus) StepStatus {
	for step, status := range p {
		s = s.With(step, status)
	}
	return s
}
