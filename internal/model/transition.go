package model

// Condition requires one step to hold a given status.
type Condition struct {
	Step   Step
	Status Status
}

// Transition is a guarded step move. A lead advances only when Step holds
// From, every Requires condition holds, and (if RequireExport) the export
// gate is set. Non-matching leads are skipped, not errored.
type Transition struct {
	Name          string
	Step          Step
	From          Status
	To            Status
	Requires      []Condition
	RequireExport bool
}

// Stamp is the timestamp column the transition sets.
func (t Transition) Stamp() string {
	return StampColumn(t.Step, t.To)
}

// Guards returns the full precondition, the transition's own step first.
func (t Transition) Guards() []Condition {
	return append([]Condition{{Step: t.Step, Status: t.From}}, t.Requires...)
}

// TransitionResult reports what a batch transition did. Skipped leads did
// not meet the precondition; Failed leads hit a storage error (per-row mode only).
type TransitionResult struct {
	Requested int              `json:"requested"`
	Updated   []Lead           `json:"updated"`
	Skipped   []int64          `json:"skipped"`
	Failed    map[int64]string `json:"failed,omitempty"`
}
