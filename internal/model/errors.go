package model

import "github.com/rotisserie/eris"

var (
	// ErrNotFound is returned when a lead, campaign, workflow version or run does not exist.
	ErrNotFound = eris.New("not found")

	// ErrInvalidStatus is returned when a status is not legal for the step it targets.
	ErrInvalidStatus = eris.New("invalid step status")

	// ErrUnknownStep is returned for a step name outside the pipeline.
	ErrUnknownStep = eris.New("unknown step")

	// ErrInvalidWorkflowType is returned for a workflow type other than precrafter or crafter.
	ErrInvalidWorkflowType = eris.New("invalid workflow type")
)
