package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStepStatus(t *testing.T) {
	t.Parallel()

	s := NewStepStatus()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"export":true,"verification":"pending","compScrap":"pending","box1":"pending","instantly":"pending"}`, string(data))
}

func TestValidateStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step    Step
		status  Status
		wantErr error
	}{
		{StepVerification, StatusVerified, nil},
		{StepVerification, StatusScraped, ErrInvalidStatus},
		{StepCompScrap, StatusScraped, nil},
		{StepBox1, StatusNoFit, nil},
		{StepBox1, StatusCompleted, nil},
		{StepBox1, StatusStock, ErrInvalidStatus},
		{StepInstantly, StatusStock, nil},
		{StepInstantly, StatusDropped, nil},
		{Step("export"), StatusPending, ErrUnknownStep},
	}

	for _, tt := range tests {
		t.Run(string(tt.step)+"/"+string(tt.status), func(t *testing.T) {
			t.Parallel()
			err := ValidateStatus(tt.step, tt.status)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParseStep(t *testing.T) {
	t.Parallel()

	step, err := ParseStep("compScrap")
	require.NoError(t, err)
	assert.Equal(t, StepCompScrap, step)

	_, err = ParseStep("compscrap")
	assert.True(t, errors.Is(err, ErrUnknownStep))
}

func TestStepStatus_UnmarshalFillsMissingKeys(t *testing.T) {
	t.Parallel()

	var s StepStatus
	require.NoError(t, json.Unmarshal([]byte(`{"verification":"verified"}`), &s))
	assert.True(t, s.Export)
	assert.Equal(t, StatusVerified, s.Verification)
	assert.Equal(t, StatusPending, s.CompScrap)
	assert.Equal(t, StatusPending, s.Instantly)
}

func TestStatusPatch_ApplyPreservesOtherSteps(t *testing.T) {
	t.Parallel()

	before := NewStepStatus().With(StepVerification, StatusVerified).With(StepCompScrap, StatusScraped)
	after := StatusPatch{StepBox1: StatusHit}.Apply(before)

	assert.Equal(t, StatusHit, after.Box1)
	assert.Equal(t, before.Verification, after.Verification)
	assert.Equal(t, before.CompScrap, after.CompScrap)
	assert.Equal(t, before.Instantly, after.Instantly)
	assert.Equal(t, before.Export, after.Export)
}

func TestStatusPatch_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, StatusPatch{StepVerification: StatusVerified, StepCompScrap: StatusPending}.Validate())
	assert.Error(t, StatusPatch{StepInstantly: StatusFit}.Validate())
}
