package leads

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/model"
)

func TestUpdateStepStatus_FiltersExtraFields(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	want := lead(9, model.NewStepStatus().With(model.StepBox1, model.StatusFit))
	st.On("PatchLead", mock.Anything, int64(9),
		model.StatusPatch{model.StepBox1: model.StatusFit},
		model.Fields{"instantly_body1": "hello"},
	).Return(&want, nil)

	l, err := svc.UpdateStepStatus(context.Background(), 9, model.StepBox1, model.StatusFit,
		model.Fields{"instantly_body1": "hello", "step_status": "{}", "storage": true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFit, l.StepStatus.Box1)
	assert.Equal(t, model.StatusPending, l.StepStatus.Verification)
	st.AssertExpectations(t)
}

func TestUpdateStepStatus_RejectsIllegalStatus(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	_, err := svc.UpdateStepStatus(context.Background(), 1, model.StepCompScrap, model.StatusHit, nil)
	assert.ErrorIs(t, err, model.ErrInvalidStatus)
	st.AssertNotCalled(t, "PatchLead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStepStatus_NotFound(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	st.On("PatchLead", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(nil, eris.Wrap(model.ErrNotFound, "postgres: patch lead 1"))

	_, err := svc.UpdateStepStatus(context.Background(), 1, model.StepVerification, model.StatusVerified, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMarkAsStorage_IdempotentAndSkipsMissing(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	stored := model.Lead{LeadNumber: 1, Storage: true}
	st.On("MarkAsStorage", mock.Anything, int64(1)).Return(&stored, nil).Twice()
	st.On("MarkAsStorage", mock.Anything, int64(2)).Return(nil, eris.Wrap(model.ErrNotFound, "missing"))

	n, err := svc.MarkAsStorage(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.MarkAsStorage(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st.AssertExpectations(t)
}

func TestGetMetrics_ZeroLeads(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	st.On("FunnelCounts", mock.Anything, "").Return(model.FunnelCounts{}, nil)

	m, err := svc.GetMetrics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, model.Metrics{}, *m)
}

func TestGetInput_WrapsStoreError(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	st.On("StepInput", mock.Anything, "nope", 10).Return(nil, eris.Wrap(model.ErrUnknownStep, "postgres"))

	_, err := svc.GetInput(context.Background(), "nope", 10)
	assert.ErrorIs(t, err, model.ErrUnknownStep)
}

func TestInputRows(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	rows := []model.InputRow{{"LeadNumber": int64(1001), "companyName": "Acme"}}
	st.On("StepRows", mock.Anything, "box1", []int64{1001}).Return(rows, nil)

	got, err := svc.InputRows(context.Background(), "box1", []int64{1001})
	require.NoError(t, err)
	assert.Equal(t, rows, got)
	st.AssertExpectations(t)
}
