package leads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-studio/internal/config"
	"github.com/sells-group/lead-studio/internal/model"
)

func lead(n int64, ss model.StepStatus) model.Lead {
	return model.Lead{LeadNumber: n, StepStatus: ss}
}

func TestSend_AtomicReportsSkipped(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchAtomic)

	sent := model.NewStepStatus().With(model.StepVerification, model.StatusSent)
	st.On("ApplyTransition", mock.Anything, transitions["verification"], []int64{1, 2, 3}).
		Return([]model.Lead{lead(1, sent), lead(3, sent)}, nil)

	res, err := svc.SendToStep(context.Background(), model.StepVerification, []int64{1, 2, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Len(t, res.Updated, 2)
	assert.Equal(t, []int64{2}, res.Skipped)
	assert.Empty(t, res.Failed)
	st.AssertExpectations(t)
}

func TestSend_AtomicStorageErrorPropagates(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, "")

	st.On("ApplyTransition", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := svc.Send(context.Background(), "box1", []int64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSend_PerRowIsolatesFailures(t *testing.T) {
	st := &mockStore{}
	svc := NewService(st, config.BatchPerRow)
	tr := transitions["instantlyStock"]

	stocked := lead(1, model.NewStepStatus().With(model.StepBox1, model.StatusHit).With(model.StepInstantly, model.StatusStock))
	st.On("ApplyTransitionRow", mock.Anything, tr, int64(1)).Return(&stocked, nil)
	st.On("ApplyTransitionRow", mock.Anything, tr, int64(2)).Return(nil, nil)
	st.On("ApplyTransitionRow", mock.Anything, tr, int64(3)).Return(nil, assert.AnError)

	res, err := svc.Send(context.Background(), "instantlyStock", []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, model.StatusStock, res.Updated[0].StepStatus.Instantly)
	assert.Equal(t, []int64{2}, res.Skipped)
	assert.Contains(t, res.Failed, int64(3))
}

func TestSend_UnknownTransition(t *testing.T) {
	svc := NewService(&mockStore{}, config.BatchAtomic)

	_, err := svc.Send(context.Background(), "storage", []int64{1})
	assert.ErrorIs(t, err, ErrUnknownTransition)
}

func TestTransitionTable_Guards(t *testing.T) {
	tests := []struct {
		name     string
		step     model.Step
		from, to model.Status
		requires []model.Condition
	}{
		{"verification", model.StepVerification, model.StatusPending, model.StatusSent, nil},
		{"compScrap", model.StepCompScrap, model.StatusPending, model.StatusSent,
			[]model.Condition{{Step: model.StepVerification, Status: model.StatusVerified}}},
		{"box1", model.StepBox1, model.StatusPending, model.StatusSent,
			[]model.Condition{{Step: model.StepCompScrap, Status: model.StatusScraped}}},
		{"instantly", model.StepInstantly, model.StatusPending, model.StatusSent,
			[]model.Condition{{Step: model.StepBox1, Status: model.StatusHit}}},
		{"instantlyStock", model.StepInstantly, model.StatusPending, model.StatusStock,
			[]model.Condition{{Step: model.StepBox1, Status: model.StatusHit}}},
		{"stockToInstantly", model.StepInstantly, model.StatusStock, model.StatusSent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := transitions[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.step, tr.Step)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)
			assert.Equal(t, tt.requires, tr.Requires)
			assert.NotEmpty(t, tr.Stamp())
		})
	}
	assert.Len(t, Transitions(), len(tests))
}
