package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-studio/internal/flows"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/model"
)

func TestListLeads(t *testing.T) {
	h := newHarness()
	h.leads.On("ListLeads", mock.Anything, model.LeadFilter{CampaignID: "c1", Limit: 25, Offset: 50}).
		Return([]model.Lead{{LeadNumber: 1001}, {LeadNumber: 1002}}, nil)

	rec := h.do(t, http.MethodGet, "/api/leads?campaignId=c1&limit=25&offset=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["data"], 2)
	assert.Equal(t, map[string]any{"count": float64(2), "limit": float64(25), "offset": float64(50)}, body["pagination"])
}

func TestListLeads_Defaults(t *testing.T) {
	h := newHarness()
	h.leads.On("ListLeads", mock.Anything, model.LeadFilter{Limit: 100}).Return([]model.Lead{}, nil)

	rec := h.do(t, http.MethodGet, "/api/leads", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/leads?offset=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	h := newHarness()
	m := model.ComputeMetrics(model.FunnelCounts{TotalExport: 10, SentVerification: 5})
	h.leads.On("GetMetrics", mock.Anything, "c7").Return(&m, nil)

	rec := h.do(t, http.MethodGet, "/api/leads/metrics?campaignId=c7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestInput(t *testing.T) {
	h := newHarness()
	h.leads.On("GetInput", mock.Anything, "box1", 1000).
		Return([]model.InputRow{{"LeadNumber": 1}}, nil)
	h.leads.On("GetInput", mock.Anything, "instantlyStock", 5).Return(nil, nil)
	h.leads.On("GetInput", mock.Anything, "nope", 1000).
		Return(nil, eris.Wrap(model.ErrUnknownStep, `postgres: view "nope"`))

	rec := h.do(t, http.MethodGet, "/api/leads/input/box1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = h.do(t, http.MethodGet, "/api/leads/input/instantlyStock?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["data"])

	rec = h.do(t, http.MethodGet, "/api/leads/input/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLead(t *testing.T) {
	h := newHarness()
	h.leads.On("GetLead", mock.Anything, int64(1001)).Return(&model.Lead{LeadNumber: 1001, Email: "a@b.co"}, nil)
	h.leads.On("GetLead", mock.Anything, int64(404)).Return(nil, eris.Wrap(model.ErrNotFound, "lead 404"))

	rec := h.do(t, http.MethodGet, "/api/leads/1001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@b.co", decodeBody(t, rec)["email"])

	rec = h.do(t, http.MethodGet, "/api/leads/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/leads/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid lead number", decodeBody(t, rec)["error"])
}

func TestUpdateLead(t *testing.T) {
	h := newHarness()
	h.leads.On("Update", mock.Anything, int64(7), model.Fields{"website": "acme.com"}).
		Return(&model.Lead{LeadNumber: 7, Website: "acme.com"}, nil)

	rec := h.do(t, http.MethodPut, "/api/leads/7", map[string]any{"website": "acme.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "acme.com", decodeBody(t, rec)["website"])

	rec = h.do(t, http.MethodPut, "/api/leads/7", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStepStatus(t *testing.T) {
	h := newHarness()
	patch := model.StatusPatch{model.StepBox1: model.StatusHit}
	h.leads.On("ApplyPatch", mock.Anything, int64(3), patch, model.Fields{"box1_result": "HIT"}).
		Return(&model.Lead{LeadNumber: 3}, nil)
	h.leads.On("ApplyPatch", mock.Anything, int64(4), model.StatusPatch{model.StepBox1: "great"}, model.Fields(nil)).
		Return(nil, eris.Wrap(model.ErrInvalidStatus, `model: "great" is not a box1 status`))

	rec := h.do(t, http.MethodPost, "/api/leads/3/step-status", map[string]any{
		"status": map[string]string{"box1": "hit"},
		"fields": map[string]any{"box1_result": "HIT"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/leads/4/step-status", map[string]any{
		"status": map[string]string{"box1": "great"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/leads/4/step-status", map[string]any{"status": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSend(t *testing.T) {
	h := newHarness()
	res := &model.TransitionResult{Requested: 2, Updated: []model.Lead{{LeadNumber: 1}}, Skipped: []int64{2}}
	h.leads.On("Send", mock.Anything, "compScrap", []int64{1, 2}).Return(res, nil)
	h.leads.On("Send", mock.Anything, "teleport", []int64{1}).
		Return(nil, eris.Wrap(leads.ErrUnknownTransition, `leads: transition "teleport"`))

	rec := h.do(t, http.MethodPost, "/api/leads/send/compScrap", map[string]any{"leadNumbers": []int64{1, 2}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "1 leads sent to compScrap", body["message"])

	rec = h.do(t, http.MethodPost, "/api/leads/send/teleport", map[string]any{"leadNumbers": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []any{map[string]any{}, map[string]any{"leadNumbers": []int64{}}, map[string]any{"leadNumbers": []int64{0}}} {
		rec = h.do(t, http.MethodPost, "/api/leads/send/compScrap", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestImportLeads(t *testing.T) {
	h := newHarness()
	records := []map[string]string{{"email": "A@B.CO", "company_name": "Acme"}}
	h.leads.On("ImportLeads", mock.Anything, "spring", records, leads.DefaultImportOptions()).
		Return(&leads.LeadImportResult{CampaignID: "spring", Total: 1, Imported: 1}, nil)
	appendOpts := leads.ImportOptions{Duplicates: leads.DuplicateAppend}
	h.leads.On("ImportLeads", mock.Anything, "fall", records, appendOpts).
		Return(&leads.LeadImportResult{CampaignID: "fall", Total: 1, Imported: 1}, nil)

	rec := h.do(t, http.MethodPost, "/api/leads/import", map[string]any{"campaignId": "spring", "records": records})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rec)["data"].(map[string]any)["imported"])

	rec = h.do(t, http.MethodPost, "/api/leads/import", map[string]any{
		"campaignId": "fall",
		"records":    records,
		"options":    map[string]any{"dupStrategy": "append"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/leads/import", map[string]any{"records": records})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportOutput(t *testing.T) {
	h := newHarness()
	h.leads.On("ImportStepOutput", mock.Anything, model.StepVerification, []leads.Record{
		{"LeadNumber": float64(5), "validation_success": "true"},
	}).Return(&leads.ImportResult{Processed: 1}, nil)

	rec := h.do(t, http.MethodPost, "/api/leads/import-output/verification", map[string]any{
		"records": []map[string]any{{"LeadNumber": 5, "validation_success": "true"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rec)["data"].(map[string]any)["processed"])

	rec = h.do(t, http.MethodPost, "/api/leads/import-output/export", map[string]any{
		"records": []map[string]any{{"LeadNumber": 5}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	h.leads.AssertNumberOfCalls(t, "ImportStepOutput", 1)
}

func TestRunVerification(t *testing.T) {
	h := newHarness()
	h.flows.On("RunVerification", mock.Anything, []int64{1, 2, 3}).Return(&flows.VerificationSummary{
		Count: 3, Valid: 1, Invalid: 1, NoEmail: 1, LeadsUpdated: 3, ReadyForCompScrap: 1,
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/leads/run-verification", map[string]any{"leadNumbers": []int64{1, 2, 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Verification workflow completed for 3 leads", body["message"])
	assert.Equal(t, map[string]any{
		"valid": float64(1), "invalid": float64(1), "errors": float64(0), "noEmail": float64(1),
	}, body["results"])
	assert.Equal(t, float64(3), body["leadsUpdated"])
	assert.Equal(t, float64(1), body["readyForCompScrap"])
}

func TestRunVerification_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no leads", eris.Wrap(model.ErrNotFound, "flows: no valid leads found"), http.StatusNotFound},
		{"no node", flows.ErrMissingNode, http.StatusBadRequest},
		{"store down", errors.New("conn refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.flows.On("RunVerification", mock.Anything, []int64{9}).Return(nil, tt.err)
			rec := h.do(t, http.MethodPost, "/api/leads/run-verification", map[string]any{"leadNumbers": []int64{9}})
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestRunBox1(t *testing.T) {
	h := newHarness()
	h.flows.On("RunBox1", mock.Anything, []int64{5}).Return(&flows.Box1Summary{
		Count:       1,
		LeadNumbers: []int64{5},
		Data:        []model.InputRow{{"LeadNumber": 5}},
		WorkflowResults: []model.NodeResult{
			{NodeID: "b1out", Type: "BOX1_OUTPUT", Status: model.NodeSuccess},
		},
		RunID:      "run-1",
		Transition: &model.TransitionResult{Requested: 1},
	}, nil)

	rec := h.do(t, http.MethodPost, "/api/leads/run-box1", map[string]any{"leadNumbers": []int64{5}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "1 leads sent to Box1 workflow", body["message"])
	assert.Equal(t, []any{float64(5)}, body["leadNumbers"])
	assert.Equal(t, "run-1", body["runId"])
	assert.Len(t, body["workflowResults"], 1)
}
