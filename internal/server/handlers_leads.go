package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/model"
)

// LeadNumbersRequest carries a batch of lead numbers.
type LeadNumbersRequest struct {
	LeadNumbers []int64 `json:"leadNumbers" validate:"required,min=1,dive,gt=0"`
}

// StepStatusRequest merges step statuses into one lead.
type StepStatusRequest struct {
	Status model.StatusPatch `json:"status" validate:"required,min=1"`
	Fields model.Fields      `json:"fields"`
}

// ImportLeadsRequest is the body of POST /api/leads/import. Records are
// already mapped to lead columns.
type ImportLeadsRequest struct {
	CampaignID string               `json:"campaignId" validate:"required"`
	Records    []map[string]string  `json:"records" validate:"required,min=1"`
	Options    *leads.ImportOptions `json:"options"`
}

// ImportOutputRequest is the body of POST /api/leads/import-output/{step}.
type ImportOutputRequest struct {
	Records []map[string]any `json:"records" validate:"required,min=1"`
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := model.LeadFilter{
		CampaignID: r.URL.Query().Get("campaignId"),
		Limit:      limit,
		Offset:     offset,
	}
	list, err := s.leads.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    list,
		"pagination": map[string]int{
			"count":  len(list),
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.leads.GetMetrics(r.Context(), r.URL.Query().Get("campaignId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": m})
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 1000)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 1000
	}
	rows, err := s.leads.GetInput(r.Context(), chi.URLParam(r, "step"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.InputRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rows, "count": len(rows)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	n, err := leadNumberParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.leads.GetLead(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	n, err := leadNumberParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var fields model.Fields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	if len(fields) == 0 {
		writeError(w, r, badRequest("no fields to update"))
		return
	}
	l, err := s.leads.Update(r.Context(), n, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleStepStatus(w http.ResponseWriter, r *http.Request) {
	n, err := leadNumberParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req StepStatusRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.leads.ApplyPatch(r.Context(), n, req.Status, req.Fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req LeadNumbersRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "transition")
	res, err := s.leads.Send(r.Context(), name, req.LeadNumbers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d leads sent to %s", len(res.Updated), name),
		"count":   len(res.Updated),
		"result":  res,
	})
}

func (s *Server) handleImportLeads(w http.ResponseWriter, r *http.Request) {
	var req ImportLeadsRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	opts := leads.DefaultImportOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	res, err := s.leads.ImportLeads(r.Context(), req.CampaignID, req.Records, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

func (s *Server) handleImportOutput(w http.ResponseWriter, r *http.Request) {
	step, err := model.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ImportOutputRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	records := make([]leads.Record, len(req.Records))
	for i, rec := range req.Records {
		records[i] = leads.Record(rec)
	}
	res, err := s.leads.ImportStepOutput(r.Context(), step, records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

func (s *Server) handleRunVerification(w http.ResponseWriter, r *http.Request) {
	var req LeadNumbersRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.flows.RunVerification(r.Context(), req.LeadNumbers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Verification workflow completed for %d leads", sum.Count),
		"count":   sum.Count,
		"results": map[string]int{
			"valid":   sum.Valid,
			"invalid": sum.Invalid,
			"errors":  sum.Errors,
			"noEmail": sum.NoEmail,
		},
		"leadsUpdated":      sum.LeadsUpdated,
		"readyForCompScrap": sum.ReadyForCompScrap,
	})
}

func (s *Server) handleRunBox1(w http.ResponseWriter, r *http.Request) {
	var req LeadNumbersRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.flows.RunBox1(r.Context(), req.LeadNumbers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         fmt.Sprintf("%d leads sent to Box1 workflow", sum.Count),
		"count":           sum.Count,
		"leadNumbers":     sum.LeadNumbers,
		"data":            sum.Data,
		"workflowResults": sum.WorkflowResults,
		"runId":           sum.RunID,
		"transition":      sum.Transition,
	})
}
