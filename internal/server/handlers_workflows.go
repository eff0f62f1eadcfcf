package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// SaveWorkflowRequest is the body of POST /api/workflows/{type}.
type SaveWorkflowRequest struct {
	Nodes  []json.RawMessage `json:"nodes"`
	Edges  []json.RawMessage `json:"edges"`
	Label  string            `json:"label" validate:"max=200"`
	Folder string            `json:"folder" validate:"max=200"`
}

// SaveRunRequest is the body of POST /api/workflows/{type}/runs.
type SaveRunRequest struct {
	Status    model.RunStatus `json:"status" validate:"omitempty,oneof=pending running completed failed"`
	StartTime *time.Time      `json:"startTime"`
	EndTime   *time.Time      `json:"endTime"`
	Results   json.RawMessage `json:"results"`
	Version   *int            `json:"version" validate:"omitempty,gte=1"`
}

// RunNodeRequest is the body of POST /api/workflows/run-node.
type RunNodeRequest struct {
	Node    json.RawMessage      `json:"node"`
	Context *workflow.RunContext `json:"context"`
}

// ChatRequest is the body of POST /api/workflows/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	Context any    `json:"context"`
}

// VariationsRequest is the body of POST /api/workflows/variations.
type VariationsRequest struct {
	Node         json.RawMessage `json:"node"`
	Instructions []string        `json:"instructions" validate:"required"`
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.workflows.LatestVersion(r.Context(), typ)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// A type never saved opens as an empty canvas.
		writeJSON(w, http.StatusOK, model.WorkflowVersion{
			Type:    typ,
			Content: model.Graph{Nodes: []json.RawMessage{}, Edges: []json.RawMessage{}},
		})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req SaveWorkflowRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Nodes == nil {
		req.Nodes = []json.RawMessage{}
	}
	if req.Edges == nil {
		req.Edges = []json.RawMessage{}
	}
	if _, err := workflow.DecodeNodes(req.Nodes); err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	v, err := s.workflows.SaveVersion(r.Context(), model.WorkflowVersion{
		Type:    typ,
		Content: model.Graph{Nodes: req.Nodes, Edges: req.Edges},
		Label:   req.Label,
		Folder:  req.Folder,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      v.ID,
		"version": v.Version,
		"label":   v.Label,
	})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	versions, err := s.workflows.ListVersions(r.Context(), typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, r, badRequest("invalid version"))
		return
	}
	v, err := s.workflows.GetVersion(r.Context(), typ, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSaveRun(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req SaveRunRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	run := &model.WorkflowRun{
		Type:    typ,
		Status:  req.Status,
		Results: req.Results,
	}
	if req.EndTime != nil {
		run.EndTime = *req.EndTime
	}
	if req.StartTime != nil {
		run.StartTime = *req.StartTime
	} else {
		run.StartTime = time.Now().UTC()
	}
	if req.Version != nil {
		run.WorkflowVersion = *req.Version
	}
	if err := s.workflows.SaveRun(r.Context(), run); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": run.ID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	typ, err := workflowType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	runs, err := s.workflows.ListRuns(r.Context(), typ, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.workflows.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunNode(w http.ResponseWriter, r *http.Request) {
	var req RunNodeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Node) == 0 || string(req.Node) == "null" {
		writeError(w, r, badRequest("Node data required"))
		return
	}
	n, err := workflow.DecodeNode(req.Node)
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	out, err := s.flows.RunNode(r.Context(), n, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"output":  out.Output,
		"input":   out.Input,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.flows.Chat(r.Context(), req.Message, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "output": reply})
}

func (s *Server) handleVariations(w http.ResponseWriter, r *http.Request) {
	var req VariationsRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Node) == 0 || string(req.Node) == "null" {
		writeError(w, r, badRequest("Node and instructions array required"))
		return
	}
	n, err := workflow.DecodeNode(req.Node)
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}
	llmNode, ok := n.(workflow.LLMNode)
	if !ok {
		writeError(w, r, badRequest("variations need an LLM node, got "+n.TypeName()))
		return
	}

	variations, err := s.flows.Variations(r.Context(), llmNode, req.Instructions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "variations": variations})
}
