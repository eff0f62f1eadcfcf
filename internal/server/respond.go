package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/flows"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// requestError is a request problem found by the handlers themselves.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// clientErrors map to 400.
var clientErrors = []error{
	model.ErrInvalidStatus,
	model.ErrUnknownStep,
	model.ErrInvalidWorkflowType,
	llm.ErrUnsupportedModel,
	leads.ErrUnknownTransition,
	flows.ErrMissingNode,
	workflow.ErrNoAPIKey,
}

// HTTPStatus returns the status code for an error.
func HTTPStatus(err error) int {
	if errors.Is(err, model.ErrNotFound) {
		return http.StatusNotFound
	}
	var verrs validator.ValidationErrors
	var rerr *requestError
	if errors.As(err, &verrs) || errors.As(err, &rerr) {
		return http.StatusBadRequest
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

// writeError maps err to a status and writes {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": message(err)})
}

// message is the client-facing text of err.
func message(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
	return err.Error()
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// decode reads a JSON body into the struct v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	if err := s.validate.Struct(v); err != nil {
		return err
	}
	return nil
}

func workflowType(r *http.Request) (model.WorkflowType, error) {
	return model.ParseWorkflowType(chi.URLParam(r, "type"))
}

func leadNumberParam(r *http.Request) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, "leadNumber"), 10, 64)
	if err != nil || n <= 0 {
		return 0, badRequest("invalid lead number")
	}
	return n, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + key)
	}
	return n, nil
}
