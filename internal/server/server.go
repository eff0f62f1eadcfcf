// Package server exposes the lead state machine, workflow store and flows
// over HTTP for the studio front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/flows"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

// LeadService is the lead state machine surface the API exposes.
type LeadService interface {
	GetLead(ctx context.Context, leadNumber int64) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	Update(ctx context.Context, leadNumber int64, fields model.Fields) (*model.Lead, error)
	ApplyPatch(ctx context.Context, leadNumber int64, patch model.StatusPatch, extra model.Fields) (*model.Lead, error)
	Send(ctx context.Context, transition string, leadNumbers []int64) (*model.TransitionResult, error)
	GetInput(ctx context.Context, view string, limit int) ([]model.InputRow, error)
	GetMetrics(ctx context.Context, campaignID string) (*model.Metrics, error)
	ImportLeads(ctx context.Context, campaignID string, records []map[string]string, opts leads.ImportOptions) (*leads.LeadImportResult, error)
	ImportStepOutput(ctx context.Context, step model.Step, records []leads.Record) (*leads.ImportResult, error)
}

// WorkflowStore persists workflow versions and runs.
type WorkflowStore interface {
	SaveVersion(ctx context.Context, v model.WorkflowVersion) (*model.WorkflowVersion, error)
	LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error)
	GetVersion(ctx context.Context, typ model.WorkflowType, version int) (*model.WorkflowVersion, error)
	ListVersions(ctx context.Context, typ model.WorkflowType) ([]model.WorkflowVersion, error)
	SaveRun(ctx context.Context, run *model.WorkflowRun) error
	GetRun(ctx context.Context, id string) (*model.WorkflowRun, error)
	ListRuns(ctx context.Context, typ model.WorkflowType, limit int) ([]model.WorkflowRun, error)
}

// FlowService runs the composed flows.
type FlowService interface {
	RunVerification(ctx context.Context, leadNumbers []int64) (*flows.VerificationSummary, error)
	RunBox1(ctx context.Context, leadNumbers []int64) (*flows.Box1Summary, error)
	Chat(ctx context.Context, message string, data any) (string, error)
	Variations(ctx context.Context, n workflow.LLMNode, instructions []string) ([]flows.Variation, error)
	RunNode(ctx context.Context, n workflow.Node, rc *workflow.RunContext) (*flows.NodeRun, error)
}

// Config holds server settings.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Server is the studio HTTP API.
type Server struct {
	leads     LeadService
	workflows WorkflowStore
	flows     FlowService
	validate  *validator.Validate
	router    chi.Router
	cfg       Config
}

// New builds a Server and its routes.
func New(cfg Config, ls LeadService, ws WorkflowStore, fs FlowService) *Server {
	s := &Server{
		leads:     ls,
		workflows: ws,
		flows:     fs,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/workflows", func(r chi.Router) {
		r.Post("/run-node", s.handleRunNode)
		r.Post("/chat", s.handleChat)
		r.Post("/variations", s.handleVariations)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Route("/{type}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkflow)
			r.Post("/", s.handleSaveWorkflow)
			r.Get("/versions", s.handleListVersions)
			r.Get("/versions/{version}", s.handleGetVersion)
			r.Get("/runs", s.handleListRuns)
			r.Post("/runs", s.handleSaveRun)
		})
	})

	r.Route("/api/leads", func(r chi.Router) {
		r.Get("/", s.handleListLeads)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/input/{step}", s.handleInput)
		r.Post("/send/{transition}", s.handleSend)
		r.Post("/import", s.handleImportLeads)
		r.Post("/import-output/{step}", s.handleImportOutput)
		r.Post("/run-verification", s.handleRunVerification)
		r.Post("/run-box1", s.handleRunBox1)

		r.Get("/{leadNumber}", s.handleGetLead)
		r.Put("/{leadNumber}", s.handleUpdateLead)
		r.Post("/{leadNumber}/step-status", s.handleStepStatus)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Flows call out to LLM providers and can take minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
