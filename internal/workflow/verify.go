package workflow

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/resilience"
	"github.com/sells-group/lead-studio/pkg/anymailfinder"
)

// ErrNoAPIKey is returned when neither the node nor the configuration
// supplies an email verification key.
var ErrNoAPIKey = eris.New("email verification api key is required")

// Verification statuses recorded besides the provider's own.
const (
	VerificationNoEmail = "no_email"
	VerificationError   = "error"
)

// VerificationResult is the verification_result document stored per lead.
type VerificationResult struct {
	Status       string  `json:"status"`
	IsValid      bool    `json:"is_valid"`
	IsDisposable bool    `json:"is_disposable"`
	IsRole       bool    `json:"is_role"`
	IsCatchall   bool    `json:"is_catchall"`
	Confidence   float64 `json:"confidence"`
	Error        string  `json:"error,omitempty"`
}

// VerifiedLead pairs a lead with its verification outcome.
type VerifiedLead struct {
	Lead       map[string]any
	LeadNumber int64
	Email      string
	Result     VerificationResult
}

// ClientFactory builds a verification client for an API key.
type ClientFactory func(apiKey string) anymailfinder.Client

// EmailVerifier checks lead emails through a rate-limited, bounded fan-out.
type EmailVerifier struct {
	newClient   ClientFactory
	defaultKey  string
	gate        *resilience.Gate
	concurrency int

	mu      sync.Mutex
	clients map[string]anymailfinder.Client
}

// NewEmailVerifier returns a verifier. A concurrency below 1 verifies
// sequentially.
func NewEmailVerifier(newClient ClientFactory, defaultKey string, gate *resilience.Gate, concurrency int) *EmailVerifier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &EmailVerifier{
		newClient:   newClient,
		defaultKey:  defaultKey,
		gate:        gate,
		concurrency: concurrency,
		clients:     map[string]anymailfinder.Client{},
	}
}

func (v *EmailVerifier) client(apiKey string) (anymailfinder.Client, error) {
	if apiKey == "" {
		apiKey = v.defaultKey
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.clients[apiKey]
	if !ok {
		c = v.newClient(apiKey)
		v.clients[apiKey] = c
	}
	return c, nil
}

// Verify checks each lead's email. apiKey overrides the configured key.
// Per-lead failures are recorded in the result and never abort the batch;
// results keep the input order.
func (v *EmailVerifier) Verify(ctx context.Context, apiKey string, rows []map[string]any) ([]VerifiedLead, error) {
	c, err := v.client(apiKey)
	if err != nil {
		return nil, err
	}

	out := make([]VerifiedLead, len(rows))
	g := new(errgroup.Group)
	g.SetLimit(v.concurrency)
	for i, row := range rows {
		rec := leads.Record(row)
		n, _ := rec.LeadNumber()
		out[i] = VerifiedLead{Lead: row, LeadNumber: n, Email: rec.Value("email", "Email")}
		if out[i].Email == "" {
			out[i].Result = VerificationResult{Status: VerificationNoEmail, Error: "No email address"}
			continue
		}

		g.Go(func() error {
			out[i].Result = v.verifyOne(ctx, c, out[i].LeadNumber, out[i].Email)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, eris.Wrap(err, "workflow: verify emails")
	}
	return out, nil
}

func (v *EmailVerifier) verifyOne(ctx context.Context, c anymailfinder.Client, n int64, email string) VerificationResult {
	res, err := resilience.Call(ctx, v.gate, func(ctx context.Context) (*anymailfinder.Verification, error) {
		return c.VerifyEmail(ctx, email)
	})
	if err != nil {
		zap.L().Warn("workflow: email verification failed",
			zap.Int64("lead_number", n),
			zap.Error(err),
		)
		return VerificationResult{Status: VerificationError, Error: err.Error()}
	}
	return VerificationResult{
		Status:       res.Status(),
		IsValid:      res.Valid(),
		IsDisposable: res.IsDisposable,
		IsRole:       res.IsRole,
		IsCatchall:   res.IsCatchall,
		Confidence:   res.Confidence,
	}
}
