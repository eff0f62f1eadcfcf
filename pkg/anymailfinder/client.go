// Package anymailfinder is a minimal client for the Anymailfinder email
// verification API.
package anymailfinder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.anymailfinder.com/v5.1"

// Client verifies email deliverability.
type Client interface {
	VerifyEmail(ctx context.Context, email string) (*Verification, error)
}

// Verification is the decoded verify-email response.
type Verification struct {
	EmailStatus  string  `json:"email_status"`
	IsDisposable bool    `json:"is_disposable"`
	IsRole       bool    `json:"is_role"`
	IsCatchall   bool    `json:"is_catchall"`
	Confidence   float64 `json:"confidence"`
	Result       *struct {
		Status string `json:"status"`
	} `json:"result,omitempty"`
}

// Status returns email_status, falling back to result.status, then "unknown".
func (v *Verification) Status() string {
	if v.EmailStatus != "" {
		return v.EmailStatus
	}
	if v.Result != nil && v.Result.Status != "" {
		return v.Result.Status
	}
	return "unknown"
}

// Valid reports whether the address was confirmed deliverable.
func (v *Verification) Valid() bool { return v.Status() == "valid" }

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anymailfinder: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Anymailfinder client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*Verification, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, eris.Wrap(err, "anymailfinder: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify-email", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "anymailfinder: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "anymailfinder: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "anymailfinder: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var v Verification
	if err := json.Unmarshal(respBody, &v); err != nil {
		return nil, eris.Wrap(err, "anymailfinder: unmarshal response")
	}
	return &v, nil
}
