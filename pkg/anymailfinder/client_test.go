package anymailfinder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus string
		wantValid  bool
	}{
		{
			name:       "valid",
			status:     http.StatusOK,
			body:       `{"input":{"email":"a@b.com"},"email_status":"valid","is_role":true,"confidence":0.9}`,
			wantStatus: "valid",
			wantValid:  true,
		},
		{
			name:       "invalid",
			status:     http.StatusOK,
			body:       `{"email_status":"invalid"}`,
			wantStatus: "invalid",
		},
		{
			name:       "legacy result field",
			status:     http.StatusOK,
			body:       `{"result":{"status":"risky"}}`,
			wantStatus: "risky",
		},
		{
			name:       "no status",
			status:     http.StatusOK,
			body:       `{}`,
			wantStatus: "unknown",
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":"bad key"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/verify-email", r.URL.Path)
				assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "a@b.com", body["email"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("key-1", WithBaseURL(srv.URL))
			v, err := c.VerifyEmail(context.Background(), "a@b.com")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, v.Status())
			assert.Equal(t, tt.wantValid, v.Valid())
		})
	}
}

func TestStatusError_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).VerifyEmail(context.Background(), "a@b.com")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 429, se.HTTPStatus())
}
