package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

func TestHandleErrorTypedMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus int
	}{
		{
			"request error",
			&RequestError{Message: "invalid JSON"},
			types.ErrorTypeInvalidRequest, 400,
		},
		{
			"validation",
			&providers.ValidationError{Field: "max_tokens", Message: "max_tokens is required"},
			types.ErrorTypeInvalidRequest, 400,
		},
		{
			"unknown provider",
			&providers.ProviderNotFoundError{Provider: "nope"},
			types.ErrorTypeNotFound, 404,
		},
		{
			"unknown model",
			&providers.ModelNotFoundError{Provider: "gemini", Model: "missing"},
			types.ErrorTypeNotFound, 404,
		},
		{
			"not authenticated",
			&providers.NotAuthenticatedError{Provider: "gemini"},
			types.ErrorTypeOverloaded, 503,
		},
		{
			"credential rejected",
			&providers.AuthError{Provider: "openrouter", Message: "bad key"},
			types.ErrorTypePermission, 403,
		},
		{
			"rate limited",
			&providers.RateLimitError{Provider: "openrouter"},
			types.ErrorTypeRateLimit, 429,
		},
		{
			"timeout",
			&providers.TimeoutError{Provider: "gemini", Timeout: 30 * time.Second},
			types.ErrorTypeTimeout, 504,
		},
		{
			"parse failure",
			&providers.ParseError{Provider: "openrouter", Cause: errors.New("bad json")},
			types.ErrorTypeUpstream, 502,
		},
		{
			"stream failure",
			&providers.StreamError{Provider: "openrouter", Message: "connection reset"},
			types.ErrorTypeUpstream, 502,
		},
		{
			"config",
			&providers.ConfigError{Provider: "gemini", Field: "auth", Message: "no token source"},
			types.ErrorTypeOverloaded, 503,
		},
		{
			"deadline",
			context.DeadlineExceeded,
			types.ErrorTypeTimeout, 504,
		},
		{
			"unknown",
			errors.New("something odd"),
			types.ErrorTypeAPI, 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := HandleError(tt.err)
			if resp.Error.Type != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Error.Type, tt.wantKind)
			}
			if got := resp.Error.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestHandleErrorUnknownHidesDetails(t *testing.T) {
	resp := HandleError(errors.New("pq: connection to 10.0.0.3 refused"))
	if strings.Contains(resp.Error.Message, "10.0.0.3") {
		t.Errorf("internal detail leaked: %q", resp.Error.Message)
	}
}

func TestHandleProviderErrorByStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantKind string
	}{
		{401, types.ErrorTypePermission},
		{403, types.ErrorTypePermission},
		{404, types.ErrorTypeNotFound},
		{429, types.ErrorTypeRateLimit},
		{400, types.ErrorTypeInvalidRequest},
		{500, types.ErrorTypeUpstream},
		{503, types.ErrorTypeUpstream},
		{0, types.ErrorTypeUpstream},
	}

	for _, tt := range tests {
		err := &providers.ProviderError{Provider: "openrouter", StatusCode: tt.status, Message: "boom"}
		resp := HandleError(err)
		if resp.Error.Type != tt.wantKind {
			t.Errorf("status %d: kind = %q, want %q", tt.status, resp.Error.Type, tt.wantKind)
		}
	}
}

func TestHandleProviderErrorEchoesSafeBody(t *testing.T) {
	err := &providers.ProviderError{
		Provider:   "openrouter",
		StatusCode: 502,
		Message:    "bad gateway",
		Body:       `{"error":{"message":"model overloaded"}}`,
	}
	resp := HandleError(err)
	if !strings.Contains(resp.Error.Message, "model overloaded") {
		t.Errorf("upstream body dropped: %q", resp.Error.Message)
	}

	// Oversized bodies are not echoed.
	err.Body = strings.Repeat("x", maxUpstreamBodyEcho+1)
	resp = HandleError(err)
	if strings.Contains(resp.Error.Message, "xxxx") {
		t.Error("oversized upstream body echoed")
	}

	// Binary bodies are not echoed.
	err.Body = string([]byte{0xff, 0xfe, 0x00})
	resp = HandleError(err)
	if strings.Contains(resp.Error.Message, "\xff") {
		t.Error("binary upstream body echoed")
	}
}
