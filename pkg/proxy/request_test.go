package proxy

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

func TestParseMessagesRequest(t *testing.T) {
	body := `{
		"model": "gemini:gemini-2.5-pro",
		"max_tokens": 1024,
		"messages": [{"role": "user", "content": "hello"}]
	}`

	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader(body))
	r.Header.Set(AnthropicVersionHeader, "2023-06-01")

	req, err := ParseMessagesRequest(r)
	if err != nil {
		t.Fatalf("ParseMessagesRequest failed: %v", err)
	}
	if req.Model != "gemini:gemini-2.5-pro" {
		t.Errorf("Model = %q", req.Model)
	}
	if req.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", req.MaxTokens)
	}
	if req.Version != "2023-06-01" {
		t.Errorf("Version = %q, want 2023-06-01", req.Version)
	}
	if !bytes.Contains(req.Raw, []byte("gemini-2.5-pro")) {
		t.Error("Raw body not retained")
	}
}

func TestParseMessagesRequestInvalidJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader("{not json"))

	_, err := ParseMessagesRequest(r)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if !strings.Contains(reqErr.Message, "invalid JSON") {
		t.Errorf("message = %q, want invalid JSON mention", reqErr.Message)
	}
}

func TestParseMessagesRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing model", `{"max_tokens":10,"messages":[{"role":"user","content":"x"}]}`, "model"},
		{"missing max_tokens", `{"model":"m","messages":[{"role":"user","content":"x"}]}`, "max_tokens"},
		{"no messages", `{"model":"m","max_tokens":10,"messages":[]}`, "messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader(tt.body))
			_, err := ParseMessagesRequest(r)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if !strings.Contains(reqErr.Message, tt.want) {
				t.Errorf("message = %q, want mention of %q", reqErr.Message, tt.want)
			}
		})
	}
}

func TestParseMessagesRequestTooLarge(t *testing.T) {
	huge := `{"model":"m","max_tokens":10,"messages":[{"role":"user","content":"` +
		strings.Repeat("x", MaxRequestBodySize) + `"}]}`

	r := httptest.NewRequest("POST", "/v1/messages", strings.NewReader(huge))
	_, err := ParseMessagesRequest(r)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if !strings.Contains(reqErr.Message, "maximum size") {
		t.Errorf("message = %q, want size limit mention", reqErr.Message)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		auth   string
		want   string
	}{
		{"x-api-key", "sk-test-123", "", "sk-test-123"},
		{"bearer", "", "Bearer sk-test-456", "sk-test-456"},
		{"bearer case insensitive", "", "bearer sk-test-789", "sk-test-789"},
		{"x-api-key wins", "sk-primary", "Bearer sk-other", "sk-primary"},
		{"malformed auth", "", "sk-bare-token", ""},
		{"none", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/messages", nil)
			if tt.apiKey != "" {
				r.Header.Set(APIKeyHeader, tt.apiKey)
			}
			if tt.auth != "" {
				r.Header.Set(AuthorizationHeader, tt.auth)
			}
			if got := ExtractAPIKey(r); got != tt.want {
				t.Errorf("ExtractAPIKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversationID(t *testing.T) {
	if got := ConversationID(nil); got != "" {
		t.Errorf("ConversationID(nil) = %q", got)
	}
	if got := ConversationID(&providers.MessagesRequest{}); got != "" {
		t.Errorf("ConversationID without metadata = %q", got)
	}
	req := &providers.MessagesRequest{Metadata: &providers.Metadata{UserID: "user-42"}}
	if got := ConversationID(req); got != "user-42" {
		t.Errorf("ConversationID = %q, want user-42", got)
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "***"},
		{"sk-1234567890abcdef", "sk-1234...cdef"},
	}
	for _, tt := range tests {
		if got := RedactAPIKey(tt.in); got != tt.want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
