package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// APIKeyHeader is the Anthropic-convention credential header.
	APIKeyHeader = "x-api-key"

	// AuthorizationHeader is the alternative Bearer credential header.
	AuthorizationHeader = "Authorization"

	// AnthropicVersionHeader pins the client's API version. The proxy
	// records it but accepts any value.
	AnthropicVersionHeader = "anthropic-version"

	// RequestIDHeader propagates request IDs for correlation.
	RequestIDHeader = "X-Request-ID"
)

// ParseMessagesRequest parses an HTTP request body into a MessagesRequest.
// It enforces the body size limit, rejects malformed JSON, and validates
// required fields. The raw body and the anthropic-version header are
// retained on the request so passthrough providers can forward them
// untouched.
func ParseMessagesRequest(r *http.Request) (*providers.MessagesRequest, error) {
	limitedReader := io.LimitReader(r.Body, MaxRequestBodySize+1)

	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if len(body) > MaxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
		}
	}

	var req providers.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}
	}

	if err := req.Validate(); err != nil {
		var valErr *providers.ValidationError
		if errors.As(err, &valErr) {
			return nil, &RequestError{Message: valErr.Error()}
		}
		return nil, err
	}

	req.Raw = body
	req.Version = ExtractAnthropicVersion(r)
	return &req, nil
}

// ExtractAPIKey returns the client credential, trying x-api-key first and
// falling back to "Authorization: Bearer <key>". Missing or malformed
// headers yield an empty string.
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return strings.TrimSpace(key)
	}

	authHeader := r.Header.Get(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ExtractRequestID returns the client-supplied request ID, or "" when the
// middleware should generate one.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// ExtractAnthropicVersion returns the anthropic-version header value.
func ExtractAnthropicVersion(r *http.Request) string {
	return r.Header.Get(AnthropicVersionHeader)
}

// ConversationID derives the conversation scope for signature caching from
// the request's metadata.user_id, or "" when the client sent none.
func ConversationID(req *providers.MessagesRequest) string {
	if req == nil || req.Metadata == nil {
		return ""
	}
	return req.Metadata.UserID
}

// RequestError represents a request parsing or validation failure.
type RequestError struct {
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to the client error envelope.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message)
}
