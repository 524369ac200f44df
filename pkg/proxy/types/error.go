package types

// ErrorResponse is the Anthropic-style error envelope returned for every
// error condition, unary or mid-stream:
//
//	{"type":"error","error":{"type":"invalid_request_error","message":"..."}}
type ErrorResponse struct {
	// Type is always "error".
	Type string `json:"type"`

	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail categorizes the failure and carries the human-readable message.
type ErrorDetail struct {
	// Type is one of the ErrorType constants.
	Type string `json:"type"`

	// Message is a human-readable error message, safe to show to clients.
	Message string `json:"message"`
}

// Client-visible error kinds. This is a closed set; every failure the proxy
// can surface maps to exactly one of these.
const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeAuthentication indicates a proxy key mismatch or a provider
	// that is not authenticated (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypePermission indicates the upstream refused the credential (403).
	ErrorTypePermission = "permission_error"

	// ErrorTypeNotFound indicates an unknown provider, model, or route (404).
	ErrorTypeNotFound = "not_found_error"

	// ErrorTypeRateLimit indicates the upstream rate limited the request (429).
	ErrorTypeRateLimit = "rate_limit_error"

	// ErrorTypeAPI indicates an unexpected internal failure (500).
	ErrorTypeAPI = "api_error"

	// ErrorTypeUpstream indicates a non-2xx upstream response or an
	// unparseable upstream body (502).
	ErrorTypeUpstream = "upstream_error"

	// ErrorTypeOverloaded indicates a provider lacking credentials or in a
	// degraded state (503).
	ErrorTypeOverloaded = "overloaded_error"

	// ErrorTypeTimeout indicates a connect, request, or stream-read timeout
	// against the upstream (504).
	ErrorTypeTimeout = "timeout_error"
)

// NewErrorResponse creates an error envelope of the given kind.
func NewErrorResponse(errorType, message string) *ErrorResponse {
	return &ErrorResponse{
		Type: "error",
		Error: ErrorDetail{
			Type:    errorType,
			Message: message,
		},
	}
}

// NewInvalidRequestError creates an invalid_request_error envelope (400).
func NewInvalidRequestError(message string) *ErrorResponse {
	return NewErrorResponse(ErrorTypeInvalidRequest, message)
}

// NewAuthenticationError creates an authentication_error envelope (401).
func NewAuthenticationError(message string) *ErrorResponse {
	return NewErrorResponse(ErrorTypeAuthentication, message)
}

// NewNotFoundError creates a not_found_error envelope (404).
func NewNotFoundError(message string) *ErrorResponse {
	return NewErrorResponse(ErrorTypeNotFound, message)
}

// NewUpstreamError creates an upstream_error envelope (502).
func NewUpstreamError(message string) *ErrorResponse {
	return NewErrorResponse(ErrorTypeUpstream, message)
}

// NewAPIError creates an api_error envelope (500).
func NewAPIError(message string) *ErrorResponse {
	return NewErrorResponse(ErrorTypeAPI, message)
}

// HTTPStatusCode returns the HTTP status code for the error kind. Unknown
// kinds fall back to 500.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return 400
	case ErrorTypeAuthentication:
		return 401
	case ErrorTypePermission:
		return 403
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeRateLimit:
		return 429
	case ErrorTypeAPI:
		return 500
	case ErrorTypeUpstream:
		return 502
	case ErrorTypeOverloaded:
		return 503
	case ErrorTypeTimeout:
		return 504
	default:
		return 500
	}
}
