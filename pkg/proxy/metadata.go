package proxy

import (
	"net/http"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// RequestMeta tracks one request from parse to completion. Handlers create
// it up front, fill in outcome fields as they become known, and convert it to
// a ledger row when the request finishes either way.
type RequestMeta struct {
	// RequestID is the unique identifier for the request.
	RequestID string

	// Provider is the resolved provider name.
	Provider string

	// Model is the resolved upstream model.
	Model string

	// RequestedModel is the model string as the client sent it, before
	// alias and prefix resolution.
	RequestedModel string

	// Stream indicates whether the client asked for SSE delivery.
	Stream bool

	// UserAgent is the client's user agent string.
	UserAgent string

	// RemoteAddr is the client's address.
	RemoteAddr string

	// Start is when the request was received.
	Start time.Time

	// InputTokens and OutputTokens come from the upstream usage block.
	InputTokens  int
	OutputTokens int

	// StopReason is the terminal stop reason, empty on failure.
	StopReason string

	// ErrorKind is the client-visible error kind, empty on success.
	ErrorKind string

	// Cancelled marks a stream the client abandoned.
	Cancelled bool
}

// NewRequestMeta captures request-scoped fields at parse time.
func NewRequestMeta(r *http.Request, requestID string, stream bool) *RequestMeta {
	return &RequestMeta{
		RequestID:  requestID,
		Stream:     stream,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Start:      time.Now(),
	}
}

// ObserveResponse records the outcome of a unary upstream response.
func (m *RequestMeta) ObserveResponse(resp *providers.MessagesResponse) {
	if resp == nil {
		return
	}
	m.InputTokens = resp.Usage.InputTokens
	m.OutputTokens = resp.Usage.OutputTokens
	m.StopReason = resp.StopReasonOrEmpty()
}

// ObserveStream records the outcome accumulated over a stream.
func (m *RequestMeta) ObserveStream(acc *providers.StreamAccumulator) {
	if acc == nil {
		return
	}
	m.InputTokens = acc.Usage.InputTokens
	m.OutputTokens = acc.Usage.OutputTokens
	m.StopReason = acc.StopReason
	m.Cancelled = acc.Cancelled
}

// Latency returns the elapsed time since the request arrived.
func (m *RequestMeta) Latency() time.Duration {
	return time.Since(m.Start)
}

// Record converts the tracked request into a usage ledger row.
func (m *RequestMeta) Record() *usage.Record {
	return &usage.Record{
		RequestID:    m.RequestID,
		Provider:     m.Provider,
		Model:        m.Model,
		Stream:       m.Stream,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		StopReason:   m.StopReason,
		ErrorKind:    m.ErrorKind,
		LatencyMS:    m.Latency().Milliseconds(),
		CreatedAt:    m.Start,
	}
}

// RedactAPIKey redacts a credential for safe logging, keeping only a short
// prefix and suffix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return apiKey[:7] + "..." + apiKey[len(apiKey)-4:]
}
