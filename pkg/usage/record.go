package usage

import "time"

// Record is one completed request, successful or not. One row per request.
type Record struct {
	// RequestID correlates the row with logs.
	RequestID string

	// Provider and Model are the resolved upstream target.
	Provider string
	Model    string

	// Stream indicates SSE delivery.
	Stream bool

	// InputTokens and OutputTokens come from the upstream usage block;
	// zero when the upstream reported none.
	InputTokens  int
	OutputTokens int

	// StopReason is the terminal stop reason, empty on failure.
	StopReason string

	// ErrorKind is the client-visible error kind, empty on success.
	ErrorKind string

	// LatencyMS is the wall-clock request duration in milliseconds.
	LatencyMS int64

	// CreatedAt is when the request arrived.
	CreatedAt time.Time
}

// Summary aggregates ledger totals for the health endpoint.
type Summary struct {
	// Requests is the total number of recorded requests.
	Requests int64

	// Errors is how many of them carried an error kind.
	Errors int64
}
