// Package server assembles and runs the HTTP proxy.
//
// New wires every component from configuration: the provider registry and
// client factory, the OAuth credential store, manager and on-disk watcher,
// the thought-signature middleware chain, the usage ledger with its
// retention scheduler, and the Prometheus collector. Start runs the
// listener until the context is cancelled, a SIGINT/SIGTERM arrives, or
// Shutdown is called; draining is bounded by the configured shutdown
// timeout.
//
// # Routes
//
//   - POST /v1/messages - Anthropic Messages, streaming and unary
//   - POST /v1/messages/count_tokens - token count estimation
//   - GET /v1/models - aggregated model listing
//   - GET /health - liveness, provider and credential summary
//   - GET /test-connection - one-shot upstream reachability probe
//   - GET /metrics - Prometheus exposition (when enabled)
//
// # Middleware
//
// Requests pass through Recovery, Logging, RequestID, CORS, Timeout and
// Auth, outermost first. /v1/messages is exempt from the request timeout
// so streams can outlive it; /health and the metrics path are exempt from
// proxy-key auth.
//
// The http.Server carries no WriteTimeout. SSE responses hold the
// connection for the life of the upstream stream; per-provider stream-read
// timeouts bound them instead.
package server
