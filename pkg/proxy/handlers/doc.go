// Package handlers implements the HTTP request handlers of the proxy.
//
// Each endpoint is its own handler type, wired by pkg/server:
//
//   - MessagesHandler: POST /v1/messages, unary JSON or SSE streaming
//   - CountTokensHandler: POST /v1/messages/count_tokens
//   - ModelsHandler: GET /v1/models with concurrent fan-out and a TTL cache
//   - HealthHandler: GET /health, provider and credential summary
//   - TestConnectionHandler: GET /test-connection, one upstream round trip
//
// MessagesHandler is the orchestrator: parse → resolve provider from the
// model string → middleware before_request → dispatch → deliver → middleware
// completion → usage row. On streams, every emitted event passes through the
// middleware chain and a stream accumulator, and the completion hook fires
// exactly once whether the stream finished, failed, or the client hung up.
//
// Handlers depend on the small Dispatcher interface rather than the concrete
// provider factory, so tests run against fakes without network I/O.
package handlers
