// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// The server assembles the chain outermost-first:
//
//	handler = Recovery(Logging(RequestID(CORS(Timeout(Auth(handler))))))
//
// Order (outermost to innermost):
//  1. Recovery: recover from panics, return a 500 envelope
//  2. Logging: log request/response with method, path, status, latency
//  3. RequestID: generate and propagate X-Request-ID
//  4. CORS: Cross-Origin Resource Sharing headers and preflight
//  5. Timeout: attach a context deadline (streaming paths exempt)
//  6. Auth: constant-time proxy-key check (health/metrics exempt)
//
// # Request ID
//
// RequestIDMiddleware assigns each request a UUID, honoring a client-supplied
// X-Request-ID. The ID rides in the context, the response headers, and every
// log line.
//
// # Logging
//
// LoggingMiddleware uses log/slog for structured output:
//
//	{
//	  "msg": "request completed",
//	  "method": "POST",
//	  "path": "/v1/messages",
//	  "status": 200,
//	  "latency_ms": 1250,
//	  "request_id": "550e8400-..."
//	}
//
// The status-capturing writer forwards http.Flusher, so SSE responses stream
// through the wrapper unbuffered.
//
// # Auth
//
// AuthMiddleware compares the presented x-api-key or Bearer token against the
// configured proxy key with crypto/subtle, so the comparison takes the same
// time whether the first or last byte differs. No configured key means the
// proxy is open.
//
// # Timeout
//
// TimeoutMiddleware attaches a context deadline rather than racing the
// handler for the writer. Streaming endpoints are passed in as skip paths and
// rely on per-provider stream-read timeouts instead.
package middleware
