// Package proxy provides the HTTP plumbing between clients speaking the
// Anthropic Messages protocol and the upstream provider adapters.
//
// It contains the pieces the request handlers compose:
//
//   - Request parsing and validation for POST /v1/messages bodies, with
//     size limits and header extraction (request.go)
//   - The client-visible error mapping from typed provider errors to the
//     Anthropic error envelope (errors.go)
//   - JSON and SSE response writers; StreamWriter emits event-named frames
//     and flushes after every event (response.go)
//   - Per-request metadata tracking feeding the usage ledger (metadata.go)
//
// # Request Flow
//
//  1. Client sends an Anthropic Messages request to /v1/messages
//  2. HTTP middleware runs (recovery → logging → request ID → CORS →
//     timeout → proxy-key auth)
//  3. The handler parses the body and resolves "provider:model"
//  4. The request middleware chain runs, then the provider client dispatches
//  5. Unary responses are written as JSON; streams as SSE events
//  6. The outcome is recorded in the usage ledger
//
// # Streaming
//
// Streaming responses use Server-Sent Events in the Anthropic framing, one
// named event per frame:
//
//	event: message_start
//	data: {"type":"message_start","message":{...}}
//
//	event: content_block_delta
//	data: {"type":"content_block_delta","index":0,"delta":{...}}
//
// Streams from passthrough providers are forwarded frame-for-frame; streams
// from OpenAI-wire providers are translated on the fly. A failure after the
// stream opened is delivered as an "error" event rather than an HTTP status,
// since the status line is already on the wire.
//
// # Error Handling
//
// All errors use the Anthropic envelope:
//
//	{
//	  "type": "error",
//	  "error": {
//	    "type": "invalid_request_error",
//	    "message": "max_tokens is required"
//	  }
//	}
//
// HandleError maps every internal error type onto the closed kind set in
// pkg/proxy/types; unrecognized errors collapse to api_error with a generic
// message so internals never leak.
package proxy
