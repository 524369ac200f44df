// Package types defines the client-visible error envelope of the proxy.
//
// Every failure, whether detected before dispatch or surfaced mid-stream, is
// reported in the Anthropic error shape:
//
//	{
//	  "type": "error",
//	  "error": {
//	    "type": "invalid_request_error",
//	    "message": "max_tokens is required"
//	  }
//	}
//
// The error kinds form a closed set (see the ErrorType constants); each kind
// has a fixed HTTP status code via ErrorDetail.HTTPStatusCode. On unary
// requests the envelope is the response body with that status; on streams it
// is the payload of an "error" SSE event.
//
// Request and response bodies themselves use the wire types in pkg/providers;
// this package carries only what the proxy adds on top.
package types
