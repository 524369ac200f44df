// Package anthropic implements the passthrough adapter for upstreams that
// speak the Anthropic Messages API natively.
//
// Because the proxy's client-facing surface is already the Messages API, no
// translation happens here. Request bodies are forwarded with only the model
// and stream fields patched; responses and stream frames keep their raw
// bytes so the proxy can return them unchanged, including fields it does not
// model. The one rewrite on the way back is the model field, patched to echo
// the name the caller requested. It supports:
//
//   - Unary and streaming messages (Server-Sent Events)
//   - Verbatim body forwarding with model patching in both directions
//   - OAuth bearer or x-api-key credentials, decided by the caller
//
// # Basic Usage
//
//	desc := &providers.Descriptor{
//	    Name:      "anthropic",
//	    APIFormat: providers.FormatPassthrough,
//	    BaseURL:   "https://api.anthropic.com",
//	    Auth:      providers.Auth{Keys: []string{os.Getenv("ANTHROPIC_API_KEY")}},
//	}
//
//	client, err := anthropic.NewClient(desc, creds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.CreateMessage(ctx, req)
//	// resp.Raw holds the upstream body with only model rewritten.
//
// # Streaming
//
//	events, err := client.StreamMessage(ctx, req)
//	for ev := range events {
//	    if ev.Err != nil {
//	        log.Fatal(ev.Err)
//	    }
//	    // ev.Raw is the complete SSE record as received; parsed fields
//	    // are populated when the frame was understood.
//	}
//
// The stream ends after message_stop. Frames that fail to parse are still
// delivered with Raw set so nothing the upstream said is lost.
//
// # Versioning
//
// The anthropic-version header is forwarded from the inbound request and
// defaults to 2023-06-01 when the client sent none.
//
// # Error Handling
//
// Transport errors map to the shared provider error types:
//
//   - 401/403 -> AuthError
//   - 429 -> RateLimitError (includes retry-after)
//   - 5xx -> ProviderError (retried automatically)
//   - stalled streams -> TimeoutError after the read-gap timeout
package anthropic
