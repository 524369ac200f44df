// Package providers implements a unified abstraction over upstream LLM
// providers for the Anthropic Messages API.
//
// # Overview
//
// Every upstream is described by a Descriptor (wire format, base URL,
// credential mode, timeouts) and served through the Client interface.
// Providers that speak the Anthropic Messages protocol natively pass
// requests through; providers that speak OpenAI Chat Completions are
// translated in both directions, including streaming.
//
// # Architecture
//
// The package is organized into several layers:
//
//  1. Client Interface - the contract all wire-format adapters implement
//  2. HTTPClient - common HTTP logic (connection pooling, credential
//     injection, retries with backoff, timeout classification)
//  3. Adapters - the anthropic and openai subpackages
//  4. Registry - the validated descriptor set with alias and
//     "provider:model" resolution
//  5. KeyRotator - round-robin rotation across static API keys
//
// Client construction and caching live in the providerfactory package, so
// the adapters stay free of credential-source wiring.
//
// # Basic Usage
//
//	registry, err := providers.NewRegistry(descriptors, "openrouter", aliases)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	desc, model, err := registry.Resolve("gemini:gemini-2.5-pro")
//
//	req := &providers.MessagesRequest{
//	    Model:     model,
//	    MaxTokens: 1024,
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: providers.PlainContent("Hello!")},
//	    },
//	}
//
//	resp, err := client.CreateMessage(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Streaming
//
//	events, err := client.StreamMessage(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range events {
//	    if event.Err != nil {
//	        log.Fatal(event.Err)
//	    }
//	    // event.Type is an Anthropic stream event regardless of the
//	    // upstream wire format.
//	}
//
// The caller must drain the channel until it closes. Cancelling the context
// aborts upstream I/O; the channel closes without a synthetic error event.
//
// # Error Handling
//
// The package defines specific error types for common failure scenarios:
//
//   - ProviderError: general upstream failure with status and body
//   - AuthError: upstream credential rejection (HTTP 401/403)
//   - NotAuthenticatedError: OAuth provider with no stored credentials
//   - RateLimitError: rate limit exceeded (HTTP 429), with Retry-After
//   - TimeoutError: request or stream-read timeout
//   - ParseError: malformed upstream response
//   - ProviderNotFoundError: reference to an unregistered provider
//   - ValidationError: invalid request, rejected before going upstream
//   - StreamError: failure after stream events may have been delivered
//   - ConfigError: invalid descriptor field
//
// Handlers switch on these types to choose the HTTP status and error shape
// returned to the client.
//
// # Thread Safety
//
// The Registry is immutable after construction. Adapters, the KeyRotator,
// and everything built on HTTPClient are safe for concurrent use.
package providers
