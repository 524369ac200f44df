// Package openai implements the adapter for OpenAI-compatible providers.
//
// This package fulfils Anthropic Messages requests against any endpoint
// speaking the Chat Completions API. It supports:
//
//   - Unary and streaming completions (Server-Sent Events)
//   - Bidirectional Anthropic <-> OpenAI translation
//   - Function/tool calling, including incremental argument streaming
//   - Thought signature round-tripping for Gemini-backed endpoints
//
// # Basic Usage
//
//	desc := &providers.Descriptor{
//	    Name:      "openrouter",
//	    APIFormat: providers.FormatOpenAI,
//	    BaseURL:   "https://openrouter.ai/api/v1",
//	    Auth:      providers.Auth{Keys: []string{os.Getenv("OPENROUTER_API_KEY")}},
//	}
//
//	client, err := openai.NewClient(desc, creds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.CreateMessage(context.Background(), &providers.MessagesRequest{
//	    Model:     "openai/gpt-4o",
//	    MaxTokens: 1024,
//	    Messages: []providers.Message{
//	        {Role: "user", Content: providers.PlainContent("Hello!")},
//	    },
//	})
//
// # Streaming
//
//	events, err := client.StreamMessage(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for ev := range events {
//	    if ev.Err != nil {
//	        log.Fatal(ev.Err)
//	    }
//	    // ev is an Anthropic stream event: message_start, content_block_*, ...
//	}
//
// # Request Translation
//
// Anthropic requests become Chat Completions requests:
//
//   - System prompts move into a leading system message
//   - Image blocks become image_url parts with data URIs
//   - tool_result blocks become role "tool" messages
//   - tool_choice any maps to "required", specific tools to a function choice
//
// # Response Translation
//
// Chat Completions responses are rebuilt as Anthropic messages:
//
//   - Streaming deltas become content_block events with stable indices
//   - Tool call fragments are held until the call's id and name are known
//   - finish_reason is mapped (stop, length, tool_calls, content_filter)
//
// # Error Handling
//
// Transport errors map to the shared provider error types:
//
//   - 401/403 -> AuthError
//   - 429 -> RateLimitError (includes retry-after)
//   - 5xx -> ProviderError (retried automatically)
//   - stalled streams -> TimeoutError after the read-gap timeout
package openai
