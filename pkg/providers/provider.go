package providers

import "context"

// Client is the core interface every upstream adapter implements. It provides
// a unified abstraction over providers that speak the Anthropic Messages
// protocol natively and providers that require translation to OpenAI Chat
// Completions.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled.
//
// Example usage:
//
//	client, err := factory.ClientFor(ctx, "openrouter")
//	if err != nil {
//	    return err
//	}
//
//	req := &providers.MessagesRequest{
//	    Model:     "gpt-4o",
//	    MaxTokens: 1024,
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: providers.PlainContent("Hello!")},
//	    },
//	}
//
//	resp, err := client.CreateMessage(ctx, req)
//	if err != nil {
//	    return err
//	}
type Client interface {
	// CreateMessage sends a unary Messages request upstream and returns the
	// Anthropic-shaped response. For OpenAI-wire providers the request is
	// translated on the way out and the response on the way back; for
	// Anthropic-wire providers both directions pass through untouched apart
	// from model resolution.
	CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error)

	// StreamMessage sends a streaming Messages request upstream. It returns
	// a channel yielding Anthropic stream events in upstream order.
	//
	// The caller must drain the channel until it closes. A terminal failure
	// is delivered as a final event with Err set; no events follow it.
	//
	// Cancelling the context aborts upstream I/O and closes the channel.
	StreamMessage(ctx context.Context, req *MessagesRequest) (<-chan *StreamEvent, error)

	// ListModels fetches the provider's model list, normalized to ModelInfo.
	// The raw upstream entry is retained on each item for raw-format output.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Ping performs a lightweight reachability check against the provider.
	// Returns nil if the provider answered, or an error describing why not.
	Ping(ctx context.Context) error

	// Name returns the provider's configured name (e.g. "openrouter").
	Name() string

	// Format returns the provider's wire format, one of the Format
	// constants.
	Format() string

	// Close releases held resources (idle HTTP connections). After Close
	// the client must not be used.
	Close() error
}

// TokenSource supplies OAuth access tokens for providers with auth kind
// oauth. The factory binds it into the client's credential function so the
// injected token is current on every upstream call.
type TokenSource interface {
	// AccessToken returns a usable bearer token and the authenticated
	// account id for provider, refreshing first when needed.
	AccessToken(ctx context.Context, provider string) (token, accountID string, err error)
}

// Wire formats spoken by upstream providers. Passthrough behaves like
// anthropic-wire on the request path but skips model resolution.
const (
	FormatAnthropic   = "anthropic-wire"
	FormatOpenAI      = "openai-wire"
	FormatPassthrough = "passthrough"
)

// ModelInfo is one entry of a provider's model list, normalized across wire
// formats.
type ModelInfo struct {
	// ID is the model identifier as the provider reports it.
	ID string `json:"id"`

	// Provider is the name of the provider that listed the model.
	Provider string `json:"provider"`

	// Created is the creation time as a Unix timestamp, 0 if unreported.
	Created int64 `json:"created,omitempty"`

	// OwnedBy is the owning organization, empty if unreported.
	OwnedBy string `json:"owned_by,omitempty"`

	// Raw is the provider's original list entry, kept for raw-format output.
	Raw map[string]any `json:"-"`
}
