package middleware

import (
	"context"
	"log/slog"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// RequestContext is the per-request state middleware operates on. It is
// built by the orchestrator after provider resolution and shared by every
// hook of the same request.
type RequestContext struct {
	// RequestID is the proxy-assigned request identifier.
	RequestID string

	// Provider is the resolved provider name.
	Provider string

	// Model is the model name sent upstream, after prefix stripping.
	Model string

	// Stream reports whether the client asked for a streaming response.
	Stream bool

	// ConversationID scopes signature retrieval. Taken from the request's
	// metadata user_id; empty when the client sent none.
	ConversationID string

	// Request is the outbound request. BeforeRequest hooks may mutate it.
	Request *providers.MessagesRequest
}

// Middleware is one pluggable stage of the chain. Implementations can embed
// Base and override only the hooks they care about.
type Middleware interface {
	// Name identifies the middleware in logs.
	Name() string

	// BeforeRequest runs before dispatch and may mutate rc.Request. An
	// error aborts the request and is surfaced to the client.
	BeforeRequest(ctx context.Context, rc *RequestContext) error

	// AfterResponse runs on the unary path with the translated response.
	// The returned response replaces the input for later middleware.
	AfterResponse(ctx context.Context, rc *RequestContext, resp *providers.MessagesResponse) (*providers.MessagesResponse, error)

	// OnStreamChunk runs for every translated stream event. The returned
	// event replaces the input for later middleware and the client.
	OnStreamChunk(ctx context.Context, rc *RequestContext, ev *providers.StreamEvent) *providers.StreamEvent

	// OnStreamComplete runs exactly once per stream, after the terminal
	// event or error, with the accumulated view of everything delivered.
	OnStreamComplete(ctx context.Context, rc *RequestContext, acc *providers.StreamAccumulator)
}

// Base is a no-op Middleware for embedding.
type Base struct{}

func (Base) BeforeRequest(context.Context, *RequestContext) error { return nil }

func (Base) AfterResponse(_ context.Context, _ *RequestContext, resp *providers.MessagesResponse) (*providers.MessagesResponse, error) {
	return resp, nil
}

func (Base) OnStreamChunk(_ context.Context, _ *RequestContext, ev *providers.StreamEvent) *providers.StreamEvent {
	return ev
}

func (Base) OnStreamComplete(context.Context, *RequestContext, *providers.StreamAccumulator) {}

// Chain invokes middleware in registration order. A request that passed
// through BeforeRequest is guaranteed exactly one terminal hook: an
// AfterResponse for unary exchanges or an OnStreamComplete for streams,
// error and cancellation paths included.
type Chain struct {
	stages []Middleware
}

// NewChain builds a chain over stages in invocation order.
func NewChain(stages ...Middleware) *Chain {
	return &Chain{stages: stages}
}

// BeforeRequest runs every stage's BeforeRequest, stopping at the first
// error.
func (c *Chain) BeforeRequest(ctx context.Context, rc *RequestContext) error {
	for _, m := range c.stages {
		if err := m.BeforeRequest(ctx, rc); err != nil {
			slog.Warn("middleware rejected request",
				"middleware", m.Name(),
				"request_id", rc.RequestID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// AfterResponse threads the response through every stage, stopping at the
// first error.
func (c *Chain) AfterResponse(ctx context.Context, rc *RequestContext, resp *providers.MessagesResponse) (*providers.MessagesResponse, error) {
	var err error
	for _, m := range c.stages {
		resp, err = m.AfterResponse(ctx, rc, resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// OnStreamChunk threads one event through every stage. A panicking stage is
// logged and skipped, and the event continues unchanged from before that
// stage: stream integrity outranks middleware output.
func (c *Chain) OnStreamChunk(ctx context.Context, rc *RequestContext, ev *providers.StreamEvent) *providers.StreamEvent {
	for _, m := range c.stages {
		ev = c.safeChunk(ctx, m, rc, ev)
	}
	return ev
}

func (c *Chain) safeChunk(ctx context.Context, m Middleware, rc *RequestContext, ev *providers.StreamEvent) (out *providers.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("middleware panicked on stream chunk, forwarding chunk unchanged",
				"middleware", m.Name(),
				"request_id", rc.RequestID,
				"panic", r,
			)
			out = ev
		}
	}()
	if replaced := m.OnStreamChunk(ctx, rc, ev); replaced != nil {
		return replaced
	}
	return ev
}

// OnStreamComplete notifies every stage. Panics are contained per stage so
// one faulty middleware cannot starve the others of their terminal hook.
func (c *Chain) OnStreamComplete(ctx context.Context, rc *RequestContext, acc *providers.StreamAccumulator) {
	for _, m := range c.stages {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("middleware panicked on stream completion",
						"middleware", m.Name(),
						"request_id", rc.RequestID,
						"panic", r,
					)
				}
			}()
			m.OnStreamComplete(ctx, rc, acc)
		}()
	}
}

// Len returns the number of registered stages.
func (c *Chain) Len() int {
	return len(c.stages)
}
