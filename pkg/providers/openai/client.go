package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// Client is a provider adapter for OpenAI-compatible Chat Completions
// endpoints. CreateMessage and StreamMessage accept and produce Anthropic
// shapes and translate at the boundary; ChatCompletion and
// StreamChatCompletion expose the raw OpenAI exchange for callers that
// drive translation themselves.
type Client struct {
	*providers.HTTPClient
}

var _ providers.Client = (*Client)(nil)

// NewClient creates an adapter for an openai-wire provider.
func NewClient(desc *providers.Descriptor, creds providers.CredentialFunc) (*Client, error) {
	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	slog.Info("initialized chat completions provider",
		"provider", desc.Name,
		"base_url", desc.BaseURL,
	)

	return &Client{HTTPClient: providers.NewHTTPClient(desc, creds)}, nil
}

// CreateMessage sends a unary message request, translating both directions.
func (c *Client) CreateMessage(ctx context.Context, req *providers.MessagesRequest) (*providers.MessagesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.ChatCompletion(ctx, TransformRequest(req, c.Descriptor()))
	if err != nil {
		return nil, err
	}
	return TransformResponse(resp, req.Model)
}

// ChatCompletion performs a unary chat completions call.
func (c *Client) ChatCompletion(ctx context.Context, req *Request) (*Response, error) {
	req.Stream = false

	var resp Response
	if err := c.DoJSONRequest(ctx, http.MethodPost, c.endpoint("/chat/completions"), req, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamMessage opens a streaming message exchange, translating both
// directions. The returned channel is closed when the stream ends; a
// terminal failure arrives as a final event with Err set.
func (c *Client) StreamMessage(ctx context.Context, req *providers.MessagesRequest) (<-chan *providers.StreamEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.StreamChatCompletion(ctx, TransformRequest(req, c.Descriptor()), req.Model)
}

// StreamChatCompletion opens a streaming chat completions call and returns
// translated Anthropic events. model is echoed in message_start.
func (c *Client) StreamChatCompletion(ctx context.Context, req *Request, model string) (<-chan *providers.StreamEvent, error) {
	req.Stream = true

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The derived context lets the read-gap timer tear the stream down.
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := c.DoRequest(streamCtx, http.MethodPost, c.endpoint("/chat/completions"), payload, nil, true)
	if err != nil {
		cancel()
		return nil, err
	}

	events := make(chan *providers.StreamEvent, 100)
	go c.consumeStream(streamCtx, cancel, resp.Body, model, events)
	return events, nil
}

// consumeStream reads upstream chunks, feeds the translator, and delivers
// the resulting events until the stream ends or the caller goes away.
func (c *Client) consumeStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, model string, events chan<- *providers.StreamEvent) {
	defer close(events)
	defer cancel()

	reader := newChunkReader(c.Name(), body)
	defer reader.Close()

	// A stalled upstream fails the stream once no frame arrives within
	// the read-gap timeout. The timer rearms on every frame.
	timeout := c.Descriptor().StreamReadTimeout
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	translator := newStreamTranslator(model)

	for {
		chunk, err := reader.Next(ctx)
		if err != nil {
			if err == io.EOF {
				c.deliver(ctx, events, translator.Finish())
				return
			}
			if timedOut.Load() || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = &providers.TimeoutError{Provider: c.Name(), Timeout: timeout}
			} else if ctx.Err() != nil {
				// Caller cancellation is a termination, not a failure.
				slog.Debug("stream cancelled", "provider", c.Name())
				return
			}
			// The stream context is already cancelled when the
			// read-gap timer fired, so a ctx-gated send would race
			// and drop the terminal error. The channel is buffered
			// and drained to close by the consumer.
			events <- &providers.StreamEvent{Err: err}
			return
		}
		timer.Reset(timeout)

		if !c.deliver(ctx, events, translator.Ingest(chunk)) {
			return
		}
	}
}

// deliver sends events in order, bailing out if the consumer is gone.
func (c *Client) deliver(ctx context.Context, events chan<- *providers.StreamEvent, batch []*providers.StreamEvent) bool {
	for _, ev := range batch {
		select {
		case events <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// ListModels fetches the provider's model catalogue.
func (c *Client) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	var page modelsPage
	if err := c.DoJSONRequest(ctx, http.MethodGet, c.endpoint("/models"), nil, &page, nil); err != nil {
		return nil, err
	}

	models := make([]providers.ModelInfo, 0, len(page.Data))
	for _, raw := range page.Data {
		var entry modelEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.ID == "" {
			continue
		}
		var extra map[string]any
		_ = json.Unmarshal(raw, &extra)

		models = append(models, providers.ModelInfo{
			ID:       entry.ID,
			Provider: c.Name(),
			Created:  entry.Created,
			OwnedBy:  entry.OwnedBy,
			Raw:      extra,
		})
	}
	return models, nil
}

// Ping verifies connectivity and credentials with a models listing.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.Descriptor().BaseURL, "/") + path
}

// modelsPage is the wire shape of GET /models.
type modelsPage struct {
	Data []json.RawMessage `json:"data"`
}

type modelEntry struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
