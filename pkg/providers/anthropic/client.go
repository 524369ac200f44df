package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// DefaultVersion is the anthropic-version sent when the client supplied none.
const DefaultVersion = "2023-06-01"

// Client is the adapter for upstreams speaking the Anthropic Messages API
// natively. No translation happens here: request bodies are forwarded with
// only the model and stream fields patched, and responses keep their raw
// bytes so the proxy can return them unmodified, except that the model field
// is rewritten to echo the model the caller requested.
type Client struct {
	*providers.HTTPClient
}

var _ providers.Client = (*Client)(nil)

// NewClient creates an adapter for an anthropic-wire or passthrough provider.
func NewClient(desc *providers.Descriptor, creds providers.CredentialFunc) (*Client, error) {
	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	slog.Info("initialized messages provider",
		"provider", desc.Name,
		"base_url", desc.BaseURL,
		"format", desc.APIFormat,
	)

	return &Client{HTTPClient: providers.NewHTTPClient(desc, creds)}, nil
}

// CreateMessage sends a unary messages request. The parsed response carries
// the verbatim upstream body in Raw.
func (c *Client) CreateMessage(ctx context.Context, req *providers.MessagesRequest) (*providers.MessagesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := requestBody(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.DoRequest(ctx, http.MethodPost, c.endpoint("/v1/messages"), body, c.headers(req), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.StreamError{
			Provider: c.Name(),
			Message:  "failed to read response",
			Cause:    err,
		}
	}

	var out providers.MessagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &providers.ParseError{
			Provider:    c.Name(),
			RawResponse: string(raw),
			Cause:       err,
		}
	}
	out.Raw = raw

	// Echo the model the caller asked this client for, even when the
	// upstream normalizes the name.
	if patched, perr := PatchModel(raw, req.Model); perr == nil {
		out.Raw = patched
	}
	if out.Model != "" {
		out.Model = req.Model
	}

	return &out, nil
}

// StreamMessage opens a streaming messages exchange. Events are parsed for
// observation but each keeps its raw payload; the stream ends after
// message_stop, or earlier on upstream failure.
func (c *Client) StreamMessage(ctx context.Context, req *providers.MessagesRequest) (<-chan *providers.StreamEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := requestBody(req, true)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := c.DoRequest(streamCtx, http.MethodPost, c.endpoint("/v1/messages"), body, c.headers(req), true)
	if err != nil {
		cancel()
		return nil, err
	}

	events := make(chan *providers.StreamEvent, 100)
	go c.consumeStream(streamCtx, cancel, resp.Body, req.Model, events)
	return events, nil
}

func (c *Client) consumeStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, model string, events chan<- *providers.StreamEvent) {
	defer close(events)
	defer cancel()

	reader := newEventReader(c.Name(), model, body)
	defer reader.Close()

	timeout := c.Descriptor().StreamReadTimeout
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	for {
		ev, err := reader.Next(ctx)
		if err != nil {
			if err == io.EOF {
				// Upstream closed without message_stop; nothing to add.
				return
			}
			if timedOut.Load() || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = &providers.TimeoutError{Provider: c.Name(), Timeout: timeout}
			} else if ctx.Err() != nil {
				slog.Debug("stream cancelled", "provider", c.Name())
				return
			}
			// The stream context is already cancelled when the
			// read-gap timer fired, so the send must not race a
			// ctx.Done case. The channel is buffered and drained
			// to close by the consumer.
			events <- &providers.StreamEvent{Err: err}
			return
		}
		timer.Reset(timeout)

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}

		if ev.Type == providers.EventMessageStop {
			return
		}
	}
}

// ListModels fetches the provider's model catalogue.
func (c *Client) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	var page struct {
		Data []json.RawMessage `json:"data"`
	}
	headers := map[string]string{"anthropic-version": DefaultVersion}
	if err := c.DoJSONRequest(ctx, http.MethodGet, c.endpoint("/v1/models"), nil, &page, headers); err != nil {
		return nil, err
	}

	models := make([]providers.ModelInfo, 0, len(page.Data))
	for _, raw := range page.Data {
		var entry struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.ID == "" {
			continue
		}
		var extra map[string]any
		_ = json.Unmarshal(raw, &extra)

		var created int64
		if ts, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
			created = ts.Unix()
		}

		models = append(models, providers.ModelInfo{
			ID:       entry.ID,
			Provider: c.Name(),
			Created:  created,
			OwnedBy:  "anthropic",
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

// headers builds the per-request headers: the client's anthropic-version
// when present, the default otherwise.
func (c *Client) headers(req *providers.MessagesRequest) map[string]string {
	version := req.Version
	if version == "" {
		version = DefaultVersion
	}
	return map[string]string{"anthropic-version": version}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.Descriptor().BaseURL, "/") + path
}
