package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// fakeClient is a scriptable providers.Client.
type fakeClient struct {
	name   string
	format string

	response *providers.MessagesResponse
	events   []*providers.StreamEvent
	models   []providers.ModelInfo

	err     error
	pingErr error

	mu         sync.Mutex
	calls      int
	listCalls  int
	lastModel  string
	lastStream bool
}

func (c *fakeClient) CreateMessage(_ context.Context, req *providers.MessagesRequest) (*providers.MessagesResponse, error) {
	c.mu.Lock()
	c.calls++
	c.lastModel = req.Model
	c.lastStream = false
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func (c *fakeClient) StreamMessage(ctx context.Context, req *providers.MessagesRequest) (<-chan *providers.StreamEvent, error) {
	c.mu.Lock()
	c.calls++
	c.lastModel = req.Model
	c.lastStream = true
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}

	ch := make(chan *providers.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range c.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *fakeClient) ListModels(context.Context) ([]providers.ModelInfo, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.models, nil
}

func (c *fakeClient) Ping(context.Context) error { return c.pingErr }
func (c *fakeClient) Name() string               { return c.name }
func (c *fakeClient) Format() string             { return c.format }
func (c *fakeClient) Close() error               { return nil }

// fakeDispatcher hands out scripted clients by provider name.
type fakeDispatcher struct {
	registry *providers.Registry
	clients  map[string]*fakeClient
	err      error
}

func (d *fakeDispatcher) ClientFor(_ context.Context, name string) (providers.Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	client, ok := d.clients[name]
	if !ok {
		return nil, &providers.ProviderNotFoundError{Provider: name}
	}
	return client, nil
}

func (d *fakeDispatcher) Registry() *providers.Registry { return d.registry }

// recordingSink captures usage rows.
type recordingSink struct {
	mu      sync.Mutex
	records []*usage.Record
}

func (s *recordingSink) Insert(_ context.Context, rec *usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) last(t *testing.T) *usage.Record {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		t.Fatal("no usage records")
	}
	return s.records[len(s.records)-1]
}

// testRegistry builds a two-provider registry with "gemini" as default.
func testRegistry(t *testing.T) *providers.Registry {
	t.Helper()

	registry, err := providers.NewRegistry([]providers.Descriptor{
		{
			Name:      "gemini",
			APIFormat: providers.FormatOpenAI,
			BaseURL:   "https://gemini.example.com/v1",
			Auth:      providers.Auth{Kind: providers.AuthNone},
			Models:    []string{"gemini-2.5-pro", "gemini-2.5-flash"},
		},
		{
			Name:      "claudeapi",
			APIFormat: providers.FormatPassthrough,
			BaseURL:   "https://api.example.com",
			Auth:      providers.Auth{Kind: providers.AuthNone},
		},
	}, "gemini", map[string]string{"fast": "gemini:gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}
