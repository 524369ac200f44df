package providers

import (
	"context"
	"testing"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// TestDescriptor returns a test provider descriptor.
func TestDescriptor(name, format string) *providers.Descriptor {
	return &providers.Descriptor{
		Name:      name,
		APIFormat: format,
		BaseURL:   "http://localhost:8080/v1",
		Auth: providers.Auth{
			Kind: providers.AuthStaticKeys,
			Keys: []string{"test-key"},
		},
		ConnectTimeout:    2 * time.Second,
		RequestTimeout:    5 * time.Second,
		StreamReadTimeout: 5 * time.Second,
		MaxRetries:        2,
	}
}

// TestDescriptorWithURL returns a test descriptor with a specific base URL.
func TestDescriptorWithURL(name, format, baseURL string) *providers.Descriptor {
	desc := TestDescriptor(name, format)
	desc.BaseURL = baseURL
	return desc
}

// StaticCredentials returns a CredentialFunc that always yields the given
// headers.
func StaticCredentials(headers map[string]string) providers.CredentialFunc {
	return func(ctx context.Context) (map[string]string, error) {
		return headers, nil
	}
}

// TestMessage creates a test message with plain string content.
func TestMessage(role, content string) providers.Message {
	return providers.Message{
		Role:    role,
		Content: providers.PlainContent(content),
	}
}

// TestMessagesRequest creates a test messages request.
func TestMessagesRequest(model string, messages ...providers.Message) *providers.MessagesRequest {
	return &providers.MessagesRequest{
		Model:     model,
		MaxTokens: 100,
		Messages:  messages,
	}
}

// TestStreamingRequest creates a test streaming request.
func TestStreamingRequest(model string, messages ...providers.Message) *providers.MessagesRequest {
	req := TestMessagesRequest(model, messages...)
	req.Stream = true
	return req
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorType fails the test if err is not of the expected type.
func AssertErrorType(t *testing.T, err error, expectedType interface{}) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	switch expectedType.(type) {
	case *providers.AuthError:
		if _, ok := err.(*providers.AuthError); !ok {
			t.Fatalf("expected AuthError, got %T: %v", err, err)
		}
	case *providers.NotAuthenticatedError:
		if _, ok := err.(*providers.NotAuthenticatedError); !ok {
			t.Fatalf("expected NotAuthenticatedError, got %T: %v", err, err)
		}
	case *providers.RateLimitError:
		if _, ok := err.(*providers.RateLimitError); !ok {
			t.Fatalf("expected RateLimitError, got %T: %v", err, err)
		}
	case *providers.TimeoutError:
		if _, ok := err.(*providers.TimeoutError); !ok {
			t.Fatalf("expected TimeoutError, got %T: %v", err, err)
		}
	case *providers.ProviderError:
		if _, ok := err.(*providers.ProviderError); !ok {
			t.Fatalf("expected ProviderError, got %T: %v", err, err)
		}
	case *providers.ParseError:
		if _, ok := err.(*providers.ParseError); !ok {
			t.Fatalf("expected ParseError, got %T: %v", err, err)
		}
	case *providers.ValidationError:
		if _, ok := err.(*providers.ValidationError); !ok {
			t.Fatalf("expected ValidationError, got %T: %v", err, err)
		}
	case *providers.ProviderNotFoundError:
		if _, ok := err.(*providers.ProviderNotFoundError); !ok {
			t.Fatalf("expected ProviderNotFoundError, got %T: %v", err, err)
		}
	case *providers.StreamError:
		if _, ok := err.(*providers.StreamError); !ok {
			t.Fatalf("expected StreamError, got %T: %v", err, err)
		}
	case *providers.ConfigError:
		if _, ok := err.(*providers.ConfigError); !ok {
			t.Fatalf("expected ConfigError, got %T: %v", err, err)
		}
	default:
		t.Fatalf("unknown error type: %T", expectedType)
	}
}

// AssertEqual fails the test if got != expected.
func AssertEqual(t *testing.T, got, expected interface{}) {
	t.Helper()
	if got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

// AssertTrue fails the test if condition is false.
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Fatalf("assertion failed: %s", message)
	}
}

// AssertContains fails the test if haystack doesn't contain needle.
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if haystack == "" {
		t.Fatal("haystack is empty")
	}
	if needle == "" {
		t.Fatal("needle is empty")
	}
	found := false
	for i := 0; i <= len(haystack)-len(needle); i++ {
		if haystack[i:i+len(needle)] == needle {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

// CollectStreamEvents drains a stream channel, returning the events seen
// before either the channel closed or an event carried a terminal error.
func CollectStreamEvents(t *testing.T, events <-chan *providers.StreamEvent) ([]*providers.StreamEvent, error) {
	t.Helper()

	var collected []*providers.StreamEvent
	for ev := range events {
		if ev.Err != nil {
			return collected, ev.Err
		}
		collected = append(collected, ev)
	}

	return collected, nil
}

// ConcatenateText concatenates the text deltas from a collected stream.
func ConcatenateText(events []*providers.StreamEvent) string {
	var result string
	for _, ev := range events {
		if ev.Type == providers.EventContentBlockDelta && ev.Delta != nil && ev.Delta.Text != nil {
			result += *ev.Delta.Text
		}
	}
	return result
}

// EventTypes lists the event type of each collected event, in order.
func EventTypes(events []*providers.StreamEvent) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

// WithTimeout runs a function with a timeout context.
func WithTimeout(t *testing.T, timeout time.Duration, fn func(ctx context.Context)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		fn(ctx)
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-ctx.Done():
		t.Fatalf("test timeout after %s", timeout)
	}
}

// WaitForCondition waits for a condition to become true within a timeout.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}

		<-ticker.C
	}
}
