package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	testhelpers "github.com/elifarley/vandamme-proxy/internal/providers"
	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

func newTestClient(t *testing.T, mock *testhelpers.MockServer) *Client {
	t.Helper()

	client, err := NewClient(
		testhelpers.TestDescriptorWithURL("anthropic", providers.FormatPassthrough, mock.URL()),
		testhelpers.StaticCredentials(map[string]string{"x-api-key": "test-key"}),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_CreateMessagePassthrough(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockMessagesResponse("Hello!", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
		testhelpers.TestMessage(providers.RoleUser, "Hi"))

	resp, err := client.CreateMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if len(resp.Raw) == 0 {
		t.Fatal("expected verbatim upstream body on Raw")
	}
	var echo map[string]interface{}
	if err := json.Unmarshal(resp.Raw, &echo); err != nil {
		t.Fatalf("Raw is not the upstream JSON: %v", err)
	}
	if echo["id"] != "msg_0123456789abcdef01234567" {
		t.Errorf("unexpected raw body: %v", echo)
	}

	if len(resp.Content) != 1 || resp.Content[0].Text != "Hello!" {
		t.Errorf("expected parsed content alongside Raw, got %+v", resp.Content)
	}
	if resp.StopReasonOrEmpty() != providers.StopEndTurn {
		t.Errorf("expected end_turn, got %q", resp.StopReasonOrEmpty())
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}

	if got := mock.LastHeader("anthropic-version"); got != DefaultVersion {
		t.Errorf("expected default anthropic-version, got %q", got)
	}
	if got := mock.LastHeader("x-api-key"); got != "test-key" {
		t.Errorf("expected credential header, got %q", got)
	}
}

func TestClient_ForwardsClientVersion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockMessagesResponse("ok", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
		testhelpers.TestMessage(providers.RoleUser, "Hi"))
	req.Version = "2024-10-22"

	if _, err := client.CreateMessage(context.Background(), req); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if got := mock.LastHeader("anthropic-version"); got != "2024-10-22" {
		t.Errorf("expected client version forwarded, got %q", got)
	}
}

func TestClient_RawBodyPatching(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockMessagesResponse("ok", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	// The inbound body carries fields the proxy does not model. They must
	// reach the upstream untouched while model is overwritten with the
	// resolved name.
	req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
		testhelpers.TestMessage(providers.RoleUser, "Hi"))
	req.Raw = json.RawMessage(`{"model":"sonnet","max_tokens":100,"messages":[{"role":"user","content":"Hi"}],"thinking":{"type":"enabled","budget_tokens":2048}}`)

	if _, err := client.CreateMessage(context.Background(), req); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal(mock.LastBody(), &sent); err != nil {
		t.Fatalf("failed to decode outbound body: %v", err)
	}
	if sent["model"] != "claude-sonnet-4-20250514" {
		t.Errorf("expected model patched to resolved name, got %v", sent["model"])
	}
	if _, ok := sent["thinking"]; !ok {
		t.Error("unmodeled request fields must survive the forward")
	}
	if _, ok := sent["stream"]; ok {
		t.Error("non-streaming requests must not carry stream")
	}
}

func TestClient_StreamMessagePassthrough(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StreamRaw: testhelpers.MockMessagesStream("Hello from upstream", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	req := testhelpers.TestStreamingRequest("claude-sonnet-4-20250514",
		testhelpers.TestMessage(providers.RoleUser, "Hi"))
	req.Raw = json.RawMessage(`{"model":"sonnet","max_tokens":100,"messages":[{"role":"user","content":"Hi"}]}`)

	events, err := client.StreamMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}

	collected, streamErr := testhelpers.CollectStreamEvents(t, events)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}

	want := []string{
		providers.EventMessageStart,
		providers.EventContentBlockStart,
		providers.EventContentBlockDelta,
		providers.EventContentBlockStop,
		providers.EventMessageDelta,
		providers.EventMessageStop,
	}
	got := testhelpers.EventTypes(collected)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Raw must hold complete SSE records, framing included, so the writer
	// can forward them verbatim to the client.
	for _, ev := range collected {
		frame := string(ev.Raw)
		if !strings.Contains(frame, "event: ") || !strings.Contains(frame, "data: ") {
			t.Errorf("event %s lost its SSE framing: %q", ev.Type, frame)
		}
	}

	if text := testhelpers.ConcatenateText(collected); text != "Hello from upstream" {
		t.Errorf("expected text %q, got %q", "Hello from upstream", text)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal(mock.LastBody(), &sent); err != nil {
		t.Fatalf("failed to decode outbound body: %v", err)
	}
	if sent["stream"] != true {
		t.Error("expected stream: true in outbound body")
	}
}

func TestClient_StreamForwardsUnparseableFrames(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	frames := testhelpers.MockMessagesStream("ok", "claude-sonnet-4-20250514")
	withGarbage := append(frames[:1:1], "event: mystery_event\ndata: not json at all\n\n")
	withGarbage = append(withGarbage, frames[1:]...)

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{StreamRaw: withGarbage})

	client := newTestClient(t, mock)

	events, err := client.StreamMessage(context.Background(),
		testhelpers.TestStreamingRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}

	collected, streamErr := testhelpers.CollectStreamEvents(t, events)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}

	if len(collected) != 7 {
		t.Fatalf("expected 7 events including the unparseable one, got %v", testhelpers.EventTypes(collected))
	}
	if collected[1].Type != "mystery_event" {
		t.Errorf("expected event name preserved, got %s", collected[1].Type)
	}
	if string(collected[1].Raw) != "event: mystery_event\ndata: not json at all" {
		t.Errorf("expected raw frame preserved, got %q", collected[1].Raw)
	}
}

func TestClient_StreamEndsAtMessageStop(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	// Frames after message_stop must not be delivered.
	frames := testhelpers.MockMessagesStream("ok", "claude-sonnet-4-20250514")
	frames = append(frames, "event: ping\ndata: {\"type\":\"ping\"}\n\n")

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{StreamRaw: frames})

	client := newTestClient(t, mock)

	events, err := client.StreamMessage(context.Background(),
		testhelpers.TestStreamingRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}

	collected, streamErr := testhelpers.CollectStreamEvents(t, events)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}

	if last := collected[len(collected)-1]; last.Type != providers.EventMessageStop {
		t.Errorf("expected stream to end at message_stop, got %s", last.Type)
	}
	if len(collected) != 6 {
		t.Errorf("expected 6 events, got %v", testhelpers.EventTypes(collected))
	}
}

func TestClient_AuthError(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockAuthError())

	client := newTestClient(t, mock)

	_, err := client.CreateMessage(context.Background(),
		testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err == nil {
		t.Fatal("expected auth error, got nil")
	}

	testhelpers.AssertErrorType(t, err, (*providers.AuthError)(nil))

	if mock.GetRequestCount() != 1 {
		t.Errorf("auth errors must not be retried, got %d requests", mock.GetRequestCount())
	}
}

func TestClient_ValidationError(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	client := newTestClient(t, mock)

	req := testhelpers.TestMessagesRequest("", testhelpers.TestMessage(providers.RoleUser, "Hi"))

	_, err := client.CreateMessage(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	testhelpers.AssertErrorType(t, err, (*providers.ValidationError)(nil))

	if mock.GetRequestCount() != 0 {
		t.Errorf("invalid requests must not reach the upstream, got %d requests", mock.GetRequestCount())
	}
}

func TestClient_ListModels(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/models", testhelpers.MockResponse{
		StatusCode: 200,
		Body: map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "claude-sonnet-4-20250514", "display_name": "Claude Sonnet 4", "created_at": "2025-05-14T00:00:00Z", "type": "model"},
				{"id": "claude-opus-4-20250514", "display_name": "Claude Opus 4", "created_at": "2025-05-14T00:00:00Z", "type": "model"},
			},
			"has_more": false,
		},
	})

	client := newTestClient(t, mock)

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}

	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "claude-sonnet-4-20250514" || models[0].Provider != "anthropic" {
		t.Errorf("unexpected model: %+v", models[0])
	}
	if models[0].Created == 0 {
		t.Error("expected created_at parsed into a unix timestamp")
	}
	if models[0].Raw["display_name"] != "Claude Sonnet 4" {
		t.Errorf("expected raw listing entry retained, got %v", models[0].Raw)
	}

	if got := mock.LastHeader("anthropic-version"); got != DefaultVersion {
		t.Errorf("expected anthropic-version on model listing, got %q", got)
	}
}

func TestRequestBody(t *testing.T) {
	t.Run("struct fallback", func(t *testing.T) {
		req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi"))

		body, err := requestBody(req, true)
		if err != nil {
			t.Fatalf("requestBody failed: %v", err)
		}

		var sent map[string]interface{}
		if err := json.Unmarshal(body, &sent); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if sent["model"] != "claude-sonnet-4-20250514" || sent["stream"] != true {
			t.Errorf("unexpected body: %v", sent)
		}
	})

	t.Run("raw strips stream for unary", func(t *testing.T) {
		req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi"))
		req.Raw = json.RawMessage(`{"model":"sonnet","stream":true,"messages":[]}`)

		body, err := requestBody(req, false)
		if err != nil {
			t.Fatalf("requestBody failed: %v", err)
		}

		var sent map[string]interface{}
		if err := json.Unmarshal(body, &sent); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if _, ok := sent["stream"]; ok {
			t.Error("expected stream removed from unary body")
		}
	})

	t.Run("invalid raw rejected", func(t *testing.T) {
		req := testhelpers.TestMessagesRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi"))
		req.Raw = json.RawMessage(`[1,2,3]`)

		if _, err := requestBody(req, false); err == nil {
			t.Error("expected error for non-object raw body")
		}
	})
}

func TestPatchModel(t *testing.T) {
	raw := json.RawMessage(`{"id":"msg_1","model":"claude-sonnet-4-20250514","content":[]}`)

	patched, err := PatchModel(raw, "sonnet")
	if err != nil {
		t.Fatalf("PatchModel failed: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(patched, &out); err != nil {
		t.Fatalf("patched body is not JSON: %v", err)
	}
	if out["model"] != "sonnet" {
		t.Errorf("expected model rewritten, got %v", out["model"])
	}
	if out["id"] != "msg_1" {
		t.Errorf("other fields must survive, got %v", out)
	}

	// Bodies without a model field come back unchanged.
	noModel := json.RawMessage(`{"type":"error"}`)
	same, err := PatchModel(noModel, "sonnet")
	if err != nil {
		t.Fatalf("PatchModel failed: %v", err)
	}
	if string(same) != `{"type":"error"}` {
		t.Errorf("expected body without model unchanged, got %s", same)
	}
}

func TestPatchMessageStartModel(t *testing.T) {
	raw := json.RawMessage(`{"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-4-20250514","content":[]}}`)

	patched := PatchMessageStartModel(raw, "sonnet")

	var out struct {
		Message struct {
			ID    string `json:"id"`
			Model string `json:"model"`
		} `json:"message"`
	}
	if err := json.Unmarshal(patched, &out); err != nil {
		t.Fatalf("patched frame is not JSON: %v", err)
	}
	if out.Message.Model != "sonnet" || out.Message.ID != "msg_1" {
		t.Errorf("unexpected patched frame: %+v", out)
	}

	// Unparseable frames come back as-is.
	if got := PatchMessageStartModel(json.RawMessage(`not json`), "x"); string(got) != "not json" {
		t.Errorf("expected garbage returned unchanged, got %q", got)
	}
}

func TestClient_EchoesRequestedModel(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	// Upstream normalizes the requested name to a dated release.
	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MockMessagesResponse("ok", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	resp, err := client.CreateMessage(context.Background(),
		testhelpers.TestMessagesRequest("claude-sonnet-4-latest",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if resp.Model != "claude-sonnet-4-latest" {
		t.Errorf("Model = %q, want the requested name echoed", resp.Model)
	}
	var echo map[string]interface{}
	if err := json.Unmarshal(resp.Raw, &echo); err != nil {
		t.Fatalf("Raw is not JSON: %v", err)
	}
	if echo["model"] != "claude-sonnet-4-latest" {
		t.Errorf("raw model = %v, want the requested name echoed", echo["model"])
	}
	if echo["id"] != "msg_0123456789abcdef01234567" {
		t.Errorf("other fields must survive the rewrite, got %v", echo)
	}
}

func TestClient_StreamEchoesRequestedModel(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StreamRaw: testhelpers.MockMessagesStream("ok", "claude-sonnet-4-20250514"),
	})

	client := newTestClient(t, mock)

	events, err := client.StreamMessage(context.Background(),
		testhelpers.TestStreamingRequest("claude-sonnet-4-latest",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}

	collected, streamErr := testhelpers.CollectStreamEvents(t, events)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}

	start := collected[0]
	if start.Type != providers.EventMessageStart {
		t.Fatalf("first event = %s, want message_start", start.Type)
	}
	frame := string(start.Raw)
	if !strings.HasPrefix(frame, "event: message_start\ndata: ") {
		t.Fatalf("message_start frame lost its SSE framing: %q", frame)
	}
	if !strings.Contains(frame, `"claude-sonnet-4-latest"`) {
		t.Errorf("message_start model not rewritten: %q", frame)
	}
	if start.Message == nil || start.Message.Model != "claude-sonnet-4-latest" {
		t.Errorf("parsed message = %+v, want the requested model name", start.Message)
	}
}

func TestClient_StreamReadGapTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timeout test in short mode")
	}

	// One frame, then the handler stalls far beyond the read-gap timeout.
	frames := testhelpers.MockMessagesStream("partial", "claude-sonnet-4-20250514")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, frames[0])
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	desc := testhelpers.TestDescriptorWithURL("anthropic", providers.FormatPassthrough, server.URL)
	desc.StreamReadTimeout = 150 * time.Millisecond

	client, err := NewClient(desc,
		testhelpers.StaticCredentials(map[string]string{"x-api-key": "test-key"}))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	events, err := client.StreamMessage(context.Background(),
		testhelpers.TestStreamingRequest("claude-sonnet-4-20250514",
			testhelpers.TestMessage(providers.RoleUser, "Hi")))
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}

	_, streamErr := testhelpers.CollectStreamEvents(t, events)
	if streamErr == nil {
		t.Fatal("expected a timeout error from the stalled stream")
	}
	var timeoutErr *providers.TimeoutError
	if !errors.As(streamErr, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %T: %v", streamErr, streamErr)
	}
}
