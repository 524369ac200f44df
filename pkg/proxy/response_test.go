package proxy

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

func TestWriteJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteJSONResponse(w, 200, map[string]string{"ok": "yes"}); err != nil {
		t.Fatalf("WriteJSONResponse failed: %v", err)
	}
	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body["ok"] != "yes" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteErrorResponseUsesKindStatus(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteErrorResponse(w, types.NewInvalidRequestError("bad body")); err != nil {
		t.Fatalf("WriteErrorResponse failed: %v", err)
	}
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var envelope types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if envelope.Type != "error" || envelope.Error.Type != types.ErrorTypeInvalidRequest {
		t.Errorf("envelope = %+v", envelope)
	}
}

func TestStreamWriterEventFraming(t *testing.T) {
	w := httptest.NewRecorder()
	sw, err := NewStreamWriter(w)
	if err != nil {
		t.Fatalf("NewStreamWriter failed: %v", err)
	}

	if err := sw.WriteEvent(providers.TextDeltaEvent(0, "hel")); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if err := sw.WriteEvent(providers.MessageStopEvent()); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	body := w.Body.String()
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	wantFirst := "event: content_block_delta\ndata: "
	if !strings.HasPrefix(body, wantFirst) {
		t.Errorf("body starts %q, want %q", body[:40], wantFirst)
	}
	if !strings.Contains(body, `"text":"hel"`) {
		t.Errorf("delta payload missing: %s", body)
	}
	if !strings.Contains(body, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n") {
		t.Errorf("terminator frame missing: %s", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Error("Anthropic stream must not carry [DONE]")
	}
}

func TestStreamWriterForwardsRawFrames(t *testing.T) {
	w := httptest.NewRecorder()
	sw, err := NewStreamWriter(w)
	if err != nil {
		t.Fatalf("NewStreamWriter failed: %v", err)
	}

	frame := []byte("event: ping\ndata: {\"type\":\"ping\",\"extra\":true}\n\n")
	ev := &providers.StreamEvent{Type: providers.EventPing, Raw: frame}

	if err := sw.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if got := w.Body.String(); got != string(frame) {
		t.Errorf("body = %q, want the frame verbatim", got)
	}
}

func TestStreamWriterRawAppendsSeparator(t *testing.T) {
	w := httptest.NewRecorder()
	sw, err := NewStreamWriter(w)
	if err != nil {
		t.Fatalf("NewStreamWriter failed: %v", err)
	}

	if err := sw.WriteRaw([]byte("data: {}")); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}
	if got := w.Body.String(); got != "data: {}\n\n" {
		t.Errorf("body = %q, want separator appended", got)
	}
}

func TestStreamWriterError(t *testing.T) {
	w := httptest.NewRecorder()
	sw, err := NewStreamWriter(w)
	if err != nil {
		t.Fatalf("NewStreamWriter failed: %v", err)
	}

	if err := sw.WriteError(types.NewUpstreamError("upstream hung up")); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	body := w.Body.String()
	want := `event: error` + "\n" +
		`data: {"type":"error","error":{"type":"upstream_error","message":"upstream hung up"}}` + "\n\n"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}
