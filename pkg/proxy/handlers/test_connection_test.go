package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

func TestConnectionDefaultProvider(t *testing.T) {
	gemini := &fakeClient{name: "gemini"}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini},
	}
	h := NewTestConnectionHandler(dispatcher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/test-connection", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status   string `json:"status"`
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if resp.Status != "ok" || resp.Provider != "gemini" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestConnectionExplicitProvider(t *testing.T) {
	claude := &fakeClient{name: "claudeapi"}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"claudeapi": claude},
	}
	h := NewTestConnectionHandler(dispatcher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/test-connection?provider=claudeapi", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestConnectionUnknownProvider(t *testing.T) {
	dispatcher := &fakeDispatcher{registry: testRegistry(t), clients: map[string]*fakeClient{}}
	h := NewTestConnectionHandler(dispatcher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/test-connection?provider=nope", nil))

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConnectionPingFailure(t *testing.T) {
	gemini := &fakeClient{
		name:    "gemini",
		pingErr: &providers.ProviderError{Provider: "gemini", StatusCode: 503, Message: "unavailable"},
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini},
	}
	h := NewTestConnectionHandler(dispatcher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/test-connection", nil))

	if w.Code != 502 {
		t.Errorf("status = %d, want upstream failure surfaced", w.Code)
	}
}

func TestConnectionRejectsPost(t *testing.T) {
	dispatcher := &fakeDispatcher{registry: testRegistry(t)}
	h := NewTestConnectionHandler(dispatcher)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/test-connection", nil))

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
