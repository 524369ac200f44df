package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

type modelList struct {
	Data []struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Provider string `json:"provider"`
	} `json:"data"`
	HasMore bool `json:"has_more"`
}

func decodeModelList(t *testing.T, body []byte) modelList {
	t.Helper()
	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("body not JSON: %v\n%s", err, body)
	}
	return list
}

func TestModelsFanOut(t *testing.T) {
	gemini := &fakeClient{
		name: "gemini",
		models: []providers.ModelInfo{
			{ID: "gemini-2.5-pro", Provider: "gemini", Created: 1718000000},
			{ID: "gemini-2.5-flash", Provider: "gemini"},
		},
	}
	claude := &fakeClient{
		name: "claudeapi",
		models: []providers.ModelInfo{
			{ID: "claude-sonnet-4", Provider: "claudeapi"},
		},
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": claude},
	}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	list := decodeModelList(t, w.Body.Bytes())
	if len(list.Data) != 3 {
		t.Fatalf("models = %d, want union of both providers", len(list.Data))
	}
	// Sorted by provider then ID.
	wantIDs := []string{"claude-sonnet-4", "gemini-2.5-flash", "gemini-2.5-pro"}
	for i, want := range wantIDs {
		if list.Data[i].ID != want {
			t.Errorf("data[%d].id = %q, want %q", i, list.Data[i].ID, want)
		}
		if list.Data[i].Type != "model" {
			t.Errorf("data[%d].type = %q", i, list.Data[i].Type)
		}
	}
	if list.HasMore {
		t.Error("has_more should be false")
	}
}

func TestModelsProviderFilter(t *testing.T) {
	gemini := &fakeClient{
		name:   "gemini",
		models: []providers.ModelInfo{{ID: "gemini-2.5-pro", Provider: "gemini"}},
	}
	claude := &fakeClient{name: "claudeapi"}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": claude},
	}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini", nil))

	list := decodeModelList(t, w.Body.Bytes())
	if len(list.Data) != 1 || list.Data[0].Provider != "gemini" {
		t.Errorf("data = %+v", list.Data)
	}
	if claude.listCalls != 0 {
		t.Error("filtered-out provider was still queried")
	}
}

func TestModelsUnknownProvider(t *testing.T) {
	dispatcher := &fakeDispatcher{registry: testRegistry(t), clients: map[string]*fakeClient{}}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=nonexistent", nil))

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestModelsOpenAIFormat(t *testing.T) {
	gemini := &fakeClient{
		name:   "gemini",
		models: []providers.ModelInfo{{ID: "gemini-2.5-pro", Provider: "gemini", Created: 1718000000, OwnedBy: "google"}},
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": {name: "claudeapi"}},
	}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini&format=openai", nil))

	var list struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			Created int64  `json:"created"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if list.Object != "list" || len(list.Data) != 1 {
		t.Fatalf("list = %+v", list)
	}
	entry := list.Data[0]
	if entry.Object != "model" || entry.Created != 1718000000 || entry.OwnedBy != "google" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestModelsRawFormat(t *testing.T) {
	gemini := &fakeClient{
		name: "gemini",
		models: []providers.ModelInfo{{
			ID:       "gemini-2.5-pro",
			Provider: "gemini",
			Raw:      map[string]any{"id": "gemini-2.5-pro", "vendor_field": "kept"},
		}},
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": {name: "claudeapi"}},
	}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini&format=raw", nil))

	var list struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0]["vendor_field"] != "kept" {
		t.Errorf("raw entry lost vendor field: %+v", list.Data)
	}
}

func TestModelsCacheHitAndExpiry(t *testing.T) {
	gemini := &fakeClient{
		name:   "gemini",
		models: []providers.ModelInfo{{ID: "gemini-2.5-pro", Provider: "gemini"}},
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": {name: "claudeapi"}},
	}
	h := NewModelsHandler(dispatcher, time.Minute)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini", nil))
	}
	if gemini.listCalls != 1 {
		t.Fatalf("listCalls = %d, want 1 fetch for repeated requests inside TTL", gemini.listCalls)
	}

	clock = clock.Add(2 * time.Minute)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini", nil))
	if gemini.listCalls != 2 {
		t.Errorf("listCalls = %d, want refetch after TTL expiry", gemini.listCalls)
	}
}

func TestModelsStaticFallback(t *testing.T) {
	gemini := &fakeClient{
		name: "gemini",
		err:  errors.New("upstream unreachable"),
	}
	dispatcher := &fakeDispatcher{
		registry: testRegistry(t),
		clients:  map[string]*fakeClient{"gemini": gemini, "claudeapi": {name: "claudeapi"}},
	}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models?provider=gemini", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, fetch failure must not fail the endpoint", w.Code)
	}
	list := decodeModelList(t, w.Body.Bytes())
	if len(list.Data) != 2 {
		t.Fatalf("data = %+v, want the descriptor's static list", list.Data)
	}
	got := map[string]bool{}
	for _, m := range list.Data {
		got[m.ID] = true
	}
	if !got["gemini-2.5-pro"] || !got["gemini-2.5-flash"] {
		t.Errorf("static fallback models = %v", got)
	}
}

func TestModelsRejectsPost(t *testing.T) {
	dispatcher := &fakeDispatcher{registry: testRegistry(t)}
	h := NewModelsHandler(dispatcher, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/v1/models", nil))

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
