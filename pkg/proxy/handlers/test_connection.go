package handlers

import (
	"net/http"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/proxy"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// TestConnectionHandler serves GET /test-connection: one cheap round trip
// against a provider to prove connectivity and credentials. The default
// provider is used unless ?provider= selects another.
type TestConnectionHandler struct {
	dispatcher Dispatcher
}

// NewTestConnectionHandler creates the handler.
func NewTestConnectionHandler(dispatcher Dispatcher) *TestConnectionHandler {
	return &TestConnectionHandler{dispatcher: dispatcher}
}

// ServeHTTP implements http.Handler.
func (h *TestConnectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("use GET for /test-connection"))
		return
	}

	registry := h.dispatcher.Registry()
	name := r.URL.Query().Get("provider")
	if name == "" {
		name = registry.Default().Name
	} else if _, err := registry.Lookup(name); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	client, err := h.dispatcher.ClientFor(r.Context(), name)
	if err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	start := time.Now()
	if err := client.Ping(r.Context()); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"provider":   name,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}
