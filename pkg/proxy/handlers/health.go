package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// CredentialChecker reports whether an OAuth provider has stored
// credentials. The oauth store satisfies it.
type CredentialChecker interface {
	Authenticated(provider string) bool
}

// UsageSummarizer exposes ledger totals for the health summary.
type UsageSummarizer interface {
	Summary(ctx context.Context) (*usage.Summary, error)
}

// HealthHandler serves GET /health: liveness plus a provider and credential
// summary. It never calls upstreams; /test-connection does that.
type HealthHandler struct {
	dispatcher Dispatcher
	creds      CredentialChecker
	summarizer UsageSummarizer
}

// NewHealthHandler creates the handler. creds and summarizer may be nil.
func NewHealthHandler(dispatcher Dispatcher, creds CredentialChecker, summarizer UsageSummarizer) *HealthHandler {
	return &HealthHandler{dispatcher: dispatcher, creds: creds, summarizer: summarizer}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	registry := h.dispatcher.Registry()
	defaultName := ""
	if def := registry.Default(); def != nil {
		defaultName = def.Name
	}

	providerSummaries := make([]map[string]any, 0)
	for _, desc := range registry.List() {
		entry := map[string]any{
			"name":       desc.Name,
			"api_format": desc.APIFormat,
			"auth":       desc.Auth.Kind,
			"default":    desc.Name == defaultName,
		}
		if desc.Auth.Kind == providers.AuthOAuth && h.creds != nil {
			entry["authenticated"] = h.creds.Authenticated(desc.Name)
		}
		providerSummaries = append(providerSummaries, entry)
	}

	response := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().Unix(),
		"default":        defaultName,
		"default_source": registry.DefaultSource(),
		"providers":      providerSummaries,
	}

	if h.summarizer != nil {
		if summary, err := h.summarizer.Summary(r.Context()); err == nil {
			response["usage"] = map[string]any{
				"requests": summary.Requests,
				"errors":   summary.Errors,
			}
		} else {
			slog.WarnContext(r.Context(), "usage summary failed", "error", err)
		}
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, response)
}
