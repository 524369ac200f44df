package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// Model list defaults.
const (
	// DefaultModelsTTL is how long a provider's fetched model list stays
	// cached.
	DefaultModelsTTL = 5 * time.Minute

	// modelsFetchTimeout bounds each provider's list call during fan-out.
	modelsFetchTimeout = 10 * time.Second
)

// ModelsHandler serves GET /v1/models: the union of every provider's model
// list, fetched concurrently and cached with a TTL. Query parameters:
//
//	?provider=<name>              only that provider's models
//	?format=anthropic|openai|raw  response envelope (default anthropic)
type ModelsHandler struct {
	dispatcher Dispatcher
	ttl        time.Duration

	mu    sync.Mutex
	cache map[string]cachedModels

	// now is swappable for tests
	now func() time.Time
}

type cachedModels struct {
	models    []providers.ModelInfo
	fetchedAt time.Time
}

// NewModelsHandler creates the handler. ttl <= 0 selects the default.
func NewModelsHandler(dispatcher Dispatcher, ttl time.Duration) *ModelsHandler {
	if ttl <= 0 {
		ttl = DefaultModelsTTL
	}
	return &ModelsHandler{
		dispatcher: dispatcher,
		ttl:        ttl,
		cache:      make(map[string]cachedModels),
		now:        time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("use GET for /v1/models"))
		return
	}

	registry := h.dispatcher.Registry()
	descs := registry.List()

	if filter := r.URL.Query().Get("provider"); filter != "" {
		desc, err := registry.Lookup(filter)
		if err != nil {
			_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
			return
		}
		descs = []*providers.Descriptor{desc}
	}

	models := h.collect(r.Context(), descs)

	switch r.URL.Query().Get("format") {
	case "openai":
		_ = proxy.WriteJSONResponse(w, http.StatusOK, openaiModelList(models))
	case "raw":
		_ = proxy.WriteJSONResponse(w, http.StatusOK, rawModelList(models))
	default:
		_ = proxy.WriteJSONResponse(w, http.StatusOK, anthropicModelList(models))
	}
}

// collect gathers model lists for descs, one goroutine per provider. Stale
// or missing cache entries trigger an upstream fetch; fetch failures fall
// back to the descriptor's static list.
func (h *ModelsHandler) collect(ctx context.Context, descs []*providers.Descriptor) []providers.ModelInfo {
	results := make([][]providers.ModelInfo, len(descs))

	g, ctx := errgroup.WithContext(ctx)
	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			results[i] = h.providerModels(ctx, desc)
			return nil
		})
	}
	_ = g.Wait()

	var all []providers.ModelInfo
	for _, models := range results {
		all = append(all, models...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Provider != all[j].Provider {
			return all[i].Provider < all[j].Provider
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// providerModels returns one provider's models from cache, upstream, or the
// descriptor fallback, in that order.
func (h *ModelsHandler) providerModels(ctx context.Context, desc *providers.Descriptor) []providers.ModelInfo {
	h.mu.Lock()
	entry, ok := h.cache[desc.Name]
	h.mu.Unlock()
	if ok && h.now().Sub(entry.fetchedAt) < h.ttl {
		return entry.models
	}

	fetchCtx, cancel := context.WithTimeout(ctx, modelsFetchTimeout)
	defer cancel()

	models, err := h.fetch(fetchCtx, desc)
	if err != nil {
		slog.WarnContext(ctx, "model list fetch failed",
			"provider", desc.Name,
			"error", err,
		)
		return staticModels(desc)
	}

	h.mu.Lock()
	h.cache[desc.Name] = cachedModels{models: models, fetchedAt: h.now()}
	h.mu.Unlock()
	return models
}

// fetch asks the provider's client for its live model list.
func (h *ModelsHandler) fetch(ctx context.Context, desc *providers.Descriptor) ([]providers.ModelInfo, error) {
	client, err := h.dispatcher.ClientFor(ctx, desc.Name)
	if err != nil {
		return nil, err
	}
	return client.ListModels(ctx)
}

// staticModels converts the descriptor's configured fallback list.
func staticModels(desc *providers.Descriptor) []providers.ModelInfo {
	models := make([]providers.ModelInfo, 0, len(desc.Models))
	for _, id := range desc.Models {
		models = append(models, providers.ModelInfo{ID: id, Provider: desc.Name})
	}
	return models
}

// anthropicModelList is the default envelope.
func anthropicModelList(models []providers.ModelInfo) map[string]any {
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		entry := map[string]any{
			"type":     "model",
			"id":       m.ID,
			"provider": m.Provider,
		}
		if m.Created != 0 {
			entry["created_at"] = time.Unix(m.Created, 0).UTC().Format(time.RFC3339)
		}
		data = append(data, entry)
	}
	return map[string]any{"data": data, "has_more": false}
}

// openaiModelList mirrors the OpenAI /v1/models shape.
func openaiModelList(models []providers.ModelInfo) map[string]any {
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		entry := map[string]any{
			"id":     m.ID,
			"object": "model",
		}
		if m.Created != 0 {
			entry["created"] = m.Created
		}
		if m.OwnedBy != "" {
			entry["owned_by"] = m.OwnedBy
		}
		data = append(data, entry)
	}
	return map[string]any{"object": "list", "data": data}
}

// rawModelList forwards the upstream entries untouched.
func rawModelList(models []providers.ModelInfo) map[string]any {
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		if m.Raw != nil {
			data = append(data, m.Raw)
			continue
		}
		data = append(data, map[string]any{"id": m.ID, "provider": m.Provider})
	}
	return map[string]any{"data": data}
}
