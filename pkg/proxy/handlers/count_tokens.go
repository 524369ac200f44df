package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
	"github.com/elifarley/vandamme-proxy/pkg/tokens"
)

// CountTokensHandler serves POST /v1/messages/count_tokens with a
// character-based estimate. The body is a Messages request without
// max_tokens.
type CountTokensHandler struct {
	estimator *tokens.Estimator
}

// NewCountTokensHandler creates the handler.
func NewCountTokensHandler(estimator *tokens.Estimator) *CountTokensHandler {
	if estimator == nil {
		estimator = tokens.NewEstimator()
	}
	return &CountTokensHandler{estimator: estimator}
}

// ServeHTTP implements http.Handler.
func (h *CountTokensHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("use POST for count_tokens"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, proxy.MaxRequestBodySize))
	if err != nil {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("failed to read request body"))
		return
	}

	var req providers.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(fmt.Sprintf("invalid JSON: %v", err)))
		return
	}
	if req.Model == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("model is required"))
		return
	}
	if len(req.Messages) == 0 {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("messages must not be empty"))
		return
	}

	count := h.estimator.EstimateRequest(&req)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, map[string]int{"input_tokens": count})
}
