package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/elifarley/vandamme-proxy/pkg/middleware"
	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy"
	proxymw "github.com/elifarley/vandamme-proxy/pkg/proxy/middleware"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// MessagesHandler serves POST /v1/messages. It parses the Anthropic request,
// resolves the provider from the model string, runs the request middleware
// chain, dispatches upstream, and delivers the response as blocking JSON or
// an SSE stream.
type MessagesHandler struct {
	dispatcher Dispatcher
	chain      *middleware.Chain
	sink       UsageSink
}

// NewMessagesHandler creates the handler. chain may be empty but not nil;
// sink may be nil to disable usage recording.
func NewMessagesHandler(dispatcher Dispatcher, chain *middleware.Chain, sink UsageSink) *MessagesHandler {
	if chain == nil {
		chain = middleware.NewChain()
	}
	return &MessagesHandler{dispatcher: dispatcher, chain: chain, sink: sink}
}

// ServeHTTP implements http.Handler.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := proxymw.GetRequestID(ctx)

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, types.NewInvalidRequestError("use POST for /v1/messages"))
		return
	}

	req, err := proxy.ParseMessagesRequest(r)
	if err != nil {
		slog.WarnContext(ctx, "request rejected",
			"request_id", requestID,
			"error", err,
		)
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}

	meta := proxy.NewRequestMeta(r, requestID, req.Stream)
	meta.RequestedModel = req.Model

	registry := h.dispatcher.Registry()
	desc, resolvedModel, err := registry.Resolve(req.Model)
	if err != nil {
		slog.WarnContext(ctx, "request rejected",
			"request_id", requestID,
			"model", req.Model,
			"error", err,
		)
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}
	req.Model = resolvedModel
	req.MaxTokens = desc.CapMaxTokens(req.MaxTokens)
	meta.Provider = desc.Name
	meta.Model = resolvedModel

	slog.InfoContext(ctx, "processing messages request",
		"request_id", requestID,
		"provider", desc.Name,
		"model", resolvedModel,
		"stream", req.Stream,
		"messages", len(req.Messages),
	)

	client, err := h.dispatcher.ClientFor(ctx, desc.Name)
	if err != nil {
		h.fail(ctx, w, meta, err)
		return
	}

	rc := &middleware.RequestContext{
		RequestID:      requestID,
		Provider:       desc.Name,
		Model:          resolvedModel,
		Stream:         req.Stream,
		ConversationID: proxy.ConversationID(req),
		Request:        req,
	}

	if err := h.chain.BeforeRequest(ctx, rc); err != nil {
		h.fail(ctx, w, meta, err)
		return
	}

	if req.Stream {
		h.stream(w, r, client, rc, meta)
		return
	}
	h.unary(w, r, client, rc, meta)
}

// unary dispatches a blocking request and writes the JSON response.
func (h *MessagesHandler) unary(w http.ResponseWriter, r *http.Request, client providers.Client, rc *middleware.RequestContext, meta *proxy.RequestMeta) {
	ctx := r.Context()

	resp, err := client.CreateMessage(ctx, rc.Request)
	if err != nil {
		h.fail(ctx, w, meta, err)
		return
	}

	resp, err = h.chain.AfterResponse(ctx, rc, resp)
	if err != nil {
		h.fail(ctx, w, meta, err)
		return
	}

	meta.ObserveResponse(resp)
	h.record(ctx, meta)

	// Passthrough responses keep the upstream body byte-for-byte so
	// unmodeled fields survive.
	if len(resp.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp.Raw); err != nil {
			slog.ErrorContext(ctx, "failed to write response",
				"request_id", meta.RequestID, "error", err)
		}
	} else if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		slog.ErrorContext(ctx, "failed to write response",
			"request_id", meta.RequestID, "error", err)
	}

	slog.InfoContext(ctx, "messages request completed",
		"request_id", meta.RequestID,
		"provider", meta.Provider,
		"model", meta.Model,
		"stop_reason", meta.StopReason,
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens,
		"latency_ms", meta.Latency().Milliseconds(),
	)
}

// stream dispatches a streaming request and relays SSE events. The stream
// completion hook fires exactly once, cancellation included; the usage row
// is written from whatever accumulated.
func (h *MessagesHandler) stream(w http.ResponseWriter, r *http.Request, client providers.Client, rc *middleware.RequestContext, meta *proxy.RequestMeta) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := client.StreamMessage(ctx, rc.Request)
	if err != nil {
		h.fail(ctx, w, meta, err)
		return
	}

	sw, err := proxy.NewStreamWriter(w)
	if err != nil {
		// Drain so the upstream reader can exit.
		cancel()
		for range events {
		}
		h.fail(r.Context(), w, meta, err)
		return
	}

	acc := providers.NewStreamAccumulator()
	defer func() {
		if ctx.Err() != nil && meta.ErrorKind == "" && acc.StopReason == "" {
			acc.Cancelled = true
		}

		// Completion fires exactly once per stream, cancelled or not, so
		// middleware can commit whatever arrived.
		done := context.WithoutCancel(ctx)
		h.chain.OnStreamComplete(done, rc, acc)

		meta.ObserveStream(acc)
		h.record(done, meta)

		slog.InfoContext(done, "messages stream completed",
			"request_id", meta.RequestID,
			"provider", meta.Provider,
			"model", meta.Model,
			"stop_reason", acc.StopReason,
			"cancelled", acc.Cancelled,
			"output_tokens", acc.Usage.OutputTokens,
			"latency_ms", meta.Latency().Milliseconds(),
		)
	}()

	for ev := range events {
		if ev.Err != nil {
			errResp := proxy.HandleError(ev.Err)
			meta.ErrorKind = errResp.Error.Type
			slog.ErrorContext(ctx, "stream failed",
				"request_id", meta.RequestID,
				"provider", meta.Provider,
				"error", ev.Err,
			)
			if werr := sw.WriteError(errResp); werr != nil {
				slog.DebugContext(ctx, "client gone before error event",
					"request_id", meta.RequestID, "error", werr)
			}
			return
		}

		out := h.chain.OnStreamChunk(ctx, rc, ev)
		acc.Observe(out)

		if werr := sw.WriteEvent(out); werr != nil {
			acc.Cancelled = true
			cancel()
			for range events {
			}
			return
		}
	}
}

// fail maps err, records the outcome, and writes the error envelope.
func (h *MessagesHandler) fail(ctx context.Context, w http.ResponseWriter, meta *proxy.RequestMeta, err error) {
	errResp := proxy.HandleError(err)
	meta.ErrorKind = errResp.Error.Type

	slog.ErrorContext(ctx, "messages request failed",
		"request_id", meta.RequestID,
		"provider", meta.Provider,
		"model", meta.Model,
		"error_kind", errResp.Error.Type,
		"error", err,
	)

	h.record(ctx, meta)
	h.writeError(ctx, w, errResp)
}

// writeError writes an error envelope, logging delivery failures.
func (h *MessagesHandler) writeError(ctx context.Context, w http.ResponseWriter, errResp *types.ErrorResponse) {
	if err := proxy.WriteErrorResponse(w, errResp); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// record inserts the usage row when a sink is configured.
func (h *MessagesHandler) record(ctx context.Context, meta *proxy.RequestMeta) {
	if h.sink == nil {
		return
	}
	if err := h.sink.Insert(ctx, meta.Record()); err != nil {
		slog.WarnContext(ctx, "usage record failed",
			"request_id", meta.RequestID, "error", err)
	}
}
