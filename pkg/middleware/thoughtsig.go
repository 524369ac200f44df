package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// geminiMarker identifies models whose reasoning continuity depends on
// thought signatures.
const geminiMarker = "gemini"

// ThoughtSignatures is the middleware that persists Gemini thought
// signatures across turns. On the way out it looks up signatures for the
// assistant tool calls in the conversation history and marks them for
// injection; on the way back it stores whatever signatures the upstream
// reported, keyed by the response's tool call ids.
type ThoughtSignatures struct {
	Base
	cache *SignatureCache
}

// NewThoughtSignatures creates the middleware over cache.
func NewThoughtSignatures(cache *SignatureCache) *ThoughtSignatures {
	return &ThoughtSignatures{cache: cache}
}

// Name implements Middleware.
func (m *ThoughtSignatures) Name() string {
	return "thought-signatures"
}

// active reports whether model needs signature handling.
func (m *ThoughtSignatures) active(model string) bool {
	return strings.Contains(strings.ToLower(model), geminiMarker)
}

// BeforeRequest resolves cached signatures for every assistant message that
// carries tool_use blocks and records them on the request for the translator
// to attach. A cache miss is not an error; the upstream degrades gracefully
// without signatures.
func (m *ThoughtSignatures) BeforeRequest(ctx context.Context, rc *RequestContext) error {
	if !m.active(rc.Model) || rc.Request == nil {
		return nil
	}

	for i := range rc.Request.Messages {
		msg := &rc.Request.Messages[i]
		if msg.Role != providers.RoleAssistant {
			continue
		}
		ids := providers.ToolUseIDs(msg.Content.AsBlocks())
		if len(ids) == 0 {
			continue
		}

		entry := m.cache.Retrieve(ids, rc.ConversationID)
		if entry == nil {
			continue
		}

		for _, id := range ids {
			sig, ok := entry.Signatures[id]
			if !ok {
				continue
			}
			if rc.Request.Signatures == nil {
				rc.Request.Signatures = make(map[string]string)
			}
			rc.Request.Signatures[id] = sig
		}

		slog.Debug("thought signatures resolved",
			"request_id", rc.RequestID,
			"message_id", entry.MessageID,
			"tool_calls", len(ids),
		)
	}
	return nil
}

// AfterResponse stores signatures reported on a unary response.
func (m *ThoughtSignatures) AfterResponse(ctx context.Context, rc *RequestContext, resp *providers.MessagesResponse) (*providers.MessagesResponse, error) {
	if m.active(rc.Model) && resp != nil && len(resp.Signatures) > 0 {
		m.cache.Store(&SignatureEntry{
			MessageID:      resp.ID,
			ConversationID: rc.ConversationID,
			Signatures:     resp.Signatures,
		})
	}
	return resp, nil
}

// OnStreamComplete commits signatures accumulated from stream deltas. A
// cancelled stream still commits what arrived; partial signatures are
// better than none on the next turn.
func (m *ThoughtSignatures) OnStreamComplete(ctx context.Context, rc *RequestContext, acc *providers.StreamAccumulator) {
	if !m.active(rc.Model) || acc == nil || len(acc.Signatures) == 0 {
		return
	}
	m.cache.Store(&SignatureEntry{
		MessageID:      acc.MessageID,
		ConversationID: rc.ConversationID,
		Signatures:     acc.Signatures,
	})
}
