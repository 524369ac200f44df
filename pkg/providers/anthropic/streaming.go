package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// eventReader reads Anthropic stream events off an SSE response body. Events
// are parsed so the proxy can observe them, but each keeps the complete SSE
// record on Raw so the writer can forward the frame verbatim. The one
// rewrite is message_start, whose message.model is patched back to the model
// the caller asked for.
type eventReader struct {
	provider string
	model    string
	sse      *providers.SSEReader
}

func newEventReader(provider, model string, body io.ReadCloser) *eventReader {
	return &eventReader{
		provider: provider,
		model:    model,
		sse:      providers.NewSSEReader(body),
	}
}

// Next returns the next event from the stream.
// Returns nil, io.EOF when the body ends. Frames that fail to parse are
// still returned, carrying only the event name and raw frame, so the
// proxy can forward what it cannot understand.
func (r *eventReader) Next(ctx context.Context) (*providers.StreamEvent, error) {
	for {
		record, err := r.sse.Next(ctx)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil, err
			}
			return nil, &providers.StreamError{
				Provider: r.provider,
				Message:  "failed to read stream",
				Cause:    err,
			}
		}

		if record.Data == "" {
			continue
		}

		ev := &providers.StreamEvent{}
		if err := json.Unmarshal([]byte(record.Data), ev); err != nil {
			slog.Debug("forwarding unparseable stream frame",
				"provider", r.provider,
				"event", record.Event,
			)
			ev = &providers.StreamEvent{Type: record.Event}
		}
		if ev.Type == "" {
			ev.Type = record.Event
		}
		ev.Raw = record.Raw

		if ev.Type == providers.EventMessageStart && r.model != "" {
			patched := PatchMessageStartModel([]byte(record.Data), r.model)
			ev.Raw = sseFrame(record.Event, ev.Type, patched)
			if ev.Message != nil {
				ev.Message.Model = r.model
			}
		}

		return ev, nil
	}
}

// sseFrame rebuilds one SSE record around a rewritten data payload. The
// payload must not contain raw newlines; re-marshaled JSON never does.
func sseFrame(event, fallback string, data []byte) []byte {
	if event == "" {
		event = fallback
	}

	var b bytes.Buffer
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes()
}

// Close closes the stream and releases resources.
func (r *eventReader) Close() error {
	return r.sse.Close()
}
