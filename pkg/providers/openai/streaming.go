package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// chunkReader reads OpenAI streaming chunks off an SSE response body.
type chunkReader struct {
	provider string
	sse      *providers.SSEReader
}

func newChunkReader(provider string, body io.ReadCloser) *chunkReader {
	return &chunkReader{
		provider: provider,
		sse:      providers.NewSSEReader(body),
	}
}

// Next returns the next parsed chunk from the stream.
// Returns nil, io.EOF on the [DONE] sentinel or when the body ends.
// Records that are neither JSON nor [DONE] are dropped.
func (r *chunkReader) Next(ctx context.Context) (*StreamResponse, error) {
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
		if record.Data == "[DONE]" {
			return nil, io.EOF
		}

		var chunk StreamResponse
		if err := json.Unmarshal([]byte(record.Data), &chunk); err != nil {
			slog.Debug("dropping malformed stream record",
				"provider", r.provider,
				"data", truncateForLog(record.Data, 200),
			)
			continue
		}
		return &chunk, nil
	}
}

// Close closes the stream and releases resources.
func (r *chunkReader) Close() error {
	return r.sse.Close()
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
