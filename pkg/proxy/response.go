package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// WriteJSONResponse writes a JSON response to the HTTP response writer.
// It sets the content-type header and reports encoding failures.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	return nil
}

// WriteErrorResponse writes the error envelope with the status code its kind
// carries.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	statusCode := errResp.Error.HTTPStatusCode()
	return WriteJSONResponse(w, statusCode, errResp)
}

// SetSSEHeaders sets the headers for Server-Sent Events streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// StreamWriter emits Anthropic SSE frames. Each event is written as
//
//	event: content_block_delta
//	data: {"type":"content_block_delta",...}
//
// followed by a blank line, and flushed immediately so clients see deltas in
// real time. Passthrough frames captured verbatim upstream are forwarded
// byte-for-byte instead of being re-encoded.
type StreamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStreamWriter prepares w for SSE output. It fails when the underlying
// writer cannot flush, since unflushed streaming is indistinguishable from a
// hang to the client.
func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &StreamWriter{w: w, flusher: flusher}, nil
}

// WriteEvent emits one stream event. Events carrying a Raw frame are
// forwarded verbatim; everything else is serialized as
// "event: <type>\ndata: <json>\n\n".
func (sw *StreamWriter) WriteEvent(ev *providers.StreamEvent) error {
	if ev == nil {
		return nil
	}
	if len(ev.Raw) > 0 {
		return sw.WriteRaw(ev.Raw)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("failed to write stream event: %w", err)
	}

	sw.flusher.Flush()
	return nil
}

// WriteRaw forwards an upstream frame untouched. The frame is expected to be
// a complete SSE record; a record separator is appended when missing.
func (sw *StreamWriter) WriteRaw(frame []byte) error {
	if _, err := sw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to forward stream frame: %w", err)
	}
	if n := len(frame); n < 2 || frame[n-1] != '\n' || frame[n-2] != '\n' {
		if _, err := sw.w.Write([]byte("\n\n")); err != nil {
			return fmt.Errorf("failed to forward stream frame: %w", err)
		}
	}

	sw.flusher.Flush()
	return nil
}

// WriteError emits a terminal error event:
//
//	event: error
//	data: {"type":"error","error":{"type":...,"message":...}}
func (sw *StreamWriter) WriteError(errResp *types.ErrorResponse) error {
	data, err := json.Marshal(errResp)
	if err != nil {
		return fmt.Errorf("failed to marshal stream error: %w", err)
	}

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", providers.EventError, data); err != nil {
		return fmt.Errorf("failed to write stream error: %w", err)
	}

	sw.flusher.Flush()
	return nil
}
