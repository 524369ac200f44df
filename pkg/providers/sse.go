package providers

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
)

const (
	// sseInitialBuffer is the starting scanner buffer for SSE records.
	sseInitialBuffer = 64 * 1024

	// sseMaxRecordSize bounds a single SSE record. Records beyond this
	// fail the stream with bufio.ErrTooLong.
	sseMaxRecordSize = 1024 * 1024
)

// SSERecord is one server-sent event: the optional event name and the
// payload assembled from its data lines. Raw holds the record bytes as
// received, without the trailing blank line.
type SSERecord struct {
	// Event is the value of the record's event: line, if present.
	Event string

	// Data is the record's data: lines joined with newlines. Empty for
	// comment-only and keepalive records.
	Data string

	// Raw is the unparsed record, for passthrough forwarding.
	Raw []byte
}

// SSEReader splits a response body into server-sent events. Records are
// separated by blank lines; multiple data: lines within one record are
// concatenated with newlines and comment lines are dropped, per the SSE
// wire format.
type SSEReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

// NewSSEReader wraps a streaming response body.
func NewSSEReader(body io.ReadCloser) *SSEReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, sseInitialBuffer), sseMaxRecordSize)
	scanner.Split(splitSSERecords)

	return &SSEReader{
		body:    body,
		scanner: scanner,
	}
}

// Next returns the next record from the stream.
// Returns nil, io.EOF when the body ends.
func (r *SSEReader) Next(ctx context.Context) (*SSERecord, error) {
	if r.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		record := parseSSERecord(r.scanner.Bytes())
		if record.Event == "" && record.Data == "" {
			// Comment-only keepalive.
			continue
		}
		return record, nil
	}
}

// Close closes the underlying body. Safe to call more than once.
func (r *SSEReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.body.Close()
}

// splitSSERecords is a bufio.SplitFunc yielding one SSE record per token.
// Records end at the first blank line, with either LF or CRLF endings.
func splitSSERecords(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	sep, advance := -1, 0
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		sep, advance = i, i+2
	}
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 && (sep < 0 || i < sep) {
		sep, advance = i, i+4
	}
	if sep >= 0 {
		return advance, data[:sep], nil
	}

	if atEOF {
		// Trailing record without a final blank line.
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseSSERecord extracts the event name and data payload from raw record
// bytes. Unknown fields and comments are ignored.
func parseSSERecord(raw []byte) *SSERecord {
	record := &SSERecord{Raw: bytes.Clone(raw)}

	var data []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			record.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
	}
	record.Data = strings.Join(data, "\n")

	return record
}
