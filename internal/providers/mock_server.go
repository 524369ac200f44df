package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a mock HTTP server for testing provider adapters.
// It simulates upstream API responses including errors and SSE streams.
type MockServer struct {
	server       *httptest.Server
	responses    map[string]MockResponse
	requestCount int
	lastBody     []byte
	lastHeader   http.Header
	mu           sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode   int
	Body         interface{}
	Delay        time.Duration
	Headers      map[string]string
	StreamChunks []string // data: payloads; a [DONE] sentinel is appended
	StreamRaw    []string // pre-framed SSE records written verbatim, no [DONE]
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
	}

	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))

	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets a mock response for a specific endpoint.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.responses[path] = response
}

// GetRequestCount returns the number of requests received.
func (ms *MockServer) GetRequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.requestCount
}

// ResetRequestCount resets the request counter.
func (ms *MockServer) ResetRequestCount() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requestCount = 0
}

// LastBody returns the body of the most recent request.
func (ms *MockServer) LastBody() []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.lastBody
}

// LastHeader returns a header value from the most recent request.
func (ms *MockServer) LastHeader(key string) string {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.lastHeader == nil {
		return ""
	}
	return ms.lastHeader.Get(key)
}

// handler handles incoming HTTP requests.
func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requestCount++
	ms.lastBody = body
	ms.lastHeader = r.Header.Clone()
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 || len(response.StreamRaw) > 0 {
		ms.handleStream(w, response)
		return
	}

	w.WriteHeader(response.StatusCode)

	if response.Body != nil {
		switch v := response.Body.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		case []byte:
			_, _ = w.Write(v)
		default:
			_ = json.NewEncoder(w).Encode(response.Body)
		}
	}
}

// handleStream writes a Server-Sent Events response.
func (ms *MockServer) handleStream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Verbatim frames, as an Anthropic upstream would send them.
	if len(response.StreamRaw) > 0 {
		for _, frame := range response.StreamRaw {
			fmt.Fprint(w, frame)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
		return
	}

	// data:-wrapped chunks with a trailing [DONE], OpenAI style.
	for _, chunk := range response.StreamChunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// MockChatCompletion creates a mock Chat Completions response.
func MockChatCompletion(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// MockChatCompletionToolCall creates a mock Chat Completions response whose
// assistant turn invokes a single tool.
func MockChatCompletionToolCall(id, name, arguments, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]interface{}{
						{
							"id":   id,
							"type": "function",
							"function": map[string]interface{}{
								"name":      name,
								"arguments": arguments,
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     15,
			"completion_tokens": 25,
			"total_tokens":      40,
		},
	}
}

// MockChatChunkText creates a streaming chunk carrying a text delta.
func MockChatChunkText(delta string) string {
	return mockChatChunk(map[string]interface{}{"content": delta}, "")
}

// MockChatChunkToolCall creates a streaming chunk carrying one tool_calls
// delta entry. Zero-value fields are omitted, as upstreams do.
func MockChatChunkToolCall(index int, id, name, arguments string) string {
	call := map[string]interface{}{"index": index}
	if id != "" {
		call["id"] = id
		call["type"] = "function"
	}
	fn := map[string]interface{}{}
	if name != "" {
		fn["name"] = name
	}
	if arguments != "" {
		fn["arguments"] = arguments
	}
	if len(fn) > 0 {
		call["function"] = fn
	}
	return mockChatChunk(map[string]interface{}{"tool_calls": []interface{}{call}}, "")
}

// MockChatChunkFinish creates a streaming chunk carrying a finish_reason.
func MockChatChunkFinish(reason string) string {
	return mockChatChunk(map[string]interface{}{}, reason)
}

// MockChatChunkUsage creates the trailing usage-only chunk some upstreams
// send after the finish_reason, with an empty choices array.
func MockChatChunkUsage(prompt, completion int) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []interface{}{},
		"usage": map[string]interface{}{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
	bytes, _ := json.Marshal(chunk)
	return string(bytes)
}

func mockChatChunk(delta map[string]interface{}, finishReason string) string {
	choice := map[string]interface{}{
		"index": 0,
		"delta": delta,
	}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []interface{}{choice},
	}
	bytes, _ := json.Marshal(chunk)
	return string(bytes)
}

// MockMessagesResponse creates a mock Anthropic messages response.
func MockMessagesResponse(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "msg_0123456789abcdef01234567",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": content,
			},
		},
		"model":       model,
		"stop_reason": "end_turn",
		"usage": map[string]interface{}{
			"input_tokens":  10,
			"output_tokens": 20,
		},
	}
}

// MockMessagesStreamFrame creates one pre-framed Anthropic SSE record.
func MockMessagesStreamFrame(event string, data interface{}) string {
	bytes, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, bytes)
}

// MockMessagesStream creates the frames of a minimal complete Anthropic
// text stream, suitable for MockResponse.StreamRaw.
func MockMessagesStream(text, model string) []string {
	return []string{
		MockMessagesStreamFrame("message_start", map[string]interface{}{
			"type": "message_start",
			"message": map[string]interface{}{
				"id":            "msg_0123456789abcdef01234567",
				"type":          "message",
				"role":          "assistant",
				"content":       []interface{}{},
				"model":         model,
				"usage":         map[string]interface{}{"input_tokens": 10, "output_tokens": 0},
				"stop_reason":   nil,
				"stop_sequence": nil,
			},
		}),
		MockMessagesStreamFrame("content_block_start", map[string]interface{}{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]interface{}{"type": "text", "text": ""},
		}),
		MockMessagesStreamFrame("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]interface{}{"type": "text_delta", "text": text},
		}),
		MockMessagesStreamFrame("content_block_stop", map[string]interface{}{
			"type":  "content_block_stop",
			"index": 0,
		}),
		MockMessagesStreamFrame("message_delta", map[string]interface{}{
			"type":  "message_delta",
			"delta": map[string]interface{}{"stop_reason": "end_turn", "stop_sequence": nil},
			"usage": map[string]interface{}{"output_tokens": 20},
		}),
		MockMessagesStreamFrame("message_stop", map[string]interface{}{
			"type": "message_stop",
		}),
	}
}

// MockErrorResponse creates a mock error response.
func MockErrorResponse(statusCode int, message string) MockResponse {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "invalid_request_error",
			"code":    statusCode,
		},
	}

	return MockResponse{
		StatusCode: statusCode,
		Body:       body,
	}
}

// MockAuthError creates a 401 authentication error response.
func MockAuthError() MockResponse {
	return MockErrorResponse(http.StatusUnauthorized, "Invalid API key")
}

// MockRateLimitError creates a 429 rate limit error response.
func MockRateLimitError(retryAfter int) MockResponse {
	response := MockErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
	response.Headers = map[string]string{
		"Retry-After": fmt.Sprintf("%d", retryAfter),
	}
	return response
}

// MockTimeoutError creates a slow response to simulate timeout.
func MockTimeoutError(delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       MockChatCompletion("timeout", "gpt-4o"),
		Delay:      delay,
	}
}

// MockServerError creates a 500 internal server error response.
func MockServerError() MockResponse {
	return MockErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// ExpectHeader checks if a request has a specific header value.
func ExpectHeader(r *http.Request, key, value string) error {
	actual := r.Header.Get(key)
	if !strings.Contains(actual, value) {
		return fmt.Errorf("header %q mismatch: expected %q, got %q", key, value, actual)
	}
	return nil
}
