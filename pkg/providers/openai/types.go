package openai

// OpenAI Chat Completions wire types.

// Request is an OpenAI chat completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`

	// ToolChoice is either the string "auto"/"required" or a
	// {"type":"function","function":{"name":...}} object.
	ToolChoice any `json:"tool_choice,omitempty"`

	User string `json:"user,omitempty"`
}

// Message is one entry of the flat OpenAI message list.
type Message struct {
	Role string `json:"role"`

	// Content is a string for plain messages or a []ContentPart for
	// multimodal user messages. Nil is omitted.
	Content any `json:"content,omitempty"`

	// ToolCallID links a role=tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ContentPart is one element of a multimodal content list.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference, usually a data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCall is a function invocation emitted by the model. In streaming
// deltas the fields arrive fragmented across chunks, keyed by Index.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`

	// ExtraBody carries request-side vendor extensions, notably
	// google.thought_signature for Gemini reasoning continuity.
	ExtraBody map[string]any `json:"extra_body,omitempty"`

	// ExtraContent is where Google's OpenAI compatibility layer reports
	// vendor extensions on responses.
	ExtraContent map[string]any `json:"extra_content,omitempty"`
}

// FunctionCall is the name and JSON-string arguments of a tool call.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ThoughtSignature returns the Gemini thought signature reported on a
// response tool call (extra_content.google.thought_signature), or "".
func (tc *ToolCall) ThoughtSignature() string {
	google, ok := tc.ExtraContent["google"].(map[string]any)
	if !ok {
		return ""
	}
	sig, _ := google["thought_signature"].(string)
	return sig
}

// SetThoughtSignature attaches a thought signature to an outbound tool call
// under extra_body.google.thought_signature.
func (tc *ToolCall) SetThoughtSignature(sig string) {
	if tc.ExtraBody == nil {
		tc.ExtraBody = make(map[string]any, 1)
	}
	google, ok := tc.ExtraBody["google"].(map[string]any)
	if !ok {
		google = make(map[string]any, 1)
		tc.ExtraBody["google"] = google
	}
	google["thought_signature"] = sig
}

// Tool is a function definition offered to the model.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one callable function.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Response is a unary OpenAI chat completion response.
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion alternative. The proxy always requests one.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message inside a unary choice. Content is
// a pointer so an explicit empty string is distinguishable from absence.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ReasoningDetails is a legacy message-level location some gateways use
	// for thought signatures instead of per-call extra_content.
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
}

// ReasoningDetail is one entry of the legacy reasoning_details list.
type ReasoningDetail struct {
	Type      string `json:"type,omitempty"`
	ID        string `json:"id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Usage reports token consumption in OpenAI terms.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamResponse is one frame of the OpenAI SSE stream.
type StreamResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`

	// Usage appears on at most one late frame, typically after the
	// finish_reason frame.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamChoice is a choice inside a stream frame.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// StreamDelta is the incremental payload of a stream frame.
type StreamDelta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
