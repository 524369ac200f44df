package providers

import (
	"encoding/json"
	"fmt"
)

// Message roles accepted on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block discriminators.
const (
	ContentText       = "text"
	ContentImage      = "image"
	ContentToolUse    = "tool_use"
	ContentToolResult = "tool_result"
)

// Stop reasons reported to clients.
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopToolUse      = "tool_use"
	StopStopSequence = "stop_sequence"
)

// Tool choice modes.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
)

// MessagesRequest is an Anthropic Messages API request as accepted on the
// proxy's client-facing surface. The same struct is handed to upstream
// clients; passthrough providers additionally receive the raw body so that
// fields the proxy does not model survive the round trip.
type MessagesRequest struct {
	// Model selects the target model. It may carry a "provider:" prefix
	// which the registry strips during resolution.
	Model string `json:"model"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// System is an optional system prompt, either a bare string or a list
	// of text blocks.
	System *Content `json:"system,omitempty"`

	// MaxTokens bounds the completion length. Required by the wire format.
	MaxTokens int `json:"max_tokens"`

	// Stream requests an SSE event stream instead of a blocking response.
	Stream bool `json:"stream,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Tools the model may call, in Anthropic shape (input_schema).
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice constrains tool selection.
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// Metadata carries opaque client metadata. UserID doubles as the
	// conversation scope for thought-signature retrieval.
	Metadata *Metadata `json:"metadata,omitempty"`

	// Signatures maps tool_use ids in the conversation history to cached
	// thought signatures. Middleware fills it; openai-wire translation
	// attaches each signature to the matching outbound tool call.
	Signatures map[string]string `json:"-"`

	// Raw is the undecoded request body when the request arrived over HTTP.
	// Passthrough clients forward it verbatim apart from the model field.
	Raw json.RawMessage `json:"-"`

	// Version is the anthropic-version header as received, forwarded by
	// passthrough clients. Empty means the client sent none.
	Version string `json:"-"`
}

// Message is one conversation turn.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is a message body, which arrives either as a bare string or as a
// list of typed blocks. Plain reports which wire shape was seen so that
// re-serialization preserves it.
type Content struct {
	Text   string
	Blocks []ContentBlock
	Plain  bool
}

// UnmarshalJSON accepts both wire shapes.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		c.Plain = true
		return json.Unmarshal(data, &c.Text)
	}
	c.Plain = false
	return json.Unmarshal(data, &c.Blocks)
}

// MarshalJSON re-emits the original wire shape.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Plain {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// AsBlocks returns the content normalized to block form. A plain string
// becomes a single text block; empty plain content yields no blocks.
func (c Content) AsBlocks() []ContentBlock {
	if !c.Plain {
		return c.Blocks
	}
	if c.Text == "" {
		return nil
	}
	return []ContentBlock{TextBlock(c.Text)}
}

// PlainContent wraps a bare string body.
func PlainContent(s string) Content {
	return Content{Text: s, Plain: true}
}

// BlockContent wraps a block-list body.
func BlockContent(blocks ...ContentBlock) Content {
	return Content{Blocks: blocks}
}

// ContentBlock is the tagged union of Anthropic content variants. Parsing is
// two-phase: the type discriminator first, then the per-variant fields.
type ContentBlock struct {
	Type string

	// text
	Text string

	// image
	Source *ImageSource

	// tool_use
	ID    string
	Name  string
	Input map[string]any

	// tool_result
	ToolUseID string
	Content   json.RawMessage
	IsError   bool
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: ContentToolUse, ID: id, Name: name, Input: input}
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case ContentText:
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: ContentText, Text: v.Text}

	case ContentImage:
		var v struct {
			Source *ImageSource `json:"source"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: ContentImage, Source: v.Source}

	case ContentToolUse:
		var v struct {
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: ContentToolUse, ID: v.ID, Name: v.Name, Input: v.Input}

	case ContentToolResult:
		var v struct {
			ToolUseID string          `json:"tool_use_id"`
			Content   json.RawMessage `json:"content"`
			IsError   bool            `json:"is_error"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = ContentBlock{Type: ContentToolResult, ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError}

	case "":
		return fmt.Errorf("content block missing type discriminator")

	default:
		// Unknown block types are preserved opaquely so passthrough
		// providers still receive them.
		*b = ContentBlock{Type: head.Type, Content: append(json.RawMessage(nil), data...)}
	}

	return nil
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case ContentText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{ContentText, b.Text})

	case ContentImage:
		return json.Marshal(struct {
			Type   string       `json:"type"`
			Source *ImageSource `json:"source"`
		}{ContentImage, b.Source})

	case ContentToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(struct {
			Type  string         `json:"type"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}{ContentToolUse, b.ID, b.Name, input})

	case ContentToolResult:
		type toolResult struct {
			Type      string          `json:"type"`
			ToolUseID string          `json:"tool_use_id"`
			Content   json.RawMessage `json:"content,omitempty"`
			IsError   bool            `json:"is_error,omitempty"`
		}
		return json.Marshal(toolResult{ContentToolResult, b.ToolUseID, b.Content, b.IsError})

	default:
		if len(b.Content) > 0 {
			return b.Content, nil
		}
		return json.Marshal(struct {
			Type string `json:"type"`
		}{b.Type})
	}
}

// ImageSource describes an image payload. Base64 sources carry the media
// type and data inline; URL sources reference the image remotely.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tool is an Anthropic-shape tool definition.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolChoice constrains which tool the model may call.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Metadata is opaque request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Usage reports token accounting in Anthropic terms.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessagesResponse is an Anthropic Messages API response. It doubles as the
// message object inside message_start stream events, where StopReason is
// still null.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model,omitempty"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`

	// Raw is the verbatim upstream body for passthrough responses. When set,
	// the proxy forwards it unchanged so unmodeled fields survive.
	Raw json.RawMessage `json:"-"`

	// Signatures maps tool call ids to thought signatures the upstream
	// reported on this response.
	Signatures map[string]string `json:"-"`
}

// StopReasonOrEmpty returns the stop reason, or "" when unset.
func (r *MessagesResponse) StopReasonOrEmpty() string {
	if r == nil || r.StopReason == nil {
		return ""
	}
	return *r.StopReason
}

// StopPtr is a convenience for building responses and terminal deltas.
func StopPtr(reason string) *string { return &reason }

// ToolUseIDs collects the ids of every tool_use block in an assistant
// message, preserving order.
func ToolUseIDs(blocks []ContentBlock) []string {
	var ids []string
	for _, b := range blocks {
		if b.Type == ContentToolUse && b.ID != "" {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Validate checks the request invariants the proxy enforces before any
// upstream work: a model, at least one message, and a positive max_tokens.
func (r *MessagesRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must not be empty"}
	}
	if r.MaxTokens <= 0 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must be a positive integer"}
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("unsupported role %q", m.Role),
			}
		}
	}
	return nil
}
