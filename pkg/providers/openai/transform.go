package openai

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// TransformRequest converts an Anthropic Messages request into OpenAI chat
// completion shape. req.Model must already be resolved to the upstream model
// name; max_tokens is clamped to the descriptor's cap.
//
// Tool results need special care: Anthropic sends them as blocks inside a
// user message, OpenAI wants one role=tool message per result. The tool
// messages are emitted in the same positional slot as the user message that
// carried them, which keeps them adjacent to the assistant tool_calls they
// answer.
func TransformRequest(req *providers.MessagesRequest, desc *providers.Descriptor) *Request {
	out := &Request{
		Model:       req.Model,
		MaxTokens:   desc.CapMaxTokens(req.MaxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Stop:        req.StopSequences,
	}
	if req.Metadata != nil {
		out.User = req.Metadata.UserID
	}

	if sys := systemText(req.System); strings.TrimSpace(sys) != "" {
		out.Messages = append(out.Messages, Message{
			Role:    "system",
			Content: strings.TrimSpace(sys),
		})
	}

	for i := range req.Messages {
		msg := &req.Messages[i]
		switch msg.Role {
		case providers.RoleUser:
			out.Messages = append(out.Messages, convertUserMessage(msg)...)
		case providers.RoleAssistant:
			out.Messages = append(out.Messages, convertAssistantMessage(msg, req.Signatures))
		}
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	out.ToolChoice = convertToolChoice(req.ToolChoice)

	return out
}

// systemText flattens the system prompt to plain text. Block lists join
// their text parts with blank lines.
func systemText(system *providers.Content) string {
	if system == nil {
		return ""
	}
	if system.Plain {
		return system.Text
	}

	var parts []string
	for _, block := range system.Blocks {
		if block.Type == providers.ContentText {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// convertUserMessage converts one Anthropic user message. Tool results come
// first as role=tool messages; remaining text and image blocks follow as a
// single user message when present.
func convertUserMessage(msg *providers.Message) []Message {
	if msg.Content.Plain {
		return []Message{{Role: "user", Content: msg.Content.Text}}
	}

	var out []Message
	var parts []ContentPart

	for _, block := range msg.Content.Blocks {
		switch block.Type {
		case providers.ContentToolResult:
			out = append(out, Message{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    toolResultText(block.Content),
			})

		case providers.ContentText:
			parts = append(parts, ContentPart{Type: "text", Text: block.Text})

		case providers.ContentImage:
			if part, ok := convertImageBlock(block.Source); ok {
				parts = append(parts, part)
			}
		}
	}

	switch {
	case len(parts) == 1 && parts[0].Type == "text":
		out = append(out, Message{Role: "user", Content: parts[0].Text})
	case len(parts) > 0:
		out = append(out, Message{Role: "user", Content: parts})
	case len(out) == 0:
		// Nothing usable in the block list; keep the turn so alternation
		// survives.
		out = append(out, Message{Role: "user", Content: ""})
	}

	return out
}

// convertImageBlock maps an Anthropic image source to an OpenAI image part.
// Base64 sources become data URIs; url sources pass through.
func convertImageBlock(src *providers.ImageSource) (ContentPart, bool) {
	if src == nil {
		return ContentPart{}, false
	}
	switch src.Type {
	case "base64":
		if src.MediaType == "" || src.Data == "" {
			return ContentPart{}, false
		}
		return ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)},
		}, true
	case "url":
		if src.URL == "" {
			return ContentPart{}, false
		}
		return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: src.URL}}, true
	}
	return ContentPart{}, false
}

// convertAssistantMessage folds text blocks into content and tool_use blocks
// into tool_calls with JSON-stringified arguments. Cached thought signatures
// are attached to their tool calls under extra_body.
func convertAssistantMessage(msg *providers.Message, signatures map[string]string) Message {
	if msg.Content.Plain {
		return Message{Role: "assistant", Content: msg.Content.Text}
	}

	var text strings.Builder
	var toolCalls []ToolCall

	for _, block := range msg.Content.Blocks {
		switch block.Type {
		case providers.ContentText:
			text.WriteString(block.Text)

		case providers.ContentToolUse:
			args := "{}"
			if block.Input != nil {
				if encoded, err := json.Marshal(block.Input); err == nil {
					args = string(encoded)
				}
			}
			tc := ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			}
			if sig := signatures[block.ID]; sig != "" {
				tc.SetThoughtSignature(sig)
			}
			toolCalls = append(toolCalls, tc)
		}
	}

	return Message{
		Role:      "assistant",
		Content:   text.String(),
		ToolCalls: toolCalls,
	}
}

// toolResultText normalizes a tool_result payload to the string OpenAI
// expects on role=tool messages.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "No content provided"
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}

	switch v := decoded.(type) {
	case nil:
		return "No content provided"
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			switch it := item.(type) {
			case string:
				parts = append(parts, it)
			case map[string]any:
				if text, ok := it["text"].(string); ok {
					parts = append(parts, text)
					continue
				}
				if encoded, err := json.Marshal(it); err == nil {
					parts = append(parts, string(encoded))
				}
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	case map[string]any:
		if text, ok := v["text"].(string); ok && v["type"] == "text" {
			return text
		}
		return string(raw)
	default:
		return string(raw)
	}
}

// convertToolChoice maps Anthropic tool_choice to OpenAI shape.
func convertToolChoice(tc *providers.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Type {
	case providers.ToolChoiceAny:
		return "required"
	case providers.ToolChoiceTool:
		if tc.Name != "" {
			return map[string]any{
				"type":     "function",
				"function": map[string]any{"name": tc.Name},
			}
		}
		return "auto"
	default:
		return "auto"
	}
}

// TransformResponse converts a unary OpenAI response into Anthropic Messages
// shape. clientModel is echoed back as the response model, matching what the
// client asked for rather than the upstream's resolved name.
func TransformResponse(resp *Response, clientModel string) (*providers.MessagesResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	var blocks []providers.ContentBlock
	var signatures map[string]string

	if choice.Message.Content != nil {
		blocks = append(blocks, providers.TextBlock(*choice.Message.Content))
	}

	legacy := legacySignatures(choice.Message.ReasoningDetails)

	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "tool_" + newHexID(32)
		}
		blocks = append(blocks, providers.ToolUseBlock(id, tc.Function.Name, parseToolArguments(tc.Function.Name, tc.Function.Arguments)))

		sig := tc.ThoughtSignature()
		if sig == "" {
			sig = legacy[tc.ID]
			if sig == "" && len(choice.Message.ToolCalls) == 1 {
				sig = legacy[""]
			}
		}
		if sig != "" {
			if signatures == nil {
				signatures = make(map[string]string)
			}
			signatures[id] = sig
		}
	}

	if len(blocks) == 0 {
		blocks = append(blocks, providers.TextBlock(""))
	}

	msgID := resp.ID
	if msgID == "" {
		msgID = NewMessageID()
	}

	return &providers.MessagesResponse{
		ID:         msgID,
		Type:       "message",
		Role:       providers.RoleAssistant,
		Model:      clientModel,
		Content:    blocks,
		StopReason: providers.StopPtr(mapFinishReason(choice.FinishReason)),
		Usage: providers.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Signatures: signatures,
	}, nil
}

// legacySignatures indexes message-level reasoning_details signatures by the
// tool call id they name. Unattributed signatures land under the empty key
// and apply only when the message has a single tool call.
func legacySignatures(details []ReasoningDetail) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for _, d := range details {
		if d.Signature == "" {
			continue
		}
		if _, taken := out[d.ID]; !taken {
			out[d.ID] = d.Signature
		}
	}
	return out
}

// parseToolArguments decodes a tool call's JSON-string arguments. Malformed
// arguments degrade to an empty input with a warning rather than failing the
// response.
func parseToolArguments(name, args string) map[string]any {
	if args == "" {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		slog.Warn("malformed tool call arguments, using empty input",
			"tool", name,
			"error", err,
		)
		return map[string]any{}
	}
	if input == nil {
		return map[string]any{}
	}
	return input
}

// mapFinishReason maps OpenAI finish reasons to Anthropic stop reasons.
// Unknown or absent reasons read as a normal turn end.
func mapFinishReason(reason string) string {
	switch reason {
	case "length":
		return providers.StopMaxTokens
	case "tool_calls", "function_call":
		return providers.StopToolUse
	case "content_filter":
		return providers.StopStopSequence
	default:
		return providers.StopEndTurn
	}
}

// NewMessageID synthesizes a message id in Anthropic's msg_ convention.
func NewMessageID() string {
	return "msg_" + newHexID(24)
}

func newHexID(n int) string {
	u := uuid.New()
	h := hex.EncodeToString(u[:])
	if n < len(h) {
		return h[:n]
	}
	return h
}
