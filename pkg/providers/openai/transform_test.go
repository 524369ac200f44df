package openai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

func testDescriptor() *providers.Descriptor {
	desc := &providers.Descriptor{
		Name:      "test",
		APIFormat: providers.FormatOpenAI,
		BaseURL:   "http://localhost/v1",
		Auth:      providers.Auth{Keys: []string{"k"}},
	}
	desc.ApplyDefaults()
	return desc
}

func TestTransformRequest_SystemPrompt(t *testing.T) {
	tests := []struct {
		name   string
		system *providers.Content
		want   string
	}{
		{
			name:   "plain string",
			system: &providers.Content{Plain: true, Text: "  Be terse.  "},
			want:   "Be terse.",
		},
		{
			name: "block list joins with blank lines",
			system: &providers.Content{Blocks: []providers.ContentBlock{
				providers.TextBlock("First."),
				providers.TextBlock("Second."),
			}},
			want: "First.\n\nSecond.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &providers.MessagesRequest{
				Model:     "gpt-4o",
				MaxTokens: 100,
				System:    tt.system,
				Messages: []providers.Message{
					{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
				},
			}

			out := TransformRequest(req, testDescriptor())
			if len(out.Messages) != 2 {
				t.Fatalf("expected system + user messages, got %d", len(out.Messages))
			}
			if out.Messages[0].Role != "system" {
				t.Errorf("expected leading system message, got role %s", out.Messages[0].Role)
			}
			if out.Messages[0].Content != tt.want {
				t.Errorf("expected system content %q, got %q", tt.want, out.Messages[0].Content)
			}
		})
	}
}

func TestTransformRequest_BlankSystemSkipped(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		System:    &providers.Content{Plain: true, Text: "   "},
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
		},
	}

	out := TransformRequest(req, testDescriptor())
	if len(out.Messages) != 1 || out.Messages[0].Role != "user" {
		t.Errorf("blank system prompt should be dropped, got %+v", out.Messages)
	}
}

func TestTransformRequest_ToolResult(t *testing.T) {
	listContent := json.RawMessage(`[{"type":"text","text":"72F"},{"type":"text","text":"sunny"}]`)

	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.BlockContent(providers.ContentBlock{
				Type:      providers.ContentToolResult,
				ToolUseID: "call_1",
				Content:   listContent,
			})},
		},
	}

	out := TransformRequest(req, testDescriptor())
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out.Messages))
	}

	msg := out.Messages[0]
	if msg.Role != "tool" {
		t.Errorf("expected role tool, got %s", msg.Role)
	}
	if msg.ToolCallID != "call_1" {
		t.Errorf("expected tool_call_id call_1, got %s", msg.ToolCallID)
	}
	if msg.Content != "72F\nsunny" {
		t.Errorf("expected joined text parts, got %q", msg.Content)
	}
}

func TestTransformRequest_EmptyToolResult(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.BlockContent(providers.ContentBlock{
				Type:      providers.ContentToolResult,
				ToolUseID: "call_1",
			})},
		},
	}

	out := TransformRequest(req, testDescriptor())
	if out.Messages[0].Content != "No content provided" {
		t.Errorf("expected placeholder for empty tool result, got %q", out.Messages[0].Content)
	}
}

func TestTransformRequest_ImageBlock(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.BlockContent(
				providers.TextBlock("What is this?"),
				providers.ContentBlock{
					Type: providers.ContentImage,
					Source: &providers.ImageSource{
						Type:      "base64",
						MediaType: "image/png",
						Data:      "aWJtZ2RhdGE=",
					},
				},
			)},
		},
	}

	out := TransformRequest(req, testDescriptor())
	parts, ok := out.Messages[0].Content.([]ContentPart)
	if !ok {
		t.Fatalf("expected multi-part content, got %T", out.Messages[0].Content)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL == nil {
		t.Fatalf("expected image_url part, got %+v", parts[1])
	}
	if parts[1].ImageURL.URL != "data:image/png;base64,aWJtZ2RhdGE=" {
		t.Errorf("unexpected data URI: %s", parts[1].ImageURL.URL)
	}
}

func TestTransformRequest_SingleTextPartCollapses(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.BlockContent(providers.TextBlock("just text"))},
		},
	}

	out := TransformRequest(req, testDescriptor())
	content, ok := out.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("expected single text part to collapse to a string, got %T", out.Messages[0].Content)
	}
	if content != "just text" {
		t.Errorf("expected %q, got %q", "just text", content)
	}
}

func TestTransformRequest_AssistantToolUse(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.PlainContent("weather?")},
			{Role: providers.RoleAssistant, Content: providers.BlockContent(
				providers.TextBlock("Checking."),
				providers.ToolUseBlock("call_1", "get_weather", map[string]any{"city": "Paris"}),
			)},
		},
	}

	out := TransformRequest(req, testDescriptor())
	assistant := out.Messages[1]
	if assistant.Content != "Checking." {
		t.Errorf("expected assistant text content, got %v", assistant.Content)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(assistant.ToolCalls))
	}

	call := assistant.ToolCalls[0]
	if call.ID != "call_1" || call.Type != "function" || call.Function.Name != "get_weather" {
		t.Errorf("unexpected tool call: %+v", call)
	}
	if call.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("expected stringified arguments, got %q", call.Function.Arguments)
	}
}

func TestTransformRequest_ToolChoice(t *testing.T) {
	tests := []struct {
		name   string
		choice *providers.ToolChoice
		want   any
	}{
		{"nil stays unset", nil, nil},
		{"auto", &providers.ToolChoice{Type: providers.ToolChoiceAuto}, "auto"},
		{"any becomes required", &providers.ToolChoice{Type: providers.ToolChoiceAny}, "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &providers.MessagesRequest{
				Model:      "gpt-4o",
				MaxTokens:  100,
				ToolChoice: tt.choice,
				Messages: []providers.Message{
					{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
				},
			}
			out := TransformRequest(req, testDescriptor())
			if out.ToolChoice != tt.want {
				t.Errorf("expected tool_choice %v, got %v", tt.want, out.ToolChoice)
			}
		})
	}

	t.Run("specific tool", func(t *testing.T) {
		req := &providers.MessagesRequest{
			Model:      "gpt-4o",
			MaxTokens:  100,
			ToolChoice: &providers.ToolChoice{Type: providers.ToolChoiceTool, Name: "get_weather"},
			Messages: []providers.Message{
				{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
			},
		}
		out := TransformRequest(req, testDescriptor())
		choice, ok := out.ToolChoice.(map[string]any)
		if !ok {
			t.Fatalf("expected object tool_choice, got %T", out.ToolChoice)
		}
		fn, _ := choice["function"].(map[string]any)
		if choice["type"] != "function" || fn["name"] != "get_weather" {
			t.Errorf("unexpected tool_choice: %v", choice)
		}
	})
}

func TestTransformRequest_MaxTokensCap(t *testing.T) {
	desc := testDescriptor()
	desc.MaxTokensCap = 4096

	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100000,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
		},
	}

	out := TransformRequest(req, desc)
	if out.MaxTokens != 4096 {
		t.Errorf("expected max_tokens clamped to 4096, got %d", out.MaxTokens)
	}

	req.MaxTokens = 256
	out = TransformRequest(req, desc)
	if out.MaxTokens != 256 {
		t.Errorf("values under the cap must pass through, got %d", out.MaxTokens)
	}
}

func TestTransformRequest_Metadata(t *testing.T) {
	req := &providers.MessagesRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Metadata:  &providers.Metadata{UserID: "user-abc"},
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: providers.PlainContent("hi")},
		},
	}

	out := TransformRequest(req, testDescriptor())
	if out.User != "user-abc" {
		t.Errorf("expected metadata user_id to map to user, got %q", out.User)
	}
}

func TestTransformResponse_Text(t *testing.T) {
	content := "Hello, world!"
	resp := &Response{
		ID:    "chatcmpl-123",
		Model: "gpt-4o-2024-08-06",
		Choices: []Choice{
			{Message: ResponseMessage{Role: "assistant", Content: &content}, FinishReason: "stop"},
		},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}

	out, err := TransformResponse(resp, "openrouter:gpt-4o")
	if err != nil {
		t.Fatalf("TransformResponse failed: %v", err)
	}

	if out.ID != "chatcmpl-123" {
		t.Errorf("expected upstream id to carry over, got %s", out.ID)
	}
	if out.Model != "openrouter:gpt-4o" {
		t.Errorf("expected client model echoed, got %s", out.Model)
	}
	if len(out.Content) != 1 || out.Content[0].Type != providers.ContentText || out.Content[0].Text != content {
		t.Errorf("unexpected content: %+v", out.Content)
	}
	if out.StopReasonOrEmpty() != providers.StopEndTurn {
		t.Errorf("expected end_turn, got %s", out.StopReasonOrEmpty())
	}
	if out.Usage.InputTokens != 10 || out.Usage.OutputTokens != 20 {
		t.Errorf("unexpected usage: %+v", out.Usage)
	}
}

func TestTransformResponse_ToolCall(t *testing.T) {
	resp := &Response{
		ID: "chatcmpl-123",
		Choices: []Choice{
			{
				Message: ResponseMessage{
					Role: "assistant",
					ToolCalls: []ToolCall{
						{ID: "call_1", Type: "function", Function: FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out, err := TransformResponse(resp, "gpt-4o")
	if err != nil {
		t.Fatalf("TransformResponse failed: %v", err)
	}

	if len(out.Content) != 1 {
		t.Fatalf("expected 1 block, got %d", len(out.Content))
	}
	block := out.Content[0]
	if block.Type != providers.ContentToolUse || block.ID != "call_1" || block.Name != "get_weather" {
		t.Errorf("unexpected tool_use block: %+v", block)
	}
	if block.Input["city"] != "Paris" {
		t.Errorf("expected parsed input, got %v", block.Input)
	}
	if out.StopReasonOrEmpty() != providers.StopToolUse {
		t.Errorf("expected tool_use, got %s", out.StopReasonOrEmpty())
	}
}

func TestTransformResponse_MalformedToolArguments(t *testing.T) {
	resp := &Response{
		Choices: []Choice{
			{
				Message: ResponseMessage{
					ToolCalls: []ToolCall{
						{ID: "call_1", Type: "function", Function: FunctionCall{Name: "fn", Arguments: `{"broken":`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out, err := TransformResponse(resp, "gpt-4o")
	if err != nil {
		t.Fatalf("malformed arguments must not fail the response: %v", err)
	}
	if len(out.Content[0].Input) != 0 {
		t.Errorf("expected empty input for malformed arguments, got %v", out.Content[0].Input)
	}
}

func TestTransformResponse_NoChoices(t *testing.T) {
	if _, err := TransformResponse(&Response{ID: "x"}, "gpt-4o"); err == nil {
		t.Fatal("expected error for response without choices")
	}
}

func TestTransformResponse_EmptyContentString(t *testing.T) {
	empty := ""
	resp := &Response{
		Choices: []Choice{
			{Message: ResponseMessage{Content: &empty}, FinishReason: "stop"},
		},
	}

	out, err := TransformResponse(resp, "gpt-4o")
	if err != nil {
		t.Fatalf("TransformResponse failed: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Type != providers.ContentText || out.Content[0].Text != "" {
		t.Errorf("empty string content should become an empty text block, got %+v", out.Content)
	}
}

func TestTransformResponse_MissingContent(t *testing.T) {
	resp := &Response{
		Choices: []Choice{
			{Message: ResponseMessage{}, FinishReason: "stop"},
		},
	}

	out, err := TransformResponse(resp, "gpt-4o")
	if err != nil {
		t.Fatalf("TransformResponse failed: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Type != providers.ContentText {
		t.Errorf("expected placeholder text block, got %+v", out.Content)
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"stop", providers.StopEndTurn},
		{"length", providers.StopMaxTokens},
		{"tool_calls", providers.StopToolUse},
		{"function_call", providers.StopToolUse},
		{"content_filter", providers.StopStopSequence},
		{"", providers.StopEndTurn},
		{"mystery", providers.StopEndTurn},
	}

	for _, tt := range tests {
		if got := mapFinishReason(tt.reason); got != tt.want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	if !strings.HasPrefix(id, "msg_") {
		t.Errorf("expected msg_ prefix, got %s", id)
	}
	if len(id) != len("msg_")+24 {
		t.Errorf("expected 24 hex chars after the prefix, got %d in %s", len(id)-len("msg_"), id)
	}
	if id == NewMessageID() {
		t.Error("expected unique ids")
	}
}
