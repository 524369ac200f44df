package providers

import "strings"

// Stream event types, in the order a well-formed stream emits them.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta payload types.
const (
	DeltaText      = "text_delta"
	DeltaInputJSON = "input_json_delta"
)

// Delta is the polymorphic delta payload of content_block_delta and
// message_delta events. Text and PartialJSON are pointers because empty
// fragments are meaningful on the wire and must not be omitted.
type Delta struct {
	Type         string  `json:"type,omitempty"`
	Text         *string `json:"text,omitempty"`
	PartialJSON  *string `json:"partial_json,omitempty"`
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// ErrorDetail is the error payload of an SSE error event.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamEvent is one Anthropic stream event. The JSON-tagged fields form the
// SSE data payload; the untagged fields are proxy-internal bookkeeping.
type StreamEvent struct {
	Type         string            `json:"type"`
	Message      *MessagesResponse `json:"message,omitempty"`
	Index        *int              `json:"index,omitempty"`
	ContentBlock *ContentBlock     `json:"content_block,omitempty"`
	Delta        *Delta            `json:"delta,omitempty"`
	Usage        *Usage            `json:"usage,omitempty"`
	Error        *ErrorDetail      `json:"error,omitempty"`

	// Raw is the original upstream frame for passthrough streams. When set,
	// the writer forwards it verbatim instead of re-encoding the event.
	Raw []byte `json:"-"`

	// Signatures carries thought signatures observed on the upstream chunk
	// that produced this event, keyed by tool call id.
	Signatures map[string]string `json:"-"`

	// Err is a terminal stream failure. The writer converts it to an error
	// event; no further events follow.
	Err error `json:"-"`
}

// MessageStartEvent opens a stream with an empty assistant message shell.
func MessageStartEvent(id, model string) *StreamEvent {
	return &StreamEvent{
		Type: EventMessageStart,
		Message: &MessagesResponse{
			ID:      id,
			Type:    "message",
			Role:    RoleAssistant,
			Model:   model,
			Content: []ContentBlock{},
		},
	}
}

// PingEvent is a keepalive.
func PingEvent() *StreamEvent {
	return &StreamEvent{Type: EventPing}
}

// ContentBlockStartEvent opens block index with the given shell block.
func ContentBlockStartEvent(index int, block ContentBlock) *StreamEvent {
	return &StreamEvent{Type: EventContentBlockStart, Index: &index, ContentBlock: &block}
}

// TextDeltaEvent appends text to an open text block.
func TextDeltaEvent(index int, text string) *StreamEvent {
	return &StreamEvent{
		Type:  EventContentBlockDelta,
		Index: &index,
		Delta: &Delta{Type: DeltaText, Text: &text},
	}
}

// InputJSONDeltaEvent appends a tool-argument JSON fragment to an open
// tool_use block.
func InputJSONDeltaEvent(index int, partial string) *StreamEvent {
	return &StreamEvent{
		Type:  EventContentBlockDelta,
		Index: &index,
		Delta: &Delta{Type: DeltaInputJSON, PartialJSON: &partial},
	}
}

// ContentBlockStopEvent closes block index.
func ContentBlockStopEvent(index int) *StreamEvent {
	return &StreamEvent{Type: EventContentBlockStop, Index: &index}
}

// MessageDeltaEvent carries the stop reason and cumulative usage.
func MessageDeltaEvent(stopReason string, usage Usage) *StreamEvent {
	u := usage
	return &StreamEvent{
		Type:  EventMessageDelta,
		Delta: &Delta{StopReason: stopReason},
		Usage: &u,
	}
}

// MessageStopEvent terminates a successful stream.
func MessageStopEvent() *StreamEvent {
	return &StreamEvent{Type: EventMessageStop}
}

// ErrorEvent terminates a failed stream.
func ErrorEvent(kind, message string) *StreamEvent {
	return &StreamEvent{
		Type:  EventError,
		Error: &ErrorDetail{Type: kind, Message: message},
	}
}

// AccumulatedToolCall is one tool_use block reassembled from stream deltas.
type AccumulatedToolCall struct {
	ID        string
	Name      string
	Arguments strings.Builder
}

// StreamAccumulator folds a translated event stream back into whole-message
// state. The orchestrator feeds it every emitted event and hands the result
// to middleware stream-completion hooks, so middleware sees the same view for
// streamed and unary responses.
type StreamAccumulator struct {
	MessageID  string
	Model      string
	StopReason string
	Usage      Usage
	Cancelled  bool

	// Signatures maps tool call ids to thought signatures seen in deltas.
	Signatures map[string]string

	text  strings.Builder
	tools map[int]*AccumulatedToolCall
	order []int
}

// NewStreamAccumulator returns an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{
		Signatures: make(map[string]string),
		tools:      make(map[int]*AccumulatedToolCall),
	}
}

// Observe folds one event into the accumulator.
func (a *StreamAccumulator) Observe(ev *StreamEvent) {
	if ev == nil {
		return
	}
	for id, sig := range ev.Signatures {
		a.Signatures[id] = sig
	}

	switch ev.Type {
	case EventMessageStart:
		if ev.Message != nil {
			a.MessageID = ev.Message.ID
			a.Model = ev.Message.Model
		}

	case EventContentBlockStart:
		if ev.Index != nil && ev.ContentBlock != nil && ev.ContentBlock.Type == ContentToolUse {
			idx := *ev.Index
			a.tools[idx] = &AccumulatedToolCall{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
			a.order = append(a.order, idx)
		}

	case EventContentBlockDelta:
		if ev.Delta == nil {
			return
		}
		switch ev.Delta.Type {
		case DeltaText:
			if ev.Delta.Text != nil {
				a.text.WriteString(*ev.Delta.Text)
			}
		case DeltaInputJSON:
			if ev.Index != nil && ev.Delta.PartialJSON != nil {
				if tc, ok := a.tools[*ev.Index]; ok {
					tc.Arguments.WriteString(*ev.Delta.PartialJSON)
				}
			}
		}

	case EventMessageDelta:
		if ev.Delta != nil {
			a.StopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			a.Usage = *ev.Usage
		}
	}
}

// Text returns the concatenated text content observed so far.
func (a *StreamAccumulator) Text() string {
	return a.text.String()
}

// ToolCalls returns reassembled tool calls in emission order.
func (a *StreamAccumulator) ToolCalls() []*AccumulatedToolCall {
	out := make([]*AccumulatedToolCall, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, a.tools[idx])
	}
	return out
}

// ToolCallIDs returns the id set of accumulated tool calls, in order.
func (a *StreamAccumulator) ToolCallIDs() []string {
	ids := make([]string, 0, len(a.order))
	for _, idx := range a.order {
		if a.tools[idx].ID != "" {
			ids = append(ids, a.tools[idx].ID)
		}
	}
	return ids
}
