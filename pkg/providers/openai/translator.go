package openai

import (
	"log/slog"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
)

// Open-block kinds tracked by the translator.
const (
	blockNone = iota
	blockText
	blockTool
)

// streamTranslator converts an OpenAI delta stream into Anthropic stream
// events. It is a state machine over incoming frames: Idle until the first
// choice arrives, then alternating text and tool blocks, then closed.
//
// At most one content block is open at any time. Opening a new block closes
// the current one first, so block indices appear in non-decreasing order and
// every content_block_start precedes all deltas and the stop for its index.
type streamTranslator struct {
	model     string
	messageID string

	started  bool
	finished bool

	nextIndex int

	openKind  int
	openIndex int
	openTool  int

	// tools is keyed by the OpenAI tool_calls index. A tool block opens
	// only once both its id and function name have arrived; argument
	// fragments seen before that are held back and flushed at open.
	tools map[int]*toolBlockState

	finishReason string
	usage        providers.Usage

	// signatures collects thought signatures seen on tool call deltas,
	// keyed by tool call id. They ride out on the terminal event.
	signatures map[string]string
}

type toolBlockState struct {
	index   int
	id      string
	name    string
	started bool
	closed  bool
	pending []string
}

func newStreamTranslator(model string) *streamTranslator {
	return &streamTranslator{
		model:     model,
		messageID: NewMessageID(),
		tools:     make(map[int]*toolBlockState),
	}
}

// Ingest folds one upstream frame into the machine and returns the Anthropic
// events it produces, possibly none. Frames after Finish are ignored.
func (t *streamTranslator) Ingest(chunk *StreamResponse) []*providers.StreamEvent {
	if t.finished || chunk == nil {
		return nil
	}

	// Usage may arrive on any frame, typically a trailing one with no
	// choices.
	if chunk.Usage != nil {
		t.usage = providers.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	var events []*providers.StreamEvent
	if !t.started {
		t.started = true
		events = append(events,
			providers.MessageStartEvent(t.messageID, t.model),
			providers.PingEvent(),
		)
	}

	if choice.Delta.Content != "" {
		events = append(events, t.textEvents(choice.Delta.Content)...)
	}

	for i := range choice.Delta.ToolCalls {
		events = append(events, t.toolEvents(&choice.Delta.ToolCalls[i])...)
	}

	if choice.FinishReason != "" {
		t.finishReason = choice.FinishReason
	}

	return events
}

// textEvents routes a text fragment, opening a text block if none is open.
func (t *streamTranslator) textEvents(text string) []*providers.StreamEvent {
	var events []*providers.StreamEvent

	if t.openKind != blockText {
		events = append(events, t.closeOpenBlock()...)
		idx := t.nextIndex
		t.nextIndex++
		t.openKind = blockText
		t.openIndex = idx
		events = append(events, providers.ContentBlockStartEvent(idx, providers.ContentBlock{
			Type: providers.ContentText,
			Text: "",
		}))
	}

	return append(events, providers.TextDeltaEvent(t.openIndex, text))
}

// toolEvents routes one tool_calls delta entry. A missing index reads as 0.
func (t *streamTranslator) toolEvents(tc *ToolCall) []*providers.StreamEvent {
	k := 0
	if tc.Index != nil {
		k = *tc.Index
	}

	ts := t.tools[k]
	if ts == nil {
		ts = &toolBlockState{}
		t.tools[k] = ts
	}
	if tc.ID != "" {
		ts.id = tc.ID
	}
	if tc.Function.Name != "" {
		ts.name = tc.Function.Name
	}

	var events []*providers.StreamEvent

	if !ts.started && ts.id != "" && ts.name != "" {
		events = append(events, t.closeOpenBlock()...)
		ts.index = t.nextIndex
		t.nextIndex++
		ts.started = true
		t.openKind = blockTool
		t.openIndex = ts.index
		t.openTool = k

		events = append(events, providers.ContentBlockStartEvent(ts.index, providers.ContentBlock{
			Type:  providers.ContentToolUse,
			ID:    ts.id,
			Name:  ts.name,
			Input: map[string]any{},
		}))
		for _, frag := range ts.pending {
			events = append(events, providers.InputJSONDeltaEvent(ts.index, frag))
		}
		ts.pending = nil
	}

	if frag := tc.Function.Arguments; frag != "" {
		switch {
		case ts.started && !ts.closed:
			events = append(events, providers.InputJSONDeltaEvent(ts.index, frag))
		case !ts.started:
			ts.pending = append(ts.pending, frag)
		default:
			slog.Debug("dropping argument fragment for closed tool block",
				"tool_index", k,
				"tool_id", ts.id,
			)
		}
	}

	if sig := tc.ThoughtSignature(); sig != "" && ts.id != "" {
		if t.signatures == nil {
			t.signatures = make(map[string]string)
		}
		t.signatures[ts.id] = sig
	}

	return events
}

// closeOpenBlock emits the stop for the currently open block, if any.
func (t *streamTranslator) closeOpenBlock() []*providers.StreamEvent {
	switch t.openKind {
	case blockText:
		t.openKind = blockNone
		return []*providers.StreamEvent{providers.ContentBlockStopEvent(t.openIndex)}
	case blockTool:
		if ts := t.tools[t.openTool]; ts != nil {
			ts.closed = true
		}
		t.openKind = blockNone
		return []*providers.StreamEvent{providers.ContentBlockStopEvent(t.openIndex)}
	}
	return nil
}

// Finish closes any open block and emits the terminal message_delta and
// message_stop pair. It is idempotent; only the first call emits events.
// Streams that produced no frames still get a complete, empty envelope.
func (t *streamTranslator) Finish() []*providers.StreamEvent {
	if t.finished {
		return nil
	}
	t.finished = true

	var events []*providers.StreamEvent
	if !t.started {
		t.started = true
		events = append(events,
			providers.MessageStartEvent(t.messageID, t.model),
			providers.PingEvent(),
		)
	}

	events = append(events, t.closeOpenBlock()...)
	events = append(events, providers.MessageDeltaEvent(mapFinishReason(t.finishReason), t.usage))

	stop := providers.MessageStopEvent()
	if len(t.signatures) > 0 {
		stop.Signatures = t.signatures
	}
	return append(events, stop)
}
