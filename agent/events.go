package agent

import (
	"encoding/json"
	"time"

	"github.com/tinkertasker/tinkertasker/llm"
)

// EventKind identifies the variant of a TurnEvent.
type EventKind string

const (
	EventAssistant EventKind = "assistant"
	EventTool      EventKind = "tool"
)

// ToolCallSummary is the presentation view of one requested tool
// invocation. Args is the decoded argument mapping; when the argument
// payload is not valid JSON, Args is nil and RawArgs carries the payload
// verbatim so the failure is visible to consumers (the dispatch for that
// call then produces an error ToolEvent).
type ToolCallSummary struct {
	Name    string                 `json:"name"`
	ID      string                 `json:"id"`
	Args    map[string]interface{} `json:"args"`
	RawArgs string                 `json:"raw_args,omitempty"`
}

// AssistantEvent is emitted once per completion response.
type AssistantEvent struct {
	Text      string            `json:"text"`
	ToolCalls []ToolCallSummary `json:"tool_calls"`
}

// ToolEvent is emitted once per tool invocation, as soon as its result is
// available.
type ToolEvent struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Content string `json:"content"`
}

// TurnEvent is the closed union of events produced during a turn. Exactly
// one of Assistant and Tool is set, matching Kind.
type TurnEvent struct {
	Kind      EventKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Assistant *AssistantEvent `json:"assistant,omitempty"`
	Tool      *ToolEvent      `json:"tool,omitempty"`
}

// projectAssistantEvent maps an assistant response to its presentation
// event. Pure: no I/O, no mutation of inputs.
func projectAssistantEvent(text string, calls []llm.ToolCall) TurnEvent {
	summaries := make([]ToolCallSummary, 0, len(calls))
	for _, call := range calls {
		summary := ToolCallSummary{Name: call.Name, ID: call.ID}
		var args map[string]interface{}
		if err := json.Unmarshal(call.Arguments, &args); err == nil {
			summary.Args = args
		} else {
			summary.RawArgs = string(call.Arguments)
		}
		summaries = append(summaries, summary)
	}
	return TurnEvent{
		Kind:      EventAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantEvent{Text: text, ToolCalls: summaries},
	}
}

// projectToolEvent maps a tool result to its presentation event. Pure.
func projectToolEvent(result ToolResult) TurnEvent {
	return TurnEvent{
		Kind:      EventTool,
		Timestamp: time.Now(),
		Tool:      &ToolEvent{Name: result.Name, ID: result.ToolCallID, Content: result.Content},
	}
}
