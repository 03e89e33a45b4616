package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageTextContent(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("Hello "),
			ToolCallPart("c1", "view", json.RawMessage(`{}`)),
			TextPart("world"),
		},
	}
	if got := msg.TextContent(); got != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", got)
	}
}

func TestResponseToolCallsOrder(t *testing.T) {
	resp := Response{
		Message: Message{
			Role: RoleAssistant,
			Content: []ContentPart{
				ToolCallPart("c1", "view", json.RawMessage(`{"path":"."}`)),
				TextPart("thinking about it"),
				ToolCallPart("c2", "fetch", json.RawMessage(`{"url":"http://x"}`)),
			},
		},
	}

	calls := resp.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].ID != "c1" || calls[0].Name != "view" {
		t.Errorf("first call wrong: %+v", calls[0])
	}
	if calls[1].ID != "c2" || calls[1].Name != "fetch" {
		t.Errorf("second call wrong: %+v", calls[1])
	}
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage("c1", "a.txt\nb.txt", false)
	if msg.Role != RoleTool {
		t.Errorf("expected tool role, got %q", msg.Role)
	}
	if msg.ToolCallID != "c1" {
		t.Errorf("expected tool call id c1, got %q", msg.ToolCallID)
	}
	if len(msg.Content) != 1 || msg.Content[0].Kind != ContentToolResult {
		t.Fatalf("expected one tool result part, got %+v", msg.Content)
	}

	var content string
	if err := json.Unmarshal(msg.Content[0].ToolResult.Content, &content); err != nil {
		t.Fatalf("content not JSON string: %v", err)
	}
	if content != "a.txt\nb.txt" {
		t.Errorf("content round-trip failed: %q", content)
	}
}

func TestResponseReasoning(t *testing.T) {
	resp := Response{
		Message: Message{
			Role: RoleAssistant,
			Content: []ContentPart{
				ThinkingPart("step one. "),
				ThinkingPart("step two."),
				TextPart("answer"),
			},
		},
	}
	if got := resp.Reasoning(); got != "step one. step two." {
		t.Errorf("unexpected reasoning: %q", got)
	}
	if got := resp.Text(); got != "answer" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestUsageAdd(t *testing.T) {
	a := Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	b := Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}
	sum := a.Add(b)
	if sum.InputTokens != 11 || sum.OutputTokens != 7 || sum.TotalTokens != 18 {
		t.Errorf("unexpected sum: %+v", sum)
	}
}
