package agent

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/tinkertasker/tinkertasker/llm"
)

func TestNewHistorySeedsSystemMessage(t *testing.T) {
	h := NewHistory("you are helpful")
	if h.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", h.Len())
	}
	msgs := h.Messages()
	if msgs[0].Role != RoleSystem || msgs[0].Content != "you are helpful" {
		t.Errorf("unexpected seed message: %+v", msgs[0])
	}
}

func TestHistorySnapshotRoles(t *testing.T) {
	h := NewHistory("sys")
	h.Append(NewUserMessage("hi"))
	h.Append(NewAssistantMessage("calling", []llm.ToolCall{
		{ID: "c1", Name: "view", Arguments: json.RawMessage(`{}`)},
	}))
	h.Append(NewToolMessage(ToolResult{ToolCallID: "c1", Name: "view", Content: "out"}))

	snap := h.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(snap))
	}

	wantRoles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool}
	for i, want := range wantRoles {
		if snap[i].Role != want {
			t.Errorf("snapshot[%d]: role = %s, want %s", i, snap[i].Role, want)
		}
	}

	calls := (llm.Response{Message: snap[2]}).ToolCalls()
	if len(calls) != 1 || calls[0].ID != "c1" {
		t.Errorf("assistant snapshot lost tool calls: %+v", calls)
	}
	if snap[3].ToolCallID != "c1" {
		t.Errorf("tool snapshot lost call id: %q", snap[3].ToolCallID)
	}
}

func TestHistoryConcurrentReaders(t *testing.T) {
	h := NewHistory("sys")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Append(NewUserMessage("msg"))
		}()
		go func() {
			defer wg.Done()
			_ = h.Snapshot()
		}()
	}
	wg.Wait()
	if h.Len() != 9 {
		t.Errorf("expected 9 messages, got %d", h.Len())
	}
}

func TestMessageIdentity(t *testing.T) {
	a := NewUserMessage("same")
	b := NewUserMessage("same")
	if a.ID == b.ID {
		t.Error("messages must get unique IDs")
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp must be set")
	}
}
