package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinkertasker/tinkertasker/llm"
)

// Role discriminates between message kinds.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the conversation history. Once appended it
// is never modified.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`

	// Assistant messages only.
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`

	// Tool messages only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
	}
}

// NewSystemMessage creates a system Message.
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

// NewUserMessage creates a user Message.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant Message with its requested tool
// invocations, in the order the model produced them.
func NewAssistantMessage(content string, toolCalls []llm.ToolCall) Message {
	m := newMessage(RoleAssistant, content)
	m.ToolCalls = toolCalls
	return m
}

// NewToolMessage creates a tool Message from a ToolResult.
func NewToolMessage(result ToolResult) Message {
	m := newMessage(RoleTool, result.Content)
	m.ToolCallID = result.ToolCallID
	m.ToolName = result.Name
	m.IsError = result.IsError
	return m
}

// History is the ordered, append-only conversation log for one agent.
// The first message is always the system message; the sequence only grows.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// NewHistory creates a History seeded with the system message.
func NewHistory(systemPrompt string) *History {
	return &History{
		messages: []Message{NewSystemMessage(systemPrompt)},
	}
}

// Append adds a message to the end of the history. Each append is atomic:
// a message is either fully present or not present at all.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// Len returns the number of messages in the history.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages returns a copy of the history.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Snapshot converts the history into the ordered message records submitted
// to the completion backend, preserving insertion order exactly. It is
// read-only and safe to call concurrently with other readers.
func (h *History) Snapshot() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]llm.Message, 0, len(h.messages))
	for _, msg := range h.messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, llm.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, llm.UserMessage(msg.Content))
		case RoleAssistant:
			m := llm.AssistantMessage(msg.Content)
			for _, tc := range msg.ToolCalls {
				m.Content = append(m.Content, llm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
			}
			out = append(out, m)
		case RoleTool:
			out = append(out, llm.ToolResultMessage(msg.ToolCallID, msg.Content, msg.IsError))
		}
	}
	return out
}
