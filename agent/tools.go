package agent

import (
	"context"

	"github.com/tinkertasker/tinkertasker/llm"
)

// ToolResult is the outcome of one tool invocation. Every dispatched
// invocation produces exactly one result; failures are folded into Content
// rather than raised.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ToolAdapter is the boundary to the external tool transport.
type ToolAdapter interface {
	// DescribeTools lists the available tools as completion-tool
	// definitions. Called once at the start of each turn.
	DescribeTools(ctx context.Context) ([]llm.ToolDefinition, error)

	// Invoke dispatches one tool call and returns its result. It must not
	// return an error: transport failures, timeouts, and tool-side
	// exceptions are converted into an error-describing ToolResult so the
	// model can self-correct.
	Invoke(ctx context.Context, call llm.ToolCall) ToolResult
}
