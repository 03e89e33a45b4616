package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tinkertasker/tinkertasker/agent"
	"github.com/tinkertasker/tinkertasker/llm"
)

// DefaultCallTimeout bounds a single tool invocation.
const DefaultCallTimeout = 5 * time.Second

// ToolClient is the subset of the MCP client surface the adapter needs.
// *client.Client from mcp-go satisfies it.
type ToolClient interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Adapter exposes the tools of one or more MCP clients through the
// agent.ToolAdapter contract. Tool names are routed to the client that
// listed them; on a name collision the first client wins.
type Adapter struct {
	clients     []ToolClient
	callTimeout time.Duration
	outputLimit int
	logger      *slog.Logger

	mu     sync.Mutex
	routes map[string]ToolClient
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCallTimeout sets the per-invocation timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.callTimeout = d }
}

// WithOutputLimit caps tool result content at maxChars characters, keeping
// the head and tail. Zero disables truncation.
func WithOutputLimit(maxChars int) Option {
	return func(a *Adapter) { a.outputLimit = maxChars }
}

// New creates an Adapter over the given MCP clients.
func New(clients []ToolClient, opts ...Option) *Adapter {
	a := &Adapter{
		clients:     clients,
		callTimeout: DefaultCallTimeout,
		routes:      make(map[string]ToolClient),
		logger:      slog.Default().With("component", "mcpbridge"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DescribeTools lists the tools of every client as completion-tool
// definitions and refreshes the name-to-client routing table. Listing
// failures are fatal: a turn cannot start without a tool inventory.
func (a *Adapter) DescribeTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	routes := make(map[string]ToolClient)
	var defs []llm.ToolDefinition
	for _, c := range a.clients {
		resp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		for _, tool := range resp.Tools {
			if _, taken := routes[tool.Name]; taken {
				a.logger.Warn("duplicate tool name, keeping first", "tool", tool.Name)
				continue
			}
			routes[tool.Name] = c
			defs = append(defs, toolDefinition(tool))
		}
	}
	a.routes = routes
	return defs, nil
}

// toolDefinition converts an MCP tool into a completion-tool definition.
// The input schema is closed (additionalProperties false) and marked
// strict so providers that enforce schemas reject malformed arguments. A
// schema that cannot be converted degrades to an open empty object.
func toolDefinition(tool mcp.Tool) llm.ToolDefinition {
	params := schemaToMap(tool.InputSchema)
	params["additionalProperties"] = false
	return llm.ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  params,
		Strict:      true,
	}
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]interface{}{"type": "object"}
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}

// Invoke dispatches one tool call. It never returns an error: argument
// parse failures, unknown tools, transport errors, timeouts, and tool-side
// errors all come back as an error result the model can read and correct.
func (a *Adapter) Invoke(ctx context.Context, call llm.ToolCall) agent.ToolResult {
	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return a.errorResult(call, fmt.Sprintf("invalid arguments: %v", err))
	}

	a.mu.Lock()
	c, ok := a.routes[call.Name]
	a.mu.Unlock()
	if !ok {
		return a.errorResult(call, "unknown tool")
	}

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Name
	req.Params.Arguments = args

	start := time.Now()
	resp, err := c.CallTool(callCtx, req)
	if err != nil {
		return a.errorResult(call, err.Error())
	}
	a.logger.Debug("tool call completed", "tool", call.Name, "duration", time.Since(start))

	content := flattenContent(resp.Content)
	if resp.IsError {
		return a.errorResult(call, content)
	}
	if a.outputLimit > 0 {
		content = Truncate(content, a.outputLimit)
	}
	return agent.ToolResult{ToolCallID: call.ID, Name: call.Name, Content: content}
}

func (a *Adapter) errorResult(call llm.ToolCall, cause string) agent.ToolResult {
	return agent.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    fmt.Sprintf("Error executing tool call '%s': %s. Try again with different arguments.", call.Name, cause),
		IsError:    true,
	}
}

// decodeArguments parses the raw argument payload into the mapping the
// MCP transport expects. An empty payload means no arguments.
func decodeArguments(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// flattenContent reduces a tool result's content to a single string. Only
// the first content block is considered; non-text blocks produce a
// descriptive fallback instead of being dropped silently.
func flattenContent(content []mcp.Content) string {
	if len(content) == 0 {
		return "Tool executed but returned no result."
	}
	switch c := content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		return fmt.Sprintf("Tool returned %T which is not supported. Tell the user their MCP server is not supported yet.", content[0])
	}
}
