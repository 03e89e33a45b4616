// Package mcpbridge adapts MCP servers to the agent's tool boundary. It
// lists tools across one or more MCP clients as completion-tool
// definitions and dispatches tool calls, folding every failure mode into
// a model-visible error result so a bad call never aborts a turn.
package mcpbridge
