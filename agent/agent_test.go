package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tinkertasker/tinkertasker/llm"
)

// scriptedClient returns canned responses in order.
type scriptedClient struct {
	responses []*llm.Response
	errs      []error
	calls     int
	requests  []llm.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return nil, fmt.Errorf("unexpected completion call %d", i)
	}
	return c.responses[i], nil
}

// scriptedTools maps tool names to fixed results.
type scriptedTools struct {
	defs       []llm.ToolDefinition
	defsErr    error
	results    map[string]ToolResult
	invoked    []string
	invokeFunc func(call llm.ToolCall) ToolResult
}

func (s *scriptedTools) DescribeTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	return s.defs, s.defsErr
}

func (s *scriptedTools) Invoke(ctx context.Context, call llm.ToolCall) ToolResult {
	s.invoked = append(s.invoked, call.Name)
	if s.invokeFunc != nil {
		return s.invokeFunc(call)
	}
	if r, ok := s.results[call.Name]; ok {
		r.ToolCallID = call.ID
		return r
	}
	return ToolResult{ToolCallID: call.ID, Name: call.Name, Content: "ok"}
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Message: llm.AssistantMessage(text)}
}

func toolCallResponse(text string, calls ...llm.ToolCall) *llm.Response {
	msg := llm.AssistantMessage(text)
	for _, c := range calls {
		msg.Content = append(msg.Content, llm.ToolCallPart(c.ID, c.Name, c.Arguments))
	}
	return &llm.Response{Message: msg}
}

func collect(t *testing.T, stream *TurnStream) []TurnEvent {
	t.Helper()
	var events []TurnEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events
}

func newTestAgent(client CompletionClient, tools ToolAdapter) *Agent {
	cfg := DefaultConfig()
	cfg.DetectRepeats = false
	return New(client, tools, cfg)
}

func TestTurnPlainAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("Done.")}}
	tools := &scriptedTools{}
	a := newTestAgent(client, tools)

	stream, err := a.Turn(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatal(err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != EventAssistant {
		t.Fatalf("expected assistant event, got %s", events[0].Kind)
	}
	if events[0].Assistant.Text != "Done." {
		t.Errorf("unexpected text: %q", events[0].Assistant.Text)
	}
	if len(events[0].Assistant.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(events[0].Assistant.ToolCalls))
	}
	if client.calls != 1 {
		t.Errorf("expected 1 completion, got %d", client.calls)
	}
}

func TestTurnWithToolCall(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "view", Arguments: json.RawMessage(`{"path":"notes.txt"}`)}
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("Let me look.", call),
		textResponse("The file says hello."),
	}}
	tools := &scriptedTools{
		results: map[string]ToolResult{
			"view": {Name: "view", Content: "1: hello"},
		},
	}
	a := newTestAgent(client, tools)

	stream, err := a.Turn(context.Background(), "what does notes.txt say?")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != EventAssistant || events[1].Kind != EventTool || events[2].Kind != EventAssistant {
		t.Fatalf("unexpected event order: %s %s %s", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	if events[0].Assistant.ToolCalls[0].Name != "view" {
		t.Errorf("unexpected tool call name: %q", events[0].Assistant.ToolCalls[0].Name)
	}
	if got := events[0].Assistant.ToolCalls[0].Args["path"]; got != "notes.txt" {
		t.Errorf("unexpected decoded args: %v", events[0].Assistant.ToolCalls[0].Args)
	}
	if events[1].Tool.ID != "c1" || events[1].Tool.Content != "1: hello" {
		t.Errorf("unexpected tool event: %+v", events[1].Tool)
	}

	// The tool result must be visible to the second completion.
	second := client.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "c1" {
		t.Errorf("expected trailing tool message for c1, got role=%s id=%s", last.Role, last.ToolCallID)
	}
}

func TestTurnMultipleToolCallsDispatchInOrder(t *testing.T) {
	batch := []llm.ToolCall{
		{ID: "c1", Name: "view", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
		{ID: "c2", Name: "fetch", Arguments: json.RawMessage(`{"url":"http://x"}`)},
		{ID: "c3", Name: "view", Arguments: json.RawMessage(`{"path":"b.txt"}`)},
	}
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("Gathering.", batch...),
		textResponse("All done."),
	}}
	tools := &scriptedTools{
		invokeFunc: func(c llm.ToolCall) ToolResult {
			return ToolResult{ToolCallID: c.ID, Name: c.Name, Content: "result for " + c.ID}
		},
	}
	a := newTestAgent(client, tools)

	stream, err := a.Turn(context.Background(), "read both files and the page")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatal(err)
	}

	// One assistant event, then one tool event per call in model order,
	// then the closing assistant event.
	wantKinds := []EventKind{EventAssistant, EventTool, EventTool, EventTool, EventAssistant}
	if len(events) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d", len(wantKinds), len(events))
	}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Fatalf("event %d: kind = %s, want %s", i, events[i].Kind, want)
		}
	}
	for i, wantID := range []string{"c1", "c2", "c3"} {
		ev := events[i+1].Tool
		if ev.ID != wantID {
			t.Errorf("tool event %d: id = %q, want %q", i, ev.ID, wantID)
		}
		if ev.Content != "result for "+wantID {
			t.Errorf("tool event %d: content = %q", i, ev.Content)
		}
	}

	// Invocations happen sequentially in the order the model gave.
	if got := strings.Join(tools.invoked, ","); got != "view,fetch,view" {
		t.Errorf("invocation order = %q, want %q", got, "view,fetch,view")
	}

	// All three results must be in history before the second completion.
	second := client.requests[1].Messages
	tail := second[len(second)-3:]
	for i, wantID := range []string{"c1", "c2", "c3"} {
		if tail[i].Role != llm.RoleTool || tail[i].ToolCallID != wantID {
			t.Errorf("history message %d before second completion: role=%s id=%s, want tool %s",
				i, tail[i].Role, tail[i].ToolCallID, wantID)
		}
	}
	if client.calls != 2 {
		t.Errorf("expected 2 completions, got %d", client.calls)
	}
}

func TestTurnToolErrorDoesNotAbort(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "fetch", Arguments: json.RawMessage(`{"url":"x"}`)}
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("", call),
		textResponse("That did not work, sorry."),
	}}
	tools := &scriptedTools{
		invokeFunc: func(c llm.ToolCall) ToolResult {
			return ToolResult{
				ToolCallID: c.ID,
				Name:       c.Name,
				Content:    "Error executing tool call 'fetch': connection refused. Try again with different arguments.",
				IsError:    true,
			}
		},
	}
	a := newTestAgent(client, tools)

	stream, err := a.Turn(context.Background(), "fetch x")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !strings.Contains(events[1].Tool.Content, "Error executing tool call 'fetch'") {
		t.Errorf("unexpected tool error content: %q", events[1].Tool.Content)
	}
	if client.calls != 2 {
		t.Errorf("expected the loop to continue after the tool error, got %d completions", client.calls)
	}
}

func TestTurnStepBudget(t *testing.T) {
	call := llm.ToolCall{ID: "c", Name: "view", Arguments: json.RawMessage(`{}`)}
	responses := make([]*llm.Response, 0, 25)
	for i := 0; i < 25; i++ {
		responses = append(responses, toolCallResponse("working", call))
	}
	client := &scriptedClient{responses: responses}
	tools := &scriptedTools{}
	a := newTestAgent(client, tools)

	stream, err := a.Turn(context.Background(), "loop forever")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatalf("budget exhaustion must end the turn without error: %v", err)
	}

	if client.calls != 25 {
		t.Errorf("expected 25 completions, got %d", client.calls)
	}
	assistants, toolEvents := 0, 0
	for _, ev := range events {
		switch ev.Kind {
		case EventAssistant:
			assistants++
		case EventTool:
			toolEvents++
		}
	}
	if assistants != 25 || toolEvents != 25 {
		t.Errorf("expected 25+25 events, got %d assistant / %d tool", assistants, toolEvents)
	}
}

func TestTurnCompletionErrorIsFatal(t *testing.T) {
	transportErr := errors.New("dial tcp: connection refused")
	client := &scriptedClient{errs: []error{transportErr}}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if err := stream.Err(); !errors.Is(err, transportErr) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestTurnEmptyCompletion(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{{Message: llm.Message{Role: llm.RoleAssistant}}}}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	collect(t, stream)
	if err := stream.Err(); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestTurnDescribeToolsErrorIsFatal(t *testing.T) {
	listErr := errors.New("mcp server unavailable")
	client := &scriptedClient{}
	a := newTestAgent(client, &scriptedTools{defsErr: listErr})

	stream, err := a.Turn(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	collect(t, stream)
	if err := stream.Err(); !errors.Is(err, listErr) {
		t.Errorf("expected listing error, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected no completions, got %d", client.calls)
	}
}

func TestTurnReentrancy(t *testing.T) {
	blocker := make(chan struct{})
	client := &blockingClient{release: blocker}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Turn(context.Background(), "second"); !errors.Is(err, ErrTurnInProgress) {
		t.Errorf("expected ErrTurnInProgress, got %v", err)
	}

	close(blocker)
	collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatal(err)
	}

	// After the first turn completes, a new turn is accepted.
	stream2, err := a.Turn(context.Background(), "third")
	if err != nil {
		t.Fatalf("expected the agent to accept a turn after the previous finished: %v", err)
	}
	collect(t, stream2)
}

type blockingClient struct {
	release chan struct{}
}

func (c *blockingClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return textResponse("done"), nil
}

func TestTurnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &blockingClient{release: make(chan struct{})}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		collect(t, stream)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not stop after cancellation")
	}
	if err := stream.Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTurnInvalidToolArgsProjection(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "view", Arguments: json.RawMessage(`not json`)}
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("", call),
		textResponse("done"),
	}}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, stream)
	if err := stream.Err(); err != nil {
		t.Fatal(err)
	}

	summary := events[0].Assistant.ToolCalls[0]
	if summary.Args != nil {
		t.Errorf("expected nil args for undecodable payload, got %v", summary.Args)
	}
	if summary.RawArgs != "not json" {
		t.Errorf("undecodable payload must be carried verbatim, got %q", summary.RawArgs)
	}
}

func TestHistoryGrowsInOrder(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "view", Arguments: json.RawMessage(`{}`)}
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("looking", call),
		textResponse("done"),
	}}
	a := newTestAgent(client, &scriptedTools{})

	stream, err := a.Turn(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}
	collect(t, stream)

	msgs := a.History().Messages()
	wantRoles := []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleAssistant}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(msgs))
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d: role = %s, want %s", i, msgs[i].Role, want)
		}
	}
}
