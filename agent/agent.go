package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinkertasker/tinkertasker/llm"
)

var (
	// ErrTurnInProgress is returned by Turn when a previous turn on the same
	// agent has not finished.
	ErrTurnInProgress = errors.New("agent: turn already in progress")

	// ErrEmptyCompletion is the terminal stream error when the completion
	// backend returns a nil response or an assistant message with no
	// content parts at all. A valid empty reply is not this: provider
	// adapters represent empty text as a single empty text part, so nil
	// content means the backend produced no message.
	ErrEmptyCompletion = errors.New("agent: completion returned no message")
)

// CompletionClient is the completion backend contract. One request, one
// complete response; streaming is out of scope.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Config holds per-agent settings.
type Config struct {
	Model       string
	MaxSteps    int
	MaxTokens   int
	Temperature float64
	// NumCtx is the requested context length, forwarded to local backends
	// that honor it.
	NumCtx int
	// ContextWindow is used for the advisory usage warning. Zero means look
	// it up from the model catalog.
	ContextWindow int
	// DetectRepeats enables the repeated-tool-call advisory. RepeatWindow is
	// the number of trailing calls examined.
	DetectRepeats bool
	RepeatWindow  int
	// WorkingDir and ToolInstructions feed the system prompt.
	WorkingDir       string
	ToolInstructions string
}

// DefaultConfig returns the standard agent configuration.
func DefaultConfig() Config {
	return Config{
		Model:         "ollama_chat/qwen3:30b-a3b-q4_K_M",
		MaxSteps:      25,
		MaxTokens:     4000,
		Temperature:   0.7,
		NumCtx:        32000,
		DetectRepeats: true,
		RepeatWindow:  6,
	}
}

// Agent runs the turn loop: completions interleaved with tool dispatch,
// over a shared append-only history. One turn at a time.
type Agent struct {
	client   CompletionClient
	tools    ToolAdapter
	config   Config
	history  *History
	logger   *slog.Logger
	inFlight atomic.Bool
}

// New creates an Agent with a history seeded from the config's system
// prompt settings.
func New(client CompletionClient, tools ToolAdapter, config Config) *Agent {
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultConfig().MaxSteps
	}
	return &Agent{
		client:  client,
		tools:   tools,
		config:  config,
		history: NewHistory(BuildSystemPrompt(config.WorkingDir, config.ToolInstructions)),
		logger:  slog.Default().With("component", "agent"),
	}
}

// History returns the agent's conversation history.
func (a *Agent) History() *History { return a.history }

// TurnStream delivers the events of one turn. Events() yields events in
// emission order over an unbuffered channel; once it is closed, Err()
// reports whether the turn ended normally or failed.
type TurnStream struct {
	ch  chan TurnEvent
	mu  sync.Mutex
	err error
}

// Events returns the event channel. It is closed when the turn ends.
func (s *TurnStream) Events() <-chan TurnEvent { return s.ch }

// Err returns the terminal error of the turn, if any. Valid only after the
// event channel has been closed.
func (s *TurnStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *TurnStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Turn processes one user utterance. It appends the utterance to the
// history and starts the completion/tool loop in the background, returning
// a stream of events. Returns ErrTurnInProgress if a previous turn has not
// finished.
func (a *Agent) Turn(ctx context.Context, utterance string) (*TurnStream, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}

	stream := &TurnStream{ch: make(chan TurnEvent)}
	go a.run(ctx, utterance, stream)
	return stream, nil
}

// emit delivers one event to the consumer, suspending until it is received.
// Returns false when the context is cancelled before delivery.
func (a *Agent) emit(ctx context.Context, stream *TurnStream, ev TurnEvent) bool {
	select {
	case stream.ch <- ev:
		return true
	case <-ctx.Done():
		stream.fail(ctx.Err())
		return false
	}
}

func (a *Agent) run(ctx context.Context, utterance string, stream *TurnStream) {
	defer func() {
		close(stream.ch)
		a.inFlight.Store(false)
	}()

	tools, err := a.tools.DescribeTools(ctx)
	if err != nil {
		stream.fail(fmt.Errorf("listing tools: %w", err))
		return
	}

	a.history.Append(NewUserMessage(utterance))

	contextWindow := a.config.ContextWindow
	if contextWindow == 0 {
		contextWindow = llm.ContextWindowFor(a.config.Model, a.config.NumCtx)
	}

	for step := 0; step < a.config.MaxSteps; step++ {
		warnContextUsage(a.history.Messages(), contextWindow)

		resp, err := a.client.Complete(ctx, a.completionRequest(tools))
		if err != nil {
			stream.fail(fmt.Errorf("completion: %w", err))
			return
		}
		if resp == nil || len(resp.Message.Content) == 0 {
			stream.fail(ErrEmptyCompletion)
			return
		}

		text := StripThinking(resp.Text())
		calls := resp.ToolCalls()
		a.history.Append(NewAssistantMessage(text, calls))

		if !a.emit(ctx, stream, projectAssistantEvent(text, calls)) {
			return
		}

		if len(calls) == 0 {
			return
		}

		for _, call := range calls {
			result := a.tools.Invoke(ctx, call)
			a.history.Append(NewToolMessage(result))
			if result.IsError {
				a.logger.Warn("tool call failed", "tool", result.Name, "id", result.ToolCallID)
			}
			if !a.emit(ctx, stream, projectToolEvent(result)) {
				return
			}
		}

		if a.config.DetectRepeats && DetectRepeatedCalls(a.history.Messages(), a.config.RepeatWindow) {
			a.logger.Warn("repeated tool calls detected", "window", a.config.RepeatWindow)
			a.history.Append(NewUserMessage(
				"You appear to be repeating the same tool calls. Step back, reassess the task, and try a different approach."))
		}
	}

	// Step budget exhausted: the turn ends after the final assistant
	// response without error.
	a.logger.Info("turn reached step limit", "max_steps", a.config.MaxSteps)
}

func (a *Agent) completionRequest(tools []llm.ToolDefinition) llm.Request {
	maxTokens := a.config.MaxTokens
	temperature := a.config.Temperature
	req := llm.Request{
		Model:       a.config.Model,
		Messages:    a.history.Snapshot(),
		Tools:       tools,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
	if a.config.NumCtx > 0 {
		numCtx := a.config.NumCtx
		req.NumCtx = &numCtx
	}
	return req
}
