package agent

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens estimates the token count of text. Uses the cl100k_base
// encoding when available and falls back to a chars/4 heuristic when the
// encoding cannot be loaded (offline, no cache).
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Debug("tiktoken encoding unavailable, using heuristic", "error", err)
			return
		}
		encoding = enc
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// historyTokens estimates the total token footprint of the history.
func historyTokens(history []Message) int {
	total := 0
	for _, msg := range history {
		total += countTokens(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += countTokens(tc.Name) + countTokens(string(tc.Arguments))
		}
	}
	return total
}

// warnContextUsage logs a warning when the history occupies more than 80%
// of the model's context window. Advisory only; nothing is truncated.
func warnContextUsage(history []Message, contextWindow int) {
	if contextWindow <= 0 {
		return
	}
	used := historyTokens(history)
	if used*100 >= contextWindow*80 {
		slog.Warn("conversation approaching context window limit",
			"used_tokens", used,
			"context_window", contextWindow,
			"percent", used*100/contextWindow)
	}
}
