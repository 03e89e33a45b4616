package agent

import (
	"regexp"
	"strings"
)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks from model output and
// trims surrounding whitespace. Reasoning models emit these blocks inline;
// they are dropped before the text is recorded or shown. Idempotent.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(text, ""))
}
