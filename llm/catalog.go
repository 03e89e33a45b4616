package llm

import "strings"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	SupportsTools bool     `json:"supports_tools"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog.
var Models = []ModelInfo{
	// Local models served by ollama.
	{
		ID: "qwen3:30b-a3b-q4_K_M", Provider: "ollama", DisplayName: "Qwen3 30B A3B",
		ContextWindow: 32000, SupportsTools: true,
		Aliases: []string{"qwen3"},
	},
	{
		ID: "llama3.3:70b", Provider: "ollama", DisplayName: "Llama 3.3 70B",
		ContextWindow: 128000, SupportsTools: true,
		Aliases: []string{"llama3"},
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},

	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, SupportsTools: true,
		Aliases: []string{"4o-mini"},
	},
}

// GetModelInfo looks up a model by ID or alias. Returns nil if unknown.
func GetModelInfo(model string) *ModelInfo {
	model = strings.TrimPrefix(model, "ollama/")
	model = strings.TrimPrefix(model, "ollama_chat/")
	for i := range Models {
		m := &Models[i]
		if m.ID == model {
			return m
		}
		for _, alias := range m.Aliases {
			if alias == model {
				return m
			}
		}
	}
	return nil
}

// InferProvider guesses the provider for a model identifier, consulting the
// catalog first and falling back to naming conventions.
func InferProvider(model string) string {
	if model == "" {
		return ""
	}
	if strings.HasPrefix(model, "ollama/") || strings.HasPrefix(model, "ollama_chat/") {
		return "ollama"
	}
	if info := GetModelInfo(model); info != nil {
		return info.Provider
	}
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.Contains(model, ":"):
		// ollama tags look like "name:variant".
		return "ollama"
	}
	return ""
}

// ContextWindowFor returns the context window for a model, or fallback if
// the model is not in the catalog.
func ContextWindowFor(model string, fallback int) int {
	if info := GetModelInfo(model); info != nil && info.ContextWindow > 0 {
		return info.ContextWindow
	}
	return fallback
}
