// Package llm provides the completion client for the agent: a
// provider-agnostic wrapper around the gollm library
// (github.com/teilomillet/gollm) exposing a single blocking
// request/response exchange with a language-model backend.
//
// # Architecture
//
//   - ProviderAdapter: the interface every backend must implement.
//   - Client: provider routing and a middleware chain around Complete.
//   - GollmAdapter: the gollm-backed ProviderAdapter (OpenAI, Anthropic,
//     Ollama, and anything else gollm speaks).
//   - Retry / error taxonomy: retryable classification plus exponential
//     backoff, usable as client middleware.
//
// # Quick Start
//
//	adapter, _ := llm.NewGollmAdapter("ollama", "")
//	client := llm.NewClient(llm.WithProvider("ollama", adapter))
//
//	resp, _ := client.Complete(ctx, llm.Request{
//	    Model:    "qwen3:30b-a3b-q4_K_M",
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
package llm
