// Command tinkertasker is an interactive chat REPL around the agent core.
// It starts the built-in MCP servers in-process, connects the completion
// client, and renders turn events as they stream.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tinkertasker/tinkertasker/agent"
	"github.com/tinkertasker/tinkertasker/config"
	"github.com/tinkertasker/tinkertasker/llm"
	"github.com/tinkertasker/tinkertasker/mcpbridge"
	"github.com/tinkertasker/tinkertasker/toolserver"
)

// doubleInterruptThreshold is how quickly a second Ctrl+C must follow the
// first one to quit.
const doubleInterruptThreshold = 500 * time.Millisecond

var cli struct {
	Model   string `short:"m" help:"Model to use, overriding the config file."`
	WorkDir string `short:"w" help:"Working directory for file tools. Defaults to the current directory." type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("tinkertasker"),
		kong.Description("An autonomous tool-using agent powered by a locally hosted LLM."),
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	_ = godotenv.Load()

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cli.Model != "" {
		cfg.Agent.LLM.ModelName = cli.Model
	}

	workDir := cli.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	fsClient, err := startInProcess(toolserver.NewFilesystemServer(workDir))
	if err != nil {
		return fmt.Errorf("starting filesystem server: %w", err)
	}
	defer fsClient.Close()
	webClient, err := startInProcess(toolserver.NewWebServer(nil))
	if err != nil {
		return fmt.Errorf("starting web server: %w", err)
	}
	defer webClient.Close()

	tools := mcpbridge.New([]mcpbridge.ToolClient{fsClient, webClient})

	completions, err := newCompletionClient(cfg)
	if err != nil {
		return err
	}
	defer completions.Close()

	agentCfg := agent.DefaultConfig()
	agentCfg.Model = cfg.Agent.LLM.ModelName
	agentCfg.MaxSteps = cfg.Agent.MaxSteps
	agentCfg.MaxTokens = cfg.Agent.LLM.MaxCompletionTokens
	agentCfg.Temperature = cfg.Agent.LLM.Temperature
	agentCfg.NumCtx = cfg.Agent.LLM.NumCtx
	agentCfg.WorkingDir = workDir
	agentCfg.ToolInstructions = toolserver.FilesystemInstructions + "\n" + toolserver.WebInstructions

	a := agent.New(completions, tools, agentCfg)

	printWelcome(workDir)
	return repl(a, cfg.UX)
}

// startInProcess connects an initialized MCP client to an in-process server.
func startInProcess(srv *server.MCPServer) (*client.Client, error) {
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, err
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "tinkertasker", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// newCompletionClient builds the LLM client for the configured model with
// retries around transient provider failures.
func newCompletionClient(cfg config.Config) (*llm.Client, error) {
	provider := llm.InferProvider(cfg.Agent.LLM.ModelName)
	if provider == "" {
		provider = "ollama"
	}
	adapter, err := llm.NewGollmAdapter(provider, "",
		llm.WithModel(cfg.Agent.LLM.ModelName),
		llm.WithMaxTokens(cfg.Agent.LLM.MaxCompletionTokens),
		llm.WithTemperature(cfg.Agent.LLM.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s adapter: %w", provider, err)
	}

	policy := llm.DefaultRetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		slog.Warn("retrying completion", "attempt", attempt, "delay", delay, "error", err)
	}
	return llm.NewClient(
		llm.WithProvider(provider, adapter),
		llm.WithMiddleware(llm.RetryMiddleware(policy)),
	), nil
}

func printWelcome(workDir string) {
	configPath, _ := config.Path()
	fmt.Println("Welcome to TinkerTasker!")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Working Directory: %s\n", workDir)
	fmt.Println("Press CTRL+C twice to quit.")
	fmt.Println()
}

// repl reads utterances and runs turns until exit. A single Ctrl+C cancels
// the turn in flight; two in quick succession quit.
func repl(a *agent.Agent, ux config.UXConfig) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var (
		mu            sync.Mutex
		cancelTurn    context.CancelFunc
		lastInterrupt time.Time
		quit          = make(chan struct{})
	)
	go func() {
		for range sigCh {
			mu.Lock()
			now := time.Now()
			if now.Sub(lastInterrupt) < doubleInterruptThreshold {
				mu.Unlock()
				close(quit)
				return
			}
			lastInterrupt = now
			if cancelTurn != nil {
				cancelTurn()
			}
			mu.Unlock()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		lineCh := make(chan string, 1)
		go func() {
			if scanner.Scan() {
				lineCh <- scanner.Text()
			} else {
				close(lineCh)
			}
		}()

		var input string
		select {
		case <-quit:
			fmt.Println()
			return nil
		case line, ok := <-lineCh:
			if !ok {
				fmt.Println()
				return scanner.Err()
			}
			input = strings.TrimSpace(line)
		}

		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		cancelTurn = cancel
		mu.Unlock()

		runTurn(ctx, a, input, ux)

		mu.Lock()
		cancelTurn = nil
		mu.Unlock()
		cancel()

		select {
		case <-quit:
			return nil
		default:
		}
	}
}

func runTurn(ctx context.Context, a *agent.Agent, input string, ux config.UXConfig) {
	stream, err := a.Turn(ctx, input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for ev := range stream.Events() {
		render(ev, ux)
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			fmt.Println("Interrupted.")
			return
		}
		fmt.Printf("Error: %v\n", err)
	}
}

// render prints one turn event. Tool output is cut to the configured
// number of lines; -1 shows everything.
func render(ev agent.TurnEvent, ux config.UXConfig) {
	switch ev.Kind {
	case agent.EventAssistant:
		if text := strings.TrimSpace(ev.Assistant.Text); text != "" {
			fmt.Printf("● %s\n\n", text)
		}
	case agent.EventTool:
		fmt.Printf("● %s(.)\n", ev.Tool.Name)
		lines := strings.Split(ev.Tool.Content, "\n")
		limit := ux.NumberToolLines
		if limit < 0 || limit > len(lines) {
			limit = len(lines)
		}
		for _, line := range lines[:limit] {
			fmt.Printf("  ⎿  %s\n", strings.TrimSpace(line))
		}
		fmt.Println()
	}
}
