package toolserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WebInstructions describes the web server for the agent's system prompt.
const WebInstructions = "WebServer: fetch web pages by URL. Search is not available yet."

// maxFetchBytes caps how much of a response body is returned to the model.
const maxFetchBytes = 100_000

// NewWebServer builds the MCP server exposing fetch and search. A nil
// httpClient uses a default with a 30 second timeout.
func NewWebServer(httpClient *http.Client) *server.MCPServer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	w := &webServer{client: httpClient}

	s := server.NewMCPServer("WebServer", "0.1.0",
		server.WithInstructions("Interacts with websites"),
	)

	s.AddTool(mcp.NewTool("fetch",
		mcp.WithDescription("Fetch the contents of a web page by URL."),
		mcp.WithString("url", mcp.Required(),
			mcp.Description("The URL to fetch. Must be an http or https URL.")),
	), w.handleFetch)

	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search the web."),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("The search query.")),
	), w.handleSearch)

	return s
}

type webServer struct {
	client *http.Client
}

func (w *webServer) handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error: invalid URL %q: %v", url, err)), nil
	}
	httpReq.Header.Set("User-Agent", "tinkertasker/0.1")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error fetching %s: %v", url, err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error reading response from %s: %v", url, err)), nil
	}
	if resp.StatusCode >= 400 {
		return mcp.NewToolResultText(fmt.Sprintf("Error: %s returned HTTP %d", url, resp.StatusCode)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (w *webServer) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := req.RequireString("query"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Search not implemented yet."), nil
}
