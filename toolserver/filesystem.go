package toolserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FilesystemInstructions describes the filesystem server for the agent's
// system prompt.
const FilesystemInstructions = "FilesystemServer: view, create, and edit files. " +
	"Reading is allowed anywhere; creating and editing are confined to the working directory."

// FilesystemServer serves text-editing tools rooted at a working
// directory. Reads may reach outside it; writes may not.
type FilesystemServer struct {
	workingDir string
}

// NewFilesystemServer builds the MCP server exposing view, insert,
// str_replace, and create over the given working directory.
func NewFilesystemServer(workingDir string) *server.MCPServer {
	fs := &FilesystemServer{workingDir: workingDir}

	s := server.NewMCPServer("FilesystemServer", "0.1.0",
		server.WithInstructions("This server provides the ability to interact with the local filesystem."),
	)

	s.AddTool(mcp.NewTool("view",
		mcp.WithDescription("Examine the contents of a file or list the contents of a directory. "+
			"Can read the entire file or a specific range of lines."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The path to the file or directory to view, absolute or relative to the working directory.")),
		mcp.WithArray("view_range",
			mcp.Description("An array of two integers specifying the start (inclusive) and end (inclusive) "+
				"line numbers to view. Line numbers are 1-indexed, and -1 for the end line means read to "+
				"the end of the file. Only applies when viewing files."),
			mcp.Items(map[string]interface{}{"type": "integer"})),
	), fs.handleView)

	s.AddTool(mcp.NewTool("insert",
		mcp.WithDescription("Insert text at a specific location in a file."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The path to the file to modify. Must be in the working directory or a subdirectory.")),
		mcp.WithNumber("insert_line", mcp.Required(),
			mcp.Description("The line number after which to insert the text (0 for beginning of file).")),
		mcp.WithString("new_str", mcp.Required(),
			mcp.Description("The text to insert.")),
	), fs.handleInsert)

	s.AddTool(mcp.NewTool("str_replace",
		mcp.WithDescription("Replace a specific string in a file with a new string. Used for making precise edits."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The path to the file to modify. Must be in the working directory or a subdirectory.")),
		mcp.WithString("old_str", mcp.Required(),
			mcp.Description("The text to replace (must match exactly, including whitespace and indentation).")),
		mcp.WithString("new_str", mcp.Required(),
			mcp.Description("The new text to insert in place of the old text.")),
		mcp.WithBoolean("replace_all",
			mcp.Description("If true, replaces all occurrences of old_str. If false, replaces only the first occurrence.")),
	), fs.handleStrReplace)

	s.AddTool(mcp.NewTool("create",
		mcp.WithDescription("Create a new file with the specified text."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The path to the new file. Must be in the working directory or a subdirectory.")),
		mcp.WithString("file_text", mcp.Required(),
			mcp.Description("The content to write to the new file.")),
	), fs.handleCreate)

	return s
}

// resolvePath resolves path against the working directory. With confined
// set, the resolved path must stay inside the working directory.
func (fs *FilesystemServer) resolvePath(path string, confined bool) (string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(fs.workingDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	if confined {
		rel, err := filepath.Rel(fs.workingDir, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path must be within the working directory: %s", resolved)
		}
	}
	return resolved, nil
}

// readTextFile reads a file for editing, rejecting directories and
// binary content.
func readTextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file not found at %s", path)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot edit directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("cannot edit binary files; the file appears to be a binary %s file", filepath.Ext(path))
	}
	return string(data), nil
}

// splitLines splits file content without a phantom empty final line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// numberLines renders lines with right-aligned 1-indexed numbers starting
// at offset.
func numberLines(lines []string, offset int) string {
	width := len(fmt.Sprint(offset + len(lines)))
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%*d→%s", width, offset+i+1, line)
	}
	return sb.String()
}

// formatDirectoryTree lists the immediate children of a directory.
func formatDirectoryTree(path string) string {
	lines := []string{fmt.Sprintf("- %s/", path)}
	entries, err := os.ReadDir(path)
	if err != nil {
		lines = append(lines, "  (Permission denied)")
		return strings.Join(lines, "\n")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, "  - "+name)
	}
	return strings.Join(lines, "\n")
}

// contextAround renders lines with numbers, windowed to two lines either
// side of center.
func contextAround(lines []string, center int) string {
	const contextLines = 2
	start := center - contextLines
	if start < 0 {
		start = 0
	}
	end := center + contextLines + 1
	if end > len(lines) {
		end = len(lines)
	}
	return numberLines(lines[start:end], start)
}

func (fs *FilesystemServer) handleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := fs.resolvePath(path, false)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return mcp.NewToolResultText(fmt.Sprintf("Error: Path not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error reading %s: %v", resolved, err)), nil
	}
	if info.IsDir() {
		return mcp.NewToolResultText(formatDirectoryTree(resolved)), nil
	}

	content, err := readTextFile(resolved)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}
	lines := splitLines(content)

	offset := 0
	if start, end, ok := viewRange(req); ok {
		startIdx := start - 1
		if startIdx < 0 {
			startIdx = 0
		}
		endIdx := len(lines)
		if end != -1 && end < endIdx {
			endIdx = end
		}
		if startIdx > len(lines) {
			startIdx = len(lines)
		}
		if endIdx < startIdx {
			endIdx = startIdx
		}
		lines = lines[startIdx:endIdx]
		offset = startIdx
	}

	return mcp.NewToolResultText(numberLines(lines, offset)), nil
}

// viewRange extracts the optional [start, end] argument.
func viewRange(req mcp.CallToolRequest) (start, end int, ok bool) {
	raw, exists := req.GetArguments()["view_range"]
	if !exists {
		return 0, 0, false
	}
	pair, isSlice := raw.([]interface{})
	if !isSlice || len(pair) != 2 {
		return 0, 0, false
	}
	s, sOK := pair[0].(float64)
	e, eOK := pair[1].(float64)
	if !sOK || !eOK {
		return 0, 0, false
	}
	return int(s), int(e), true
}

func (fs *FilesystemServer) handleInsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	insertLine, err := req.RequireInt("insert_line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newStr, err := req.RequireString("new_str")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := fs.resolvePath(path, true)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}
	content, err := readTextFile(resolved)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}

	if insertLine < 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Error: insert_line must be >= 0, got %d", insertLine)), nil
	}
	lines := splitLines(content)
	if insertLine > len(lines) {
		insertLine = len(lines)
	}

	lines = append(lines[:insertLine], append([]string{newStr}, lines[insertLine:]...)...)
	if err := os.WriteFile(resolved, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error inserting into %s: %v", resolved, err)), nil
	}

	out := fmt.Sprintf("Successfully inserted text at line %d in %s:\n%s",
		insertLine, resolved, contextAround(lines, insertLine))
	return mcp.NewToolResultText(out), nil
}

func (fs *FilesystemServer) handleStrReplace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	oldStr, err := req.RequireString("old_str")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newStr, err := req.RequireString("new_str")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	replaceAll := req.GetBool("replace_all", false)

	resolved, err := fs.resolvePath(path, true)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}
	content, err := readTextFile(resolved)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}

	count := strings.Count(content, oldStr)
	if count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Error: String not found in %s: '%s'", path, oldStr)), nil
	}
	if !replaceAll && count > 1 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Error: replace_all is false, but %d occurrences were found. Set replace_all to true "+
				"if you want to replace all occurrences, or make old_str more specific to replace only one instance.",
			count)), nil
	}

	var newContent string
	if replaceAll {
		newContent = strings.ReplaceAll(content, oldStr, newStr)
	} else {
		newContent = strings.Replace(content, oldStr, newStr, 1)
	}
	if err := os.WriteFile(resolved, []byte(newContent), 0o644); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error replacing in %s: %v", path, err)), nil
	}

	oldLines := splitLines(content)
	newLines := splitLines(newContent)
	changed := 0
	for i := 0; i < len(oldLines) && i < len(newLines); i++ {
		if oldLines[i] != newLines[i] {
			changed = i
			break
		}
	}

	header := fmt.Sprintf("Successfully replaced text in %s:", resolved)
	if replaceAll {
		header = fmt.Sprintf("Successfully replaced %d occurrences in %s:", count, resolved)
	}
	return mcp.NewToolResultText(header + "\n" + contextAround(newLines, changed)), nil
}

func (fs *FilesystemServer) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fileText, err := req.RequireString("file_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := fs.resolvePath(path, true)
	if err != nil {
		return mcp.NewToolResultText("Error: " + err.Error()), nil
	}

	if info, err := os.Stat(resolved); err == nil {
		if info.IsDir() {
			return mcp.NewToolResultText(fmt.Sprintf("Error: Cannot create file at directory: %s", resolved)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Error: File already exists at %s use str_replace or insert to modify it.", resolved)), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error creating %s: %v", resolved, err)), nil
	}
	if err := os.WriteFile(resolved, []byte(fileText), 0o644); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error creating %s: %v", resolved, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("File successfully created at %s", resolved)), nil
}
