package mcpbridge

import "fmt"

// Truncate caps output at maxChars characters, keeping the head and tail
// and inserting a marker describing what was removed. Output at or under
// the limit is returned unchanged.
func Truncate(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(output) - maxChars
	return output[:half] +
		fmt.Sprintf("\n\n[Tool output was truncated. %d characters were removed from the middle. "+
			"Re-run the tool with more targeted parameters to see specific parts.]\n\n", removed) +
		output[len(output)-half:]
}
