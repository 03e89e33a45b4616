// Package toolserver provides the built-in MCP servers: a filesystem
// server with text-editing tools confined to a working directory, and a
// web server for fetching pages. Both run in-process and are consumed
// through an MCP client, the same way external servers are.
package toolserver
