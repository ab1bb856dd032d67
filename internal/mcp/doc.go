// Package mcp exposes the workspace to coding agents over the Model Context
// Protocol, using the mcp-go library (github.com/mark3labs/mcp-go).
//
// # Tools
//
//   - workspace_status: the current selection, derived path, and flags
//   - select_repository: select organization/repository, cloning if needed
//   - clear_repository: forget the selection
//   - revalidate_workspace: recompute the path after a settings change
//   - list_clone_operations: clone operations still running
//
// Agents never answer prompts. A repository mismatch is always cancelled
// and reported as a tool error, so nothing on disk is deleted from here.
//
// # Usage
//
// The server is started as a subprocess by the agent:
//
//	array mcp
//
// It reads JSON-RPC requests from stdin and writes responses to stdout
// until EOF.
package mcp
