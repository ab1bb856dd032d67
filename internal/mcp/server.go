package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"array/internal/clone"
	"array/internal/logging"
	"array/internal/repository"
	"array/internal/workspace"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to clients during initialization.
var Version = "dev"

// Workspace is the part of workspace.Store the tools drive.
type Workspace interface {
	State() workspace.State
	SelectRepository(ctx context.Context, id repository.Identifier) error
	ClearRepository(ctx context.Context) error
	ValidateAndUpdatePath(ctx context.Context) error
}

// Operations lists running clones.
type Operations interface {
	Active() []clone.Operation
}

// Server represents an MCP server instance using mcp-go
type Server struct {
	workspace  Workspace
	operations Operations
	logger     *logging.AppLogger
	mcpServer  *server.MCPServer
}

// NewServer creates the server and registers every tool.
func NewServer(ws Workspace, ops Operations, logger *logging.AppLogger) *Server {
	if logger == nil {
		logger = logging.GetDefault()
	}
	s := &Server{
		workspace:  ws,
		operations: ops,
		logger:     logger.With("component", "mcp"),
		mcpServer: server.NewMCPServer(
			"array",
			Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcpServer.AddTool(statusTool(), s.handleStatus)
	s.mcpServer.AddTool(selectTool(), s.handleSelect)
	s.mcpServer.AddTool(clearTool(), s.handleClear)
	s.mcpServer.AddTool(revalidateTool(), s.handleRevalidate)
	s.mcpServer.AddTool(operationsTool(), s.handleOperations)
	return s
}

// Serve runs the server over stdio until stdin closes.
func (s *Server) Serve() error {
	s.logger.Info("Starting MCP server on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func statusTool() mcpgo.Tool {
	return mcpgo.NewTool("workspace_status",
		mcpgo.WithDescription("Show the selected repository, its local path, and whether it is present, validating, or syncing."),
	)
}

func selectTool() mcpgo.Tool {
	return mcpgo.NewTool("select_repository",
		mcpgo.WithDescription("Select a repository. It is cloned into the workspace when missing. A different repository already at the path is never replaced."),
		mcpgo.WithString("organization",
			mcpgo.Required(),
			mcpgo.Description("Organization or user that owns the repository"),
		),
		mcpgo.WithString("repository",
			mcpgo.Required(),
			mcpgo.Description("Repository name"),
		),
	)
}

func clearTool() mcpgo.Tool {
	return mcpgo.NewTool("clear_repository",
		mcpgo.WithDescription("Clear the repository selection. Nothing on disk is removed."),
	)
}

func revalidateTool() mcpgo.Tool {
	return mcpgo.NewTool("revalidate_workspace",
		mcpgo.WithDescription("Recompute the selected repository's path from the configured workspace root and validate it."),
	)
}

func operationsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_clone_operations",
		mcpgo.WithDescription("List clone operations that are still running."),
	)
}

func (s *Server) handleStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return jsonResult(s.workspace.State())
}

func (s *Server) handleSelect(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	org, err := req.RequireString("organization")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("repository")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	id, err := repository.NewIdentifier(org, name)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("invalid repository: %v", err)), nil
	}

	s.logger.Info("Selecting repository", "repository", id)
	if err := s.workspace.SelectRepository(ctx, id); err != nil {
		if errors.Is(err, workspace.ErrMismatchCancelled) {
			return mcpgo.NewToolResultError(fmt.Sprintf(
				"a different repository already occupies the path for %s; resolve it from the terminal with `array select %s`",
				id, id)), nil
		}
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.workspace.State())
}

func (s *Server) handleClear(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if err := s.workspace.ClearRepository(ctx); err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return mcpgo.NewToolResultText("Repository selection cleared"), nil
}

func (s *Server) handleRevalidate(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if err := s.workspace.ValidateAndUpdatePath(ctx); err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.workspace.State())
}

// operationView is the wire form of a clone.Operation.
type operationView struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	TargetPath string `json:"target_path"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	StartedAt  string `json:"started_at"`
}

func (s *Server) handleOperations(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	ops := s.operations.Active()
	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, operationView{
			ID:         op.ID,
			Repository: op.Repository.String(),
			TargetPath: op.TargetPath,
			Status:     op.Status.String(),
			Message:    op.Message,
			StartedAt:  op.StartedAt.Format(time.RFC3339),
		})
	}
	return jsonResult(views)
}

func jsonResult(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
