// Package mcp exposes sentinel to agents as an MCP tool server.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/sentinel/internal/service"
)

// Config holds MCP server configuration.
type Config struct {
	// Actor is recorded in the audit log for every tool call.
	Actor   string
	Version string
}

// Server wraps the MCP SDK server around a Service.
type Server struct {
	mcpServer *mcpsdk.Server
	svc       *service.Service
	actor     string
}

// New creates an MCP server with all sentinel tools registered.
func New(svc *service.Service, cfg Config) *Server {
	actor := cfg.Actor
	if actor == "" {
		actor = "mcp"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{svc: svc, actor: actor}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "sentinel",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all sentinel tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_check",
		Description: "Check a proposed action against the ethical constraints. A critical violation means the action must not proceed.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_report",
		Description: "Check a proposed action and return a compliance report with recommendations and a safer alternative.",
	}, s.handleReport)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_constraints",
		Description: "List the active constraints and the hash of the constraint set.",
	}, s.handleConstraints)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_assess",
		Description: "Create a risk assessment for an identified threat. Returns graduated intervention options and a recommendation for human review.",
	}, s.handleAssess)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_score",
		Description: "Return the 0-100 risk score and risk level of a stored assessment.",
	}, s.handleScore)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_transition",
		Description: "Move a stored assessment through review: pending-approval, approved, rejected, executed.",
	}, s.handleTransition)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sentinel_list",
		Description: "List stored assessments with their status.",
	}, s.handleList)
}
