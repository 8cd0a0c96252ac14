// Package mcp exposes an agent's tools over the Model Context Protocol so
// MCP clients (IDEs, other agent frameworks) can list agents and delegate
// tasks the same way the orchestration model does.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/agentmesh/internal/port/reasoning"
)

// ServerConfig holds the advertised server identity.
type ServerConfig struct {
	Name    string
	Version string
}

// AgentLister renders the current agent directory as JSON.
type AgentLister interface {
	ListAgentsJSON(ctx context.Context) (string, error)
}

// ServerDeps holds the optional collaborators behind the MCP surface.
type ServerDeps struct {
	Tools  reasoning.Toolset
	Agents AgentLister
}

// Server wraps an MCP server publishing a toolset and the agent directory.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates an MCP server with every tool of deps.Tools and, when
// deps.Agents is set, the agents resource.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler serves the streamable HTTP transport, mounted at /mcp.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}
