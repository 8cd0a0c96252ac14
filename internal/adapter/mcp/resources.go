package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// AgentsURI is the resource listing the resolvable remote agents.
const AgentsURI = "agentmesh://agents"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	if s.deps.Agents == nil {
		return
	}
	s.mcpServer.AddResource(
		mcplib.NewResource(
			AgentsURI,
			"Remote Agents",
			mcplib.WithResourceDescription("Agent cards of every reachable registered agent, keyed by URL"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentsResource,
	)
}

func (s *Server) handleAgentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	data, err := s.deps.Agents.ListAgentsJSON(ctx)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     data,
		},
	}, nil
}
