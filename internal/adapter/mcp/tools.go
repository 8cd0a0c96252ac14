package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/agentmesh/internal/port/reasoning"
)

// registerTools registers one MCP tool per toolset entry.
func (s *Server) registerTools() {
	tools := make([]mcpserver.ServerTool, 0, len(s.deps.Tools))
	for i := range s.deps.Tools {
		tools = append(tools, toServerTool(&s.deps.Tools[i]))
	}
	if len(tools) > 0 {
		s.mcpServer.AddTools(tools...)
	}
}

func toServerTool(t *reasoning.Tool) mcpserver.ServerTool {
	opts := []mcplib.ToolOption{mcplib.WithDescription(t.Description)}
	for _, p := range t.Params {
		popts := []mcplib.PropertyOption{mcplib.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcplib.Required())
		}
		opts = append(opts, mcplib.WithString(p.Name, popts...))
	}
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool(t.Name, opts...),
		Handler: toolHandler(t),
	}
}

func toolHandler(t *reasoning.Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		args := map[string]string{}
		for k, v := range req.GetArguments() {
			if s, ok := v.(string); ok {
				args[k] = s
			} else {
				args[k] = fmt.Sprint(v)
			}
		}
		out, err := t.Call(ctx, args)
		if err != nil {
			slog.WarnContext(ctx, "mcp tool failed", "tool", t.Name, "error", err)
			return mcplib.NewToolResultErrorFromErr(t.Name+" failed", err), nil
		}
		return mcplib.NewToolResultText(out), nil
	}
}
