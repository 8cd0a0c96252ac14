package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/port/reasoning"
)

// Delegation tool names.
const (
	ToolListRemoteAgents = "list_remote_agents"
	ToolCreateTask       = "create_task"
)

// DelegationTools returns the tools a coordinating model uses to discover
// remote agents and hand them work.
func DelegationTools(d *DelegationService) reasoning.Toolset {
	return reasoning.Toolset{
		{
			Name:        ToolListRemoteAgents,
			Description: "List the remote agents available for delegation, keyed by agent URL, with their descriptions and skills.",
			Handler: func(ctx context.Context, _ map[string]string) (string, error) {
				return ListRemoteAgentsJSON(ctx, d.Registry())
			},
		},
		{
			Name:        ToolCreateTask,
			Description: "Delegate a task to a remote agent and return its status and output artifacts.",
			Params: []reasoning.Param{
				{Name: "agent_url", Description: "Base URL of the remote agent, as returned by list_remote_agents", Required: true},
				{Name: "message", Description: "The instruction to send to the remote agent", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]string) (string, error) {
				res, err := d.Delegate(ctx, args["agent_url"], args["message"])
				if err != nil {
					return "", err
				}
				return TaskResultJSON(res)
			},
		},
	}
}

// ListRemoteAgentsJSON renders the registry listing as a JSON object keyed
// by agent URL.
func ListRemoteAgentsJSON(ctx context.Context, r *RegistryService) (string, error) {
	data, err := json.Marshal(r.List(ctx))
	if err != nil {
		return "", fmt.Errorf("marshal agents: %w", err)
	}
	return string(data), nil
}

// TaskResultJSON renders a delegation result for a model or tool caller.
// A reply that could not be parsed is reported with the malformed-response
// reason so the caller can tell it from a genuine remote failure.
func TaskResultJSON(res *task.Result) (string, error) {
	out := struct {
		*task.Result
		Error string `json:"error,omitempty"`
	}{Result: res}
	switch res.Outcome {
	case task.OutcomeParseError:
		out.Error = domain.ErrMalformedResponse.Error()
	case task.OutcomeRemoteFailed, task.OutcomeRemoteError:
		out.Error = res.Message
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal task result: %w", err)
	}
	return string(data), nil
}

// ListAgentsJSON renders the registry listing for MCP resource readers.
func (s *RegistryService) ListAgentsJSON(ctx context.Context) (string, error) {
	return ListRemoteAgentsJSON(ctx, s)
}
