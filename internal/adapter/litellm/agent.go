package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/agentmesh/internal/adapter/otel"
	"github.com/Strob0t/agentmesh/internal/port/reasoning"
)

var _ reasoning.Capability = (*Agent)(nil)

// Agent is a reasoning capability backed by the chat model: it answers a
// query under a fixed system prompt, calling tools until the model replies
// with plain text or the round limit is reached.
type Agent struct {
	client *Client
	system string
	tools  reasoning.Toolset
	defs   []ToolDef
}

// NewAgent builds an Agent over client.
func NewAgent(client *Client, systemPrompt string, tools reasoning.Toolset) *Agent {
	return &Agent{
		client: client,
		system: systemPrompt,
		tools:  tools,
		defs:   ToolDefs(tools),
	}
}

// Run implements reasoning.Capability.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	var msgs []ChatMessage
	if a.system != "" {
		msgs = append(msgs, ChatMessage{Role: RoleSystem, Content: a.system})
	}
	msgs = append(msgs, ChatMessage{Role: RoleUser, Content: query})

	temp := a.client.temperature
	for round := 0; round < a.client.maxRounds; round++ {
		resp, err := a.client.Complete(ctx, &ChatRequest{
			Messages:    msgs,
			Tools:       a.defs,
			Temperature: &temp,
		})
		if err != nil {
			return "", err
		}

		reply := resp.Choices[0].Message
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		reply.Role = RoleAssistant
		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			msgs = append(msgs, ChatMessage{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Content:    a.callTool(ctx, call),
			})
		}
	}
	return "", fmt.Errorf("no answer after %d tool rounds", a.client.maxRounds)
}

// callTool runs one requested tool. Failures are reported back to the
// model as the tool output so it can recover.
func (a *Agent) callTool(ctx context.Context, call ToolCall) (out string) {
	name := call.Function.Name
	ctx, span := otel.StartToolCallSpan(ctx, name)
	var err error
	defer func() {
		a.client.metrics.ToolCalled(ctx, name)
		otel.EndSpan(span, err)
	}()

	tool, ok := a.tools.Lookup(name)
	if !ok {
		err = fmt.Errorf("unknown tool %q", name)
		return "error: " + err.Error()
	}
	args, err := DecodeArgs(call.Function.Arguments)
	if err != nil {
		return "error: " + err.Error()
	}

	out, err = tool.Call(ctx, args)
	if err != nil {
		slog.WarnContext(ctx, "tool call failed", "tool", name, "error", err)
		return "error: " + err.Error()
	}
	slog.DebugContext(ctx, "tool called", "tool", name)
	return out
}

// ToolDefs describes a toolset as function definitions whose parameters
// are all strings.
func ToolDefs(ts reasoning.Toolset) []ToolDef {
	defs := make([]ToolDef, 0, len(ts))
	for i := range ts {
		t := &ts[i]
		type prop struct {
			Type        string `json:"type"`
			Description string `json:"description,omitempty"`
		}
		schema := struct {
			Type       string          `json:"type"`
			Properties map[string]prop `json:"properties"`
			Required   []string        `json:"required,omitempty"`
		}{Type: "object", Properties: map[string]prop{}}
		for _, p := range t.Params {
			schema.Properties[p.Name] = prop{Type: "string", Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		params, _ := json.Marshal(schema)
		defs = append(defs, ToolDef{
			Type: "function",
			Function: FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}

// DecodeArgs flattens JSON-encoded call arguments to strings. Strings are
// kept as-is; other values are passed on in their JSON form.
func DecodeArgs(raw string) (map[string]string, error) {
	out := map[string]string{}
	if raw == "" {
		return out, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	for k, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}
