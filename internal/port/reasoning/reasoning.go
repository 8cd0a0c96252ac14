// Package reasoning defines the port for the opaque reasoning capability an
// agent delegates its work to, and the tools such a capability may call.
package reasoning

import (
	"context"
	"fmt"
	"strings"
)

// Capability answers a query. Implementations may block for a long time
// and must honour ctx cancellation.
type Capability interface {
	Run(ctx context.Context, query string) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, query string) (string, error)

// Run implements Capability.
func (f CapabilityFunc) Run(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Echo returns the query unchanged.
type Echo struct{}

// Run implements Capability.
func (Echo) Run(_ context.Context, query string) (string, error) {
	return query, nil
}

// Param is one string argument of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Tool is a named function a capability may call while reasoning.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     func(ctx context.Context, args map[string]string) (string, error)
}

// Call validates required arguments and invokes the handler.
func (t *Tool) Call(ctx context.Context, args map[string]string) (string, error) {
	var missing []string
	for _, p := range t.Params {
		if p.Required && strings.TrimSpace(args[p.Name]) == "" {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("tool %s: missing required argument(s): %s", t.Name, strings.Join(missing, ", "))
	}
	return t.Handler(ctx, args)
}

// Toolset is an ordered collection of tools addressable by name.
type Toolset []Tool

// Lookup returns the tool with the given name.
func (ts Toolset) Lookup(name string) (*Tool, bool) {
	for i := range ts {
		if ts[i].Name == name {
			return &ts[i], true
		}
	}
	return nil, false
}

// Names lists the tool names in order.
func (ts Toolset) Names() []string {
	out := make([]string, len(ts))
	for i := range ts {
		out[i] = ts[i].Name
	}
	return out
}
