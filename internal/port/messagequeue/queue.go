// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"strings"
)

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects published by agentmesh.
const (
	SubjectTaskEvents  = "tasks.events"  // tasks.events.{agent}: status stream of every task
	SubjectAgentStatus = "agents.status" // agents.status.{agent}: service liveness changes
)

// TaskEventSubject returns the task event subject for an agent.
func TaskEventSubject(agentName string) string {
	return SubjectTaskEvents + "." + Token(agentName)
}

// AgentStatusSubject returns the liveness subject for an agent.
func AgentStatusSubject(agentName string) string {
	return SubjectAgentStatus + "." + Token(agentName)
}

// Token turns a display name into a single NATS subject token:
// lower case, with runs of anything but letters, digits, '-' and '_' as '_'.
func Token(name string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
		if ok {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteByte('_')
			lastSep = true
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
