// Package broadcast defines the port for fanning task and agent events out
// to live observers (WebSocket clients, message queue subscribers).
package broadcast

import "context"

// Event types carried by BroadcastEvent.
const (
	EventTaskStatus  = "task.status"
	EventAgentStatus = "agent.status"
)

// Broadcaster sends real-time events to all connected observers.
// Implementations must not block the caller on slow observers.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected observers.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Multi fans an event out to every non-nil Broadcaster in order.
type Multi []Broadcaster

// BroadcastEvent implements Broadcaster.
func (m Multi) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(ctx, eventType, payload)
		}
	}
}

// Nop discards every event.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}
