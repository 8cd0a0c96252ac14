package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// BroadcastEvent marshals a typed event and queues it for the clients
// watching the agent it belongs to.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.broadcast(ctx, agentOf(payload), Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

func agentOf(payload any) string {
	switch p := payload.(type) {
	case messagequeue.TaskEventPayload:
		return p.Agent
	case messagequeue.AgentStatusPayload:
		return p.Agent
	}
	return ""
}
