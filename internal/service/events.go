package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/agentmesh/internal/domain/task"
	"github.com/Strob0t/agentmesh/internal/port/a2a"
	"github.com/Strob0t/agentmesh/internal/port/broadcast"
	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

// eventFanout delivers each task event to the request's own publisher first
// and then to the live observers. Observer delivery never blocks or fails
// the task.
type eventFanout struct {
	agent string
	pub   a2a.Publisher
	hub   broadcast.Broadcaster
}

func (f *eventFanout) publish(ctx context.Context, ev task.Event) { //nolint:gocritic // events are passed by value across the engine
	if f.pub != nil {
		if err := f.pub.Publish(ctx, ev); err != nil {
			slog.WarnContext(ctx, "task event not delivered", "kind", ev.Kind, "state", ev.State, "error", err)
		}
	}
	if f.hub != nil {
		f.hub.BroadcastEvent(ctx, broadcast.EventTaskStatus, TaskEventPayload(f.agent, ev))
	}
}

// TaskEventPayload converts a task event into its observer schema.
func TaskEventPayload(agentName string, ev task.Event) messagequeue.TaskEventPayload { //nolint:gocritic // events are passed by value across the engine
	return messagequeue.TaskEventPayload{
		Agent:     agentName,
		TaskID:    ev.TaskID,
		ContextID: ev.ContextID,
		Kind:      string(ev.Kind),
		State:     string(ev.State),
		Message:   ev.Message,
		Final:     ev.Final,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
