package a2a

import (
	"context"
	"sync"

	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// RequestContext is one inbound task request.
type RequestContext struct {
	TaskID    string
	ContextID string
	Message   Message
}

// UserInput returns the caller's text.
func (rc *RequestContext) UserInput() string {
	return rc.Message.Text()
}

// Publisher receives a task's status stream in publication order.
type Publisher interface {
	Publish(ctx context.Context, ev task.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev task.Event) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, ev task.Event) error { //nolint:gocritic // events are passed by value across the engine
	return f(ctx, ev)
}

// Executor drives inbound tasks to a terminal state.
// Execute reports every outcome through pub and never returns an error.
type Executor interface {
	Execute(ctx context.Context, rc RequestContext, pub Publisher)
	Cancel(ctx context.Context, taskID string) error
}

// TaskCollector folds a status stream into the latest task snapshot.
// It backs the non-streaming message/send reply.
type TaskCollector struct {
	mu     sync.Mutex
	task   Task
	events []task.Event
}

// Publish implements Publisher.
func (c *TaskCollector) Publish(_ context.Context, ev task.Event) error { //nolint:gocritic // events are passed by value across the engine
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, ev)
	c.task.Kind = string(task.EventKindTask)
	c.task.ID = ev.TaskID
	c.task.ContextID = ev.ContextID
	c.task.Status = wireStatus(&ev)
	if len(ev.Artifacts) > 0 {
		c.task.Artifacts = wireArtifacts(ev.TaskID, ev.Artifacts)
	}
	return nil
}

// Task returns the folded snapshot.
func (c *TaskCollector) Task() Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task
}

// Events returns every event seen, in order.
func (c *TaskCollector) Events() []task.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]task.Event(nil), c.events...)
}
