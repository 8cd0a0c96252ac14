// Package task defines the Task domain entities: the server-side execution
// record, its status events and the client-side delegation result.
package task

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a task record.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// rank orders states so transitions can only move forward.
func (s State) rank() int {
	switch s {
	case StateSubmitted:
		return 0
	case StateWorking:
		return 1
	case StateCompleted, StateFailed:
		return 2
	}
	return -1
}

// PartKindText is the kind of a plain text part.
const PartKindText = "text"

// Part is one piece of an artifact. Text is nil for non-text kinds.
type Part struct {
	Kind string  `json:"kind"`
	Text *string `json:"text,omitempty"`
}

// TextPart returns a text part holding s.
func TextPart(s string) Part {
	return Part{Kind: PartKindText, Text: &s}
}

// Artifact is a named output payload attached to a task.
type Artifact struct {
	Name  string `json:"name,omitempty"`
	Parts []Part `json:"parts"`
}

// Record is a task owned by the execution engine for one execution cycle.
type Record struct {
	ID            string     `json:"id"`
	ContextID     string     `json:"context_id"`
	State         State      `json:"state"`
	StatusMessage string     `json:"status_message,omitempty"`
	Artifacts     []Artifact `json:"artifacts"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewRecord creates a record in the submitted state.
func NewRecord(id, contextID string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        id,
		ContextID: contextID,
		State:     StateSubmitted,
		Artifacts: []Artifact{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition moves the record forward. Backward moves, self-loops and moves
// out of a terminal state are rejected.
func (r *Record) transition(to State, message string) error {
	if r.State.Terminal() {
		return fmt.Errorf("task %s: %s is terminal", r.ID, r.State)
	}
	if to.rank() <= r.State.rank() {
		return fmt.Errorf("task %s: invalid transition %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	r.StatusMessage = message
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Start moves a submitted task to working.
func (r *Record) Start(message string) error {
	return r.transition(StateWorking, message)
}

// Complete attaches the single output artifact and finishes the task.
func (r *Record) Complete(artifact Artifact, message string) error {
	if r.State != StateWorking {
		return fmt.Errorf("task %s: cannot complete from %s", r.ID, r.State)
	}
	if err := r.transition(StateCompleted, message); err != nil {
		return err
	}
	r.Artifacts = []Artifact{artifact}
	return nil
}

// Fail finishes the task as failed. Allowed from submitted or working.
func (r *Record) Fail(message string) error {
	return r.transition(StateFailed, message)
}

// EventKind distinguishes the first task announcement from status updates.
type EventKind string

const (
	EventKindTask   EventKind = "task"
	EventKindStatus EventKind = "status-update"
)

// Event is one entry of a task's status stream.
type Event struct {
	Kind      EventKind  `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	State     State      `json:"state"`
	Message   string     `json:"message,omitempty"`
	Final     bool       `json:"final"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// AnnounceEvent returns the event announcing the record's existence.
func (r *Record) AnnounceEvent() Event {
	return Event{
		Kind:      EventKindTask,
		TaskID:    r.ID,
		ContextID: r.ContextID,
		State:     r.State,
		Message:   r.StatusMessage,
		Timestamp: r.UpdatedAt,
	}
}

// StatusEvent returns a status update for the record's current state.
// Terminal states are always final and carry the record's artifacts.
func (r *Record) StatusEvent() Event {
	ev := Event{
		Kind:      EventKindStatus,
		TaskID:    r.ID,
		ContextID: r.ContextID,
		State:     r.State,
		Message:   r.StatusMessage,
		Final:     r.State.Terminal(),
		Timestamp: r.UpdatedAt,
	}
	if ev.Final && len(r.Artifacts) > 0 {
		ev.Artifacts = r.Artifacts
	}
	return ev
}
