// Package a2a defines the agent-to-agent wire protocol: JSON-RPC envelopes,
// task and message shapes, reply normalization and the HTTP handler every
// agent service mounts.
package a2a

import (
	"encoding/json"
	"strings"
	"time"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// JSON-RPC methods served by every agent.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
)

// JSON-RPC error codes, including the A2A task codes.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeTaskNotFound      = -32001
	CodeTaskNotCancelable = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// Role of a message author.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a single conversational turn.
type Message struct {
	Kind      string      `json:"kind"`
	Role      string      `json:"role"`
	Parts     []task.Part `json:"parts"`
	MessageID string      `json:"messageId"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
}

// Text joins the message's text parts with newlines.
func (m *Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Kind == task.PartKindText && p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MessageSendParams are the params of message/send and message/stream.
type MessageSendParams struct {
	Message Message `json:"message"`
}

// TaskIDParams are the params of tasks/get and tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// NewUserMessage builds a single-part user text message with a fresh id.
// The message id is a dashless UUID.
func NewUserMessage(text string) Message {
	return Message{
		Kind:      "message",
		Role:      RoleUser,
		Parts:     []task.Part{task.TextPart(text)},
		MessageID: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// NewMessageSendRequest wraps text in a message/send request with a fresh id.
func NewMessageSendRequest(text string) (*Request, error) {
	params, err := json.Marshal(MessageSendParams{Message: NewUserMessage(text)})
	if err != nil {
		return nil, err
	}
	id, _ := json.Marshal(uuid.NewString())
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  MethodMessageSend,
		Params:  params,
	}, nil
}

// TaskStatus is the status block of a task.
type TaskStatus struct {
	State     a2ago.TaskState `json:"state"`
	Message   *Message        `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Artifact is a task output on the wire.
type Artifact struct {
	ArtifactID string      `json:"artifactId"`
	Name       string      `json:"name,omitempty"`
	Parts      []task.Part `json:"parts"`
}

// Task is the wire representation of a task snapshot.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// StatusUpdateEvent is one streamed status change. Terminal updates carry
// the task's artifacts.
type StatusUpdateEvent struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// WireState maps a task state onto the protocol's state names.
func WireState(s task.State) a2ago.TaskState {
	switch s {
	case task.StateSubmitted:
		return a2ago.TaskStateSubmitted
	case task.StateWorking:
		return a2ago.TaskStateWorking
	case task.StateCompleted:
		return a2ago.TaskStateCompleted
	case task.StateFailed:
		return a2ago.TaskStateFailed
	}
	return a2ago.TaskStateUnknown
}

func wireStatus(ev *task.Event) TaskStatus {
	st := TaskStatus{State: WireState(ev.State)}
	if !ev.Timestamp.IsZero() {
		st.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if ev.Message != "" {
		st.Message = &Message{
			Kind:      "message",
			Role:      RoleAgent,
			Parts:     []task.Part{task.TextPart(ev.Message)},
			MessageID: uuid.NewString(),
			TaskID:    ev.TaskID,
			ContextID: ev.ContextID,
		}
	}
	return st
}

func wireArtifacts(taskID string, in []task.Artifact) []Artifact {
	if len(in) == 0 {
		return nil
	}
	out := make([]Artifact, len(in))
	for i, a := range in {
		out[i] = Artifact{
			ArtifactID: taskID + "-" + a.Name,
			Name:       a.Name,
			Parts:      a.Parts,
		}
	}
	return out
}

// EventToWire converts a status stream event into its protocol object:
// a Task for the announcement, a StatusUpdateEvent otherwise.
func EventToWire(ev task.Event) any { //nolint:gocritic // events are passed by value across the engine
	if ev.Kind == task.EventKindTask {
		return Task{
			Kind:      string(task.EventKindTask),
			ID:        ev.TaskID,
			ContextID: ev.ContextID,
			Status:    wireStatus(&ev),
			Artifacts: wireArtifacts(ev.TaskID, ev.Artifacts),
		}
	}
	return StatusUpdateEvent{
		Kind:      string(task.EventKindStatus),
		TaskID:    ev.TaskID,
		ContextID: ev.ContextID,
		Status:    wireStatus(&ev),
		Final:     ev.Final,
		Artifacts: wireArtifacts(ev.TaskID, ev.Artifacts),
	}
}
