package a2a

import (
	"bytes"
	"encoding/json"
	"strings"

	a2ago "github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// StatusUnknown is reported when a reply carries no status at all.
const StatusUnknown = string(a2ago.TaskStateUnknown)

// ParseTaskReply flattens a task-creation reply into a task.Result.
//
// Accepted shapes: a JSON-RPC envelope with the task under "result", a bare
// task object, a JSON-RPC error envelope, or a direct message reply. The
// status may be a string or an object with a "state" field. Artifacts default
// to an empty list. ParseTaskReply never fails: anything it cannot read
// becomes task.ErrorResult().
func ParseTaskReply(body []byte) *task.Result {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		return task.ErrorResult()
	}

	if raw, ok := top["error"]; ok && !isNull(raw) {
		return remoteError(raw)
	}

	obj := top
	if raw, ok := top["result"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil || inner == nil {
			return task.ErrorResult()
		}
		obj = inner
	}

	if kindOf(obj) == "message" {
		return messageReply(obj)
	}

	res := &task.Result{Artifacts: []task.Artifact{}, Outcome: task.OutcomeReported}

	if raw, ok := obj["id"]; ok && !isNull(raw) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return task.ErrorResult()
		}
		res.ID = &id
	}

	status, message, ok := parseStatus(obj["status"])
	if !ok {
		return task.ErrorResult()
	}
	res.Status = status
	res.Message = message

	if raw, ok := obj["artifacts"]; ok && !isNull(raw) {
		arts, ok := parseArtifacts(raw)
		if !ok {
			return task.ErrorResult()
		}
		res.Artifacts = arts
	}

	if status == string(a2ago.TaskStateFailed) {
		res.Outcome = task.OutcomeRemoteFailed
	}
	return res
}

// parseStatus accepts a bare state string or a status object. A missing
// status, or an object without a state, is reported as unknown.
func parseStatus(raw json.RawMessage) (state, message string, ok bool) {
	if len(raw) == 0 || isNull(raw) {
		return StatusUnknown, "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, "", true
	}
	var obj struct {
		State   *string  `json:"state"`
		Message *Message `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", "", false
	}
	state = StatusUnknown
	if obj.State != nil {
		state = *obj.State
	}
	if obj.Message != nil {
		message = obj.Message.Text()
	}
	return state, message, true
}

// wireArtifact accepts parts with either a "kind" or a legacy "type" tag.
type wireArtifact struct {
	Name  string `json:"name"`
	Parts []struct {
		Kind string  `json:"kind"`
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"parts"`
}

func parseArtifacts(raw json.RawMessage) ([]task.Artifact, bool) {
	var in []wireArtifact
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false
	}
	out := make([]task.Artifact, 0, len(in))
	for _, a := range in {
		parts := make([]task.Part, 0, len(a.Parts))
		for _, p := range a.Parts {
			kind := p.Kind
			if kind == "" {
				kind = p.Type
			}
			parts = append(parts, task.Part{Kind: kind, Text: p.Text})
		}
		out = append(out, task.Artifact{Name: a.Name, Parts: parts})
	}
	return out, true
}

// messageReply treats a direct message answer as a completed task whose
// single artifact holds the message parts.
func messageReply(obj map[string]json.RawMessage) *task.Result {
	raw, _ := json.Marshal(obj)
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return task.ErrorResult()
	}
	res := &task.Result{
		Status:    string(a2ago.TaskStateCompleted),
		Artifacts: []task.Artifact{{Name: "message", Parts: m.Parts}},
		Outcome:   task.OutcomeReported,
	}
	if m.TaskID != "" {
		id := m.TaskID
		res.ID = &id
	}
	if res.Artifacts[0].Parts == nil {
		res.Artifacts[0].Parts = []task.Part{}
	}
	return res
}

func remoteError(raw json.RawMessage) *task.Result {
	var e RPCError
	if err := json.Unmarshal(raw, &e); err != nil {
		return task.ErrorResult()
	}
	return &task.Result{
		Status:    task.StatusError,
		Message:   strings.TrimSpace(e.Message),
		Artifacts: []task.Artifact{},
		Outcome:   task.OutcomeRemoteError,
	}
}

func kindOf(obj map[string]json.RawMessage) string {
	var k string
	if raw, ok := obj["kind"]; ok {
		_ = json.Unmarshal(raw, &k)
	}
	return k
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
