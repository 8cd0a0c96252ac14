package task

import (
	"github.com/Strob0t/agentmesh/internal/domain"
)

// Outcome classifies how a delegation reply was obtained.
type Outcome string

const (
	// OutcomeReported means the remote reported a task state other than failed.
	OutcomeReported Outcome = "reported"
	// OutcomeRemoteFailed means the remote reported the task as failed.
	OutcomeRemoteFailed Outcome = "remote_failed"
	// OutcomeRemoteError means the remote answered with a protocol error object.
	OutcomeRemoteError Outcome = "remote_error"
	// OutcomeParseError means the reply could not be parsed locally.
	OutcomeParseError Outcome = "parse_error"
)

// StatusError is the status label of a result whose reply could not be used.
const StatusError = "error"

// Result is the caller's flattened view of a delegated task.
// Status is always a flat label, never a nested object.
type Result struct {
	ID        *string    `json:"id,omitempty"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Artifacts []Artifact `json:"artifacts"`
	Outcome   Outcome    `json:"outcome"`
}

// ErrorResult is the safe default for a reply that could not be parsed.
func ErrorResult() *Result {
	return &Result{Status: StatusError, Artifacts: []Artifact{}, Outcome: OutcomeParseError}
}

// TaskID returns the remote task id or "" when absent.
func (r *Result) TaskID() string {
	if r.ID == nil {
		return ""
	}
	return *r.ID
}

// Text returns the first text part of the first artifact carrying one.
func (r *Result) Text() string {
	for i := range r.Artifacts {
		for _, p := range r.Artifacts[i].Parts {
			if p.Text != nil {
				return *p.Text
			}
		}
	}
	return ""
}

// Err converts a remote failure into a delegation error. It returns nil for
// every other outcome, including local parse failures.
func (r *Result) Err(url string) error {
	if r.Outcome != OutcomeRemoteFailed {
		return nil
	}
	var cause error
	if r.Message != "" {
		cause = remoteMessage(r.Message)
	}
	return domain.NewDelegationError("create_task", url, domain.ErrDelegationFailure, cause)
}

type remoteMessage string

func (m remoteMessage) Error() string { return string(m) }
