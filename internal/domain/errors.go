// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidURL indicates an agent URL that cannot be normalized.
var ErrInvalidURL = errors.New("invalid agent url")

// Delegation error kinds. A *DelegationError matches its kind with errors.Is.
var (
	// ErrUnreachableAgent covers connect, DNS, timeout and non-2xx transport failures.
	ErrUnreachableAgent = errors.New("agent unreachable")
	// ErrMalformedDescriptor means the agent card could not be parsed.
	ErrMalformedDescriptor = errors.New("malformed agent descriptor")
	// ErrMalformedResponse means a task reply could not be parsed.
	ErrMalformedResponse = errors.New("malformed task response")
	// ErrDelegationFailure means the remote agent reported a failed task.
	ErrDelegationFailure = errors.New("delegated task failed")
	// ErrCapability means the reasoning capability returned an error.
	ErrCapability = errors.New("reasoning capability failed")
)

// DelegationError describes a failed call to a remote agent.
type DelegationError struct {
	Op   string // "delegate", "fetch_card" or "create_task"
	URL  string
	Kind error
	Err  error
}

func (e *DelegationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DelegationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDelegationError wraps err with the given kind.
func NewDelegationError(op, url string, kind, err error) *DelegationError {
	return &DelegationError{Op: op, URL: url, Kind: kind, Err: err}
}
