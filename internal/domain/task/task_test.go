package task

import (
	"errors"
	"testing"

	"github.com/Strob0t/agentmesh/internal/domain"
)

func TestRecordHappyPath(t *testing.T) {
	r := NewRecord("t1", "c1")
	if r.State != StateSubmitted {
		t.Fatalf("expected submitted, got %s", r.State)
	}
	if err := r.Start("Processing request..."); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Complete(Artifact{Name: "response", Parts: []Part{TextPart("done")}}, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if r.State != StateCompleted {
		t.Fatalf("expected completed, got %s", r.State)
	}
	if len(r.Artifacts) != 1 || r.Artifacts[0].Name != "response" {
		t.Fatalf("expected one artifact named response, got %+v", r.Artifacts)
	}
}

func TestRecordTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		name string
		run  func(r *Record) error
	}{
		{"complete from submitted", func(r *Record) error {
			return r.Complete(Artifact{}, "")
		}},
		{"start twice", func(r *Record) error {
			_ = r.Start("")
			return r.Start("")
		}},
		{"fail after complete", func(r *Record) error {
			_ = r.Start("")
			_ = r.Complete(Artifact{}, "")
			return r.Fail("late")
		}},
		{"start after fail", func(r *Record) error {
			_ = r.Fail("boom")
			return r.Start("")
		}},
		{"fail twice", func(r *Record) error {
			_ = r.Fail("boom")
			return r.Fail("again")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(NewRecord("t", "c")); err == nil {
				t.Error("expected transition error")
			}
		})
	}
}

func TestRecordFailFromSubmitted(t *testing.T) {
	r := NewRecord("t", "c")
	if err := r.Fail("Error: no slot"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if r.State != StateFailed || r.StatusMessage != "Error: no slot" {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestEvents(t *testing.T) {
	r := NewRecord("t", "c")
	ann := r.AnnounceEvent()
	if ann.Kind != EventKindTask || ann.State != StateSubmitted || ann.Final {
		t.Fatalf("unexpected announce event %+v", ann)
	}

	_ = r.Start("working on it")
	ev := r.StatusEvent()
	if ev.Kind != EventKindStatus || ev.State != StateWorking || ev.Final || ev.Message != "working on it" {
		t.Fatalf("unexpected working event %+v", ev)
	}

	_ = r.Complete(Artifact{Name: "response", Parts: []Part{TextPart("ok")}}, "")
	ev = r.StatusEvent()
	if !ev.Final || ev.State != StateCompleted || len(ev.Artifacts) != 1 {
		t.Fatalf("unexpected terminal event %+v", ev)
	}
}

func TestResultText(t *testing.T) {
	r := &Result{Artifacts: []Artifact{
		{Parts: []Part{{Kind: "data"}}},
		{Parts: []Part{TextPart("pong")}},
	}}
	if got := r.Text(); got != "pong" {
		t.Errorf("Text() = %q, want pong", got)
	}
	if got := ErrorResult().Text(); got != "" {
		t.Errorf("Text() of error result = %q", got)
	}
}

func TestResultErr(t *testing.T) {
	ok := &Result{Status: "completed", Outcome: OutcomeReported}
	if err := ok.Err("http://a"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := ErrorResult().Err("http://a"); err != nil {
		t.Errorf("parse errors must not surface as delegation failures: %v", err)
	}

	failed := &Result{Status: "failed", Message: "Error: boom", Outcome: OutcomeRemoteFailed}
	err := failed.Err("http://a")
	if !errors.Is(err, domain.ErrDelegationFailure) {
		t.Fatalf("expected ErrDelegationFailure, got %v", err)
	}
}

func TestStateTerminal(t *testing.T) {
	if StateSubmitted.Terminal() || StateWorking.Terminal() {
		t.Error("non-terminal state reported terminal")
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("terminal state not reported terminal")
	}
}
