package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/agentmesh/internal/port/messagequeue"
)

// fakeQueue records subscriptions and lets tests deliver messages.
type fakeQueue struct {
	handlers map[string]messagequeue.Handler
	order    []string
	stopped  []string
	failOn   string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{handlers: map[string]messagequeue.Handler{}}
}

func (f *fakeQueue) Publish(context.Context, string, []byte) error { return nil }

func (f *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	if subject == f.failOn {
		return nil, errors.New("consumer create failed")
	}
	f.handlers[subject] = h
	f.order = append(f.order, subject)
	return func() { f.stopped = append(f.stopped, subject) }, nil
}

func (f *fakeQueue) Drain() error      { return nil }
func (f *fakeQueue) Close() error      { return nil }
func (f *fakeQueue) IsConnected() bool { return true }

func (f *fakeQueue) deliver(t *testing.T, pattern, subject string, payload any) error {
	t.Helper()
	h, ok := f.handlers[pattern]
	if !ok {
		t.Fatalf("no subscription on %s", pattern)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return h(context.Background(), subject, data)
}

func TestWatchSubjects(t *testing.T) {
	if diff := cmp.Diff([]string{"tasks.events.>", "agents.status.>"}, watchSubjects("")); diff != "" {
		t.Errorf("all agents (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tasks.events.fhir_agent", "agents.status.fhir_agent"}, watchSubjects("FHIR Agent")); diff != "" {
		t.Errorf("one agent (-want +got):\n%s", diff)
	}
}

func TestWatchPrintsEvents(t *testing.T) {
	q := newFakeQueue()
	var out bytes.Buffer

	stop, err := watch(context.Background(), q, "", &out)
	if err != nil {
		t.Fatal(err)
	}

	err = q.deliver(t, "tasks.events.>", "tasks.events.fhir_agent", messagequeue.TaskEventPayload{
		Agent: "FHIR Agent", TaskID: "t1", State: "working", Message: "Working on it",
	})
	if err != nil {
		t.Fatal(err)
	}
	err = q.deliver(t, "tasks.events.>", "tasks.events.fhir_agent", messagequeue.TaskEventPayload{
		Agent: "FHIR Agent", TaskID: "t1", State: "completed", Final: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = q.deliver(t, "agents.status.>", "agents.status.triage_agent", messagequeue.AgentStatusPayload{
		Agent: "Triage Agent", URL: "http://127.0.0.1:10020", Status: "stopped", Error: "listen: address in use",
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "FHIR Agent  task t1  working  Working on it\n" +
		"FHIR Agent  task t1  completed  (final)\n" +
		"Triage Agent  stopped  http://127.0.0.1:10020  listen: address in use\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	stop()
	if diff := cmp.Diff(q.order, q.stopped); diff != "" {
		t.Errorf("not every subscription stopped (-want +got):\n%s", diff)
	}
}

func TestWatchDecodeErrorIsReturned(t *testing.T) {
	q := newFakeQueue()
	if _, err := watch(context.Background(), q, "x", &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	h := q.handlers["tasks.events.x"]
	if err := h(context.Background(), "tasks.events.x", []byte(`{"task_id":1}`)); err == nil {
		t.Fatal("expected decode error so the message is retried")
	}
	if err := h(context.Background(), "other.subject", []byte(`{}`)); err != nil {
		t.Fatalf("unrelated subject: %v", err)
	}
}

func TestWatchSubscribeFailureStopsEarlierSubscriptions(t *testing.T) {
	q := newFakeQueue()
	q.failOn = "agents.status.>"

	if _, err := watch(context.Background(), q, "", &bytes.Buffer{}); err == nil {
		t.Fatal("expected subscribe error")
	}
	if diff := cmp.Diff([]string{"tasks.events.>"}, q.stopped); diff != "" {
		t.Errorf("stopped mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWatchRequiresNATS(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("AGENTMESH_NATS_URL", "")
	err := runWatch([]string{"--config", "does-not-exist.yaml"})
	if err == nil {
		t.Fatal("expected error without a NATS URL")
	}
}
