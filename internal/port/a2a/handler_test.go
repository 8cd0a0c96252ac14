package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/agentmesh/internal/domain/agent"
	"github.com/Strob0t/agentmesh/internal/domain/task"
)

// echoExecutor completes every task with the caller's text.
type echoExecutor struct {
	cancelled string
}

func (e *echoExecutor) Execute(ctx context.Context, rc RequestContext, pub Publisher) {
	rec := task.NewRecord(rc.TaskID, rc.ContextID)
	_ = pub.Publish(ctx, rec.AnnounceEvent())
	_ = rec.Start("Echoing...")
	_ = pub.Publish(ctx, rec.StatusEvent())
	_ = rec.Complete(task.Artifact{Name: "response", Parts: []task.Part{task.TextPart(rc.UserInput())}}, "")
	_ = pub.Publish(ctx, rec.StatusEvent())
}

func (e *echoExecutor) Cancel(_ context.Context, taskID string) error {
	e.cancelled = taskID
	return nil
}

func newTestRouter(exec Executor) *chi.Mux {
	d := &agent.Descriptor{
		URL:     "http://127.0.0.1:9001",
		Name:    "Echo",
		Version: "1.0.0",
		Skills:  []agent.Skill{{ID: "echo", Name: "Echo"}},
	}
	h := NewHandler(BuildAgentCard(d), exec)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func rpc(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAgentCard(t *testing.T) {
	r := newTestRouter(&echoExecutor{})
	for _, path := range []string{agent.CardPath, "/.well-known/agent.json"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		d, err := ParseAgentCard("http://127.0.0.1:9001", w.Body.Bytes())
		if err != nil {
			t.Fatalf("%s: parse card: %v", path, err)
		}
		if d.Name != "Echo" || len(d.Skills) != 1 {
			t.Fatalf("%s: unexpected descriptor %+v", path, d)
		}
	}
}

func TestMessageSend(t *testing.T) {
	r := newTestRouter(&echoExecutor{})
	req, err := NewMessageSendRequest("ping")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(req)

	w := rpc(t, r, string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	res := ParseTaskReply(w.Body.Bytes())
	if res.Status != "completed" || res.Outcome != task.OutcomeReported {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.TaskID() == "" {
		t.Error("expected a generated task id")
	}
	if got := res.Text(); got != "ping" {
		t.Errorf("expected artifact text ping, got %q", got)
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0].Name != "response" {
		t.Errorf("expected one artifact named response, got %+v", res.Artifacts)
	}
}

func TestMessageStream(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&echoExecutor{}))
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":7,"method":"message/stream","params":{"message":{"kind":"message","role":"user","messageId":"m1","parts":[{"kind":"text","text":"hi"}]}}}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	var kinds []string
	var last map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			ID     int            `json:"id"`
			Result map[string]any `json:"result"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.ID != 7 {
			t.Errorf("frame id = %d, want 7", frame.ID)
		}
		kinds = append(kinds, frame.Result["kind"].(string))
		last = frame.Result
	}

	want := []string{"task", "status-update", "status-update"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	if last["final"] != true {
		t.Errorf("last event must be final: %v", last)
	}
	status := last["status"].(map[string]any)
	if status["state"] != "completed" {
		t.Errorf("expected completed, got %v", status["state"])
	}
}

func TestTasksCancelIsNotSupported(t *testing.T) {
	exec := &echoExecutor{}
	r := newTestRouter(exec)

	w := rpc(t, r, `{"jsonrpc":"2.0","id":"c1","method":"tasks/cancel","params":{"id":"t-9"}}`)

	var resp struct {
		Error *RPCError `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeTaskNotCancelable {
		t.Fatalf("expected task-not-cancelable error, got %+v", resp.Error)
	}
	if exec.cancelled != "t-9" {
		t.Errorf("executor Cancel not consulted, got %q", exec.cancelled)
	}
}

func TestRPCErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{`, CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"message/send"}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"tasks/resubscribe"}`, CodeMethodNotFound},
		{"no parts", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","parts":[]}}}`, CodeInvalidParams},
		{"tasks get", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"x"}}`, CodeTaskNotFound},
		{"cancel bad params", `{"jsonrpc":"2.0","id":1,"method":"tasks/cancel","params":{"id":7}}`, CodeInvalidParams},
		{"cancel without params", `{"jsonrpc":"2.0","id":1,"method":"tasks/cancel"}`, CodeInvalidParams},
		{"cancel without id", `{"jsonrpc":"2.0","id":1,"method":"tasks/cancel","params":{}}`, CodeInvalidParams},
	}
	r := newTestRouter(&echoExecutor{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := rpc(t, r, tt.body)
			var resp struct {
				Error *RPCError `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("expected code %d, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestRequestContextKeepsCallerIDs(t *testing.T) {
	req := &Request{Params: json.RawMessage(`{"message":{"role":"user","taskId":"t1","contextId":"c1","parts":[{"kind":"text","text":"a"},{"kind":"text","text":"b"}]}}`)}
	rc, err := requestContext(req)
	if err != nil {
		t.Fatal(err)
	}
	if rc.TaskID != "t1" || rc.ContextID != "c1" {
		t.Errorf("ids not kept: %+v", rc)
	}
	if rc.UserInput() != "a\nb" {
		t.Errorf("expected joined text, got %q", rc.UserInput())
	}
}
