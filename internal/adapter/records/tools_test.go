package records_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/agentmesh/internal/adapter/records"
)

func TestToolNames(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", false)
	want := []string{records.ToolFindPatient, records.ToolSearchResources, records.ToolWriteResource}
	if diff := cmp.Diff(want, c.Tools().Names()); diff != "" {
		t.Errorf("tool names mismatch (-want +got):\n%s", diff)
	}
}

func TestFindPatient(t *testing.T) {
	_, srv := newFHIRServer(t)
	tools := newClient(t, srv.URL, false).Tools()
	find, _ := tools.Lookup(records.ToolFindPatient)
	ctx := context.Background()

	out, err := find.Call(ctx, map[string]string{"id": "1"})
	if err != nil || !strings.Contains(out, `"id":"1"`) {
		t.Fatalf("by id: %q, %v", out, err)
	}

	out, err = find.Call(ctx, map[string]string{"family": "Doe"})
	if err != nil || !strings.Contains(out, `"searchset"`) {
		t.Fatalf("by demographics: %q, %v", out, err)
	}

	if _, err := find.Call(ctx, map[string]string{}); err == nil {
		t.Fatal("expected error without id or search fields")
	}
}

func TestSearchAndWriteTools(t *testing.T) {
	fs, srv := newFHIRServer(t)
	tools := newClient(t, srv.URL, false).Tools()
	ctx := context.Background()

	search, _ := tools.Lookup(records.ToolSearchResources)
	if _, err := search.Call(ctx, map[string]string{"resource_type": "Observation", "query": "patient=1&code=8867-4"}); err == nil {
		t.Fatal("expected 404 from the fake server")
	}
	if n := fs.hitCount("GET Observation?code=8867-4&patient=1"); n != 1 {
		t.Errorf("search sent %d times with sorted query, want 1", n)
	}

	write, _ := tools.Lookup(records.ToolWriteResource)
	out, err := write.Call(ctx, map[string]string{"resource": `{"resourceType":"Encounter","status":"planned"}`})
	if err != nil || !strings.Contains(out, `"Encounter"`) {
		t.Fatalf("write: %q, %v", out, err)
	}
}
