package broadcast

import (
	"context"
	"testing"
)

type recorder struct{ types []string }

func (r *recorder) BroadcastEvent(_ context.Context, eventType string, _ any) {
	r.types = append(r.types, eventType)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, b, Nop{}}

	m.BroadcastEvent(context.Background(), EventTaskStatus, nil)

	if len(a.types) != 1 || len(b.types) != 1 || a.types[0] != EventTaskStatus {
		t.Fatalf("unexpected fan-out: a=%v b=%v", a.types, b.types)
	}
}
