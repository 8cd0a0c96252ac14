package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/agentmesh/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L1
	l1.data["Patient/1"] = []byte("val1")

	val, found, err := c.Get(ctx, "Patient/1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "val1" {
		t.Fatalf("expected val1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L2
	l2.data["Patient/2"] = []byte("val2")

	val, found, err := c.Get(ctx, "Patient/2")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != "val2" {
		t.Fatalf("expected val2, got %s", val)
	}

	// Verify backfill into L1
	l1Val, ok := l1.data["Patient/2"]
	if !ok {
		t.Fatal("expected L1 backfill")
	}
	if string(l1Val) != "val2" {
		t.Fatalf("expected backfilled val2, got %s", l1Val)
	}
}

func TestTiered_Miss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "Observation/3", []byte("val3"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["Observation/3"]; !ok {
		t.Fatal("expected Observation/3 in L1")
	}
	if _, ok := l2.data["Observation/3"]; !ok {
		t.Fatal("expected Observation/3 in L2")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["Observation/4"] = []byte("val4")
	l2.data["Observation/4"] = []byte("val4")

	if err := c.Delete(ctx, "Observation/4"); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["Observation/4"]; ok {
		t.Fatal("expected Observation/4 deleted from L1")
	}
	if _, ok := l2.data["Observation/4"]; ok {
		t.Fatal("expected Observation/4 deleted from L2")
	}
}

func TestTiered_SetCapsL1TTL(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "Patient/5", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if l1.ttls["Patient/5"] != time.Minute {
		t.Errorf("L1 ttl = %s, want 1m", l1.ttls["Patient/5"])
	}
	if l2.ttls["Patient/5"] != time.Hour {
		t.Errorf("L2 ttl = %s, want 1h", l2.ttls["Patient/5"])
	}
}

func TestTiered_L2ReadErrorIsMiss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.err = errors.New("nats: no responders")
	c := tiered.New(l1, l2, time.Minute)

	_, found, err := c.Get(context.Background(), "Patient/6")
	if err != nil {
		t.Fatalf("L2 outage must not fail reads: %v", err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_L2WriteErrorKeepsL1(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.err = errors.New("nats: timeout")
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "Patient/7", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected L2 write error")
	}
	if _, ok := l1.data["Patient/7"]; !ok {
		t.Fatal("L1 should hold the value even when L2 fails")
	}
}

func TestTiered_L1Only(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, nil, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "Patient/8", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "Patient/8"); !found {
		t.Fatal("expected L1 hit")
	}
	if _, found, _ := c.Get(ctx, "Patient/9"); found {
		t.Fatal("expected miss")
	}
	if err := c.Delete(ctx, "Patient/8"); err != nil {
		t.Fatal(err)
	}
}
