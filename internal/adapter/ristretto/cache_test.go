package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/agentmesh/internal/adapter/ristretto"
)

func TestCacheSetGetDelete(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "Patient/1", []byte(`{"resourceType":"Patient","id":"1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, "Patient/1")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if string(val) != `{"resourceType":"Patient","id":"1"}` {
		t.Fatalf("unexpected value %s", val)
	}

	if err := c.Delete(ctx, "Patient/1"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "Patient/1"); found {
		t.Fatal("expected miss after Delete")
	}
}

func TestCacheMiss(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, found, err := c.Get(context.Background(), "Observation/404"); found || err != nil {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
}

func TestNewClampsSize(t *testing.T) {
	c, err := ristretto.New(0)
	if err != nil {
		t.Fatalf("New(0): %v", err)
	}
	c.Close()
}
