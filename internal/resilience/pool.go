package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrPoolTimeout is returned when no slot became free within the acquire budget.
var ErrPoolTimeout = errors.New("timed out waiting for a free slot")

// Pool limits concurrent operations using a weighted semaphore.
// Outbound delegations and reasoning calls each go through a shared Pool
// so a burst of tasks cannot exhaust sockets or model quota.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewPool creates a Pool that allows at most limit concurrent operations.
// A positive acquireTimeout bounds how long callers wait for a slot.
func NewPool(limit int, acquireTimeout time.Duration) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), timeout: acquireTimeout}
}

// Acquire waits for a slot and returns its release func.
// It returns ErrPoolTimeout when the acquire budget runs out and ctx.Err()
// when the caller's context ends first.
// If the pool is nil, Acquire succeeds immediately.
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	if p == nil || p.sem == nil {
		return func() {}, nil
	}
	actx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.sem.Acquire(actx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrPoolTimeout, p.timeout)
	}
	return func() { p.sem.Release(1) }, nil
}

// Run acquires a slot, runs fn, and releases the slot.
// If the pool is nil, fn is executed directly without concurrency control.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
