// Package concurrency provides the shared bounded-parallelism primitives
// (C14) the lifecycle engine and recovery layer run on: a counting
// Semaphore, parallelMap for fanning a function out across a slice with
// a concurrency cap, and small timing helpers for the "race a deadline"
// pattern the spec's timeout semantics call for. Adapted from the
// teacher's Semaphore/ConcurrencyLimiter/ParallelExecutor
// (leeforge-framework/concurrency/pool.go); the teacher's WorkerPool,
// RateLimiter, TaskQueue, Future, and AsyncExecutor machinery addressed
// HTTP request-queueing concerns this kernel has no use for and were
// dropped rather than forced into service (see DESIGN.md).
package concurrency

import (
	"context"
	"sync"
	"time"
)

// Semaphore bounds the number of concurrent holders.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a Semaphore allowing up to capacity concurrent
// holders. capacity < 1 is treated as 1 (fully sequential).
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free.
func (s *Semaphore) Acquire() { s.slots <- struct{}{} }

// AcquireContext blocks until a slot is free or ctx is done.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot.
func (s *Semaphore) Release() { <-s.slots }

// WithSemaphore runs fn holding one slot, releasing it afterward.
func (s *Semaphore) WithSemaphore(fn func()) {
	s.Acquire()
	defer s.Release()
	fn()
}

// ParallelMap runs fn over every element of items with at most
// concurrency goroutines in flight at once, and returns results in
// input order. A concurrency of 1 runs fully sequentially, which is the
// lifecycle engine's and the resolver's default.
func ParallelMap[T any, R any](items []T, concurrency int, fn func(T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	sem := NewSemaphore(concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		sem.Acquire()
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release()
			results[i] = fn(item)
		}(i, item)
	}
	wg.Wait()
	return results
}

// ParallelMapErr is ParallelMap's error-collecting counterpart: fn may
// fail per item, and all per-item errors are returned in input order
// (nil where fn succeeded).
func ParallelMapErr[T any](items []T, concurrency int, fn func(T) error) []error {
	return ParallelMap(items, concurrency, fn)
}

// RunWithTimeout races fn against a deadline, modeling the spec's "race
// a deadline promise against the operation" semantics: fn is not
// forcibly aborted on timeout, the caller simply stops waiting for its
// result and the goroutine is abandoned (best-effort; fn should itself
// respect ctx when it can).
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(runCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		return runCtx.Err()
	}
}
