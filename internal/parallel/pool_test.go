package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(3)
	var ran int64
	for i := 0; i < 20; i++ {
		if err := pool.Submit(context.Background(), func() { atomic.AddInt64(&ran, 1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	pool.Shutdown()

	if ran != 20 {
		t.Fatalf("expected all 20 tasks to run, got %d", ran)
	}
	stats := pool.Stats()
	if stats.Submitted != 20 || stats.Completed != 20 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestWorkerPoolRecoversPanickingTask(t *testing.T) {
	pool := NewWorkerPool(1)
	if err := pool.Submit(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := pool.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pool.Shutdown()

	stats := pool.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failed task, got %d", stats.Failed)
	}
	if stats.Completed != 1 {
		t.Fatalf("expected 1 completed task, got %d", stats.Completed)
	}
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	err := pool.Submit(context.Background(), func() {})
	if !errors.Is(err, ErrPoolShutdown) {
		t.Fatalf("expected ErrPoolShutdown, got %v", err)
	}
}

func TestWorkerPoolSubmitRespectsContextCancellation(t *testing.T) {
	// A single-worker pool with its worker kept busy so the task queue
	// (capacity 1) fills, forcing the next Submit to block on ctx.
	pool := NewWorkerPool(1)
	block := make(chan struct{})
	if err := pool.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := pool.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	close(block)
	pool.Shutdown()
}

func TestNewWorkerPoolDefaultsNonPositive(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Shutdown()
	if err := pool.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
