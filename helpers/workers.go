package helpers

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Workers bounds how many blocking calls run at once. Requests queue for a
// slot and the blocking call runs on the requesting goroutine once it has one.
type Workers struct {
	size  int64
	slots *semaphore.Weighted
}

// NewWorkers returns a pool with n slots
func NewWorkers(n int) *Workers {
	if n < 1 {
		n = 1
	}

	return &Workers{
		size:  int64(n),
		slots: semaphore.NewWeighted(int64(n)),
	}
}

// Size is the number of slots
func (w *Workers) Size() int {
	return int(w.size)
}

// Do runs fn once a slot is free. Only the wait for a slot honours ctx; once
// started fn runs to completion.
func (w *Workers) Do(ctx context.Context, fn func() error) error {
	if err := w.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a worker: %w", err)
	}
	defer w.slots.Release(1)

	return fn()
}

// Run is Do for functions that return a value
func Run[T any](ctx context.Context, w *Workers, fn func() (T, error)) (T, error) {
	var result T
	err := w.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
