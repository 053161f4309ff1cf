package queue

import (
	"context"
	"time"
)

// Task is one card awaiting embedding.
type Task struct {
	CardID    uint
	Title     string
	CreatedAt time.Time
}

// TaskQueue hands out cards that still need an embedding. Cards enter the
// queue implicitly at submission (they are created without an embedding) and
// leave it when the vector is written.
type TaskQueue interface {
	// Dequeue fetches the next pending task, or nil when none is available.
	Dequeue(ctx context.Context) (*Task, error)

	// Depth returns the number of pending tasks.
	Depth(ctx context.Context) (int64, error)

	// Wake nudges workers to poll immediately instead of waiting for the
	// next tick. Never blocks.
	Wake()

	// WakeChan is the channel workers select on for wake signals.
	WakeChan() <-chan struct{}
}
