package queue

import (
	"context"

	"imagine-service/internal/domain/model"
)

// TaskQueue decouples request intake from provider submission. Delivery is
// at least once: a dequeued task stays parked until Ack, so a worker that
// dies mid-task leaves the task recoverable, and Recover requeues whatever
// is still parked.
//
// The queue is an injected dependency with an explicit lifecycle, never a
// package-level singleton.
type TaskQueue interface {
	Enqueue(ctx context.Context, task model.DispatchTask) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*model.DispatchTask, error)
	// Ack removes a previously dequeued task from the parking area.
	Ack(ctx context.Context, task *model.DispatchTask) error
	// Recover moves every parked task back onto the queue for redelivery.
	// Run at startup, before consumers, so nothing in flight is doubled.
	Recover(ctx context.Context) (int, error)
	Close() error
}
