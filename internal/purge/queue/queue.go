// Package queue stores deferred purge tasks until the worker runs them.
//
// Two backends exist: an in-process bounded FIFO (lost on restart) and a
// Redis sorted set shared by every bridge pointed at the same Redis. Both
// collapse a task into an identical one that is already pending.
package queue

import (
	"context"
	"errors"

	"github.com/edgecomet/purgebridge/internal/purge/job"
)

// ErrQueueFull is returned by Enqueue when the memory backend is at capacity
var ErrQueueFull = errors.New("purge queue is full")

// Task statuses recorded on enqueue
const (
	StatusEnqueued     = "enqueued"
	StatusDeduplicated = "deduplicated"
	StatusRejected     = "rejected"
)

// Queue is a FIFO of purge tasks
type Queue interface {
	job.Enqueuer
	// Dequeue removes and returns up to n tasks, oldest first
	Dequeue(ctx context.Context, n int) ([]job.Task, error)
	// Depth returns the number of pending tasks
	Depth(ctx context.Context) (int, error)
	// Name identifies the backend in logs and status output
	Name() string
}
