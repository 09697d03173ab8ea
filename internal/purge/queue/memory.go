package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/purge/job"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

// MemoryQueue is a thread-safe bounded in-process FIFO
type MemoryQueue struct {
	mu      sync.Mutex
	entries []job.Task
	pending map[string]struct{} // fingerprints of queued tasks
	maxSize int
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewMemoryQueue(maxSize int, collector *metrics.Collector, logger *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		entries: make([]job.Task, 0, min(maxSize, 64)),
		pending: make(map[string]struct{}),
		maxSize: maxSize,
		metrics: collector,
		logger:  logger,
	}
}

func (q *MemoryQueue) Name() string { return "memory" }

// Enqueue appends task unless an identical task is already pending.
// Returns ErrQueueFull at capacity.
func (q *MemoryQueue) Enqueue(_ context.Context, task job.Task) error {
	fp := task.Fingerprint()

	q.mu.Lock()
	if _, dup := q.pending[fp]; dup {
		q.mu.Unlock()
		q.metrics.RecordTask(StatusDeduplicated)
		q.logger.Debug("Identical purge task already queued",
			zap.String("task_id", task.ID),
			zap.String("fingerprint", fp))
		return nil
	}
	if len(q.entries) >= q.maxSize {
		q.mu.Unlock()
		q.metrics.RecordTask(StatusRejected)
		return ErrQueueFull
	}
	q.entries = append(q.entries, task)
	q.pending[fp] = struct{}{}
	q.mu.Unlock()

	q.metrics.RecordTask(StatusEnqueued)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context, n int) ([]job.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 || n <= 0 {
		return nil, nil
	}
	n = min(n, len(q.entries))

	out := make([]job.Task, n)
	copy(out, q.entries[:n])
	q.entries = q.entries[n:]
	for _, t := range out {
		delete(q.pending, t.Fingerprint())
	}
	return out, nil
}

func (q *MemoryQueue) Depth(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}
