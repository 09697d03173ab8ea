package queue

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/purge/job"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

const defaultPollInterval = time.Second

// TaskRunner executes one dequeued task
type TaskRunner interface {
	Run(ctx context.Context, task job.Task)
}

// Worker drains the queue on a fixed tick
type Worker struct {
	queue        Queue
	runner       TaskRunner
	pollInterval time.Duration
	batchSize    int
	metrics      *metrics.Collector
	logger       *zap.Logger

	lastTick  atomic.Int64 // unix nanos
	processed atomic.Int64
}

func NewWorker(q Queue, runner TaskRunner, pollInterval time.Duration, batchSize int, collector *metrics.Collector, logger *zap.Logger) *Worker {
	if batchSize < 1 {
		batchSize = 1
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{
		queue:        q,
		runner:       runner,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		metrics:      collector,
		logger:       logger,
	}
}

// Run is the worker loop. It returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("Purge worker started",
		zap.String("backend", w.queue.Name()),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("batch_size", w.batchSize))

	for {
		select {
		case <-ticker.C:
			w.lastTick.Store(time.Now().UnixNano())
			w.ProcessBatch(ctx)

		case <-ctx.Done():
			w.logger.Info("Purge worker shutdown requested")
			return
		}
	}
}

// ProcessBatch dequeues up to batch_size tasks and runs them in order.
// Returns the number of tasks run. A task already started finishes even if
// ctx is cancelled meanwhile (the client timeout bounds it); tasks not yet
// started when ctx is cancelled are put back.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	tasks, err := w.queue.Dequeue(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to dequeue purge tasks", zap.Error(err))
		return 0
	}

	runCtx := context.WithoutCancel(ctx)
	ran := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			w.requeue(task)
			continue
		}
		w.runner.Run(runCtx, task)
		ran++
	}
	w.processed.Add(int64(ran))

	w.updateDepth(context.WithoutCancel(ctx))

	if ran > 0 {
		w.logger.Debug("Processed purge tasks", zap.Int("count", ran))
	}
	return ran
}

// Drain runs batches until the queue is empty or ctx expires
func (w *Worker) Drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n := w.ProcessBatch(ctx)
		if n == 0 {
			break
		}
		total += n
	}
	if total > 0 {
		w.logger.Info("Drained purge queue", zap.Int("tasks", total))
	}
	return total
}

// LastTick returns the time of the most recent tick, zero before the first
func (w *Worker) LastTick() time.Time {
	ns := w.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Processed returns the number of tasks handed to the runner
func (w *Worker) Processed() int64 {
	return w.processed.Load()
}

func (w *Worker) requeue(task job.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.queue.Enqueue(ctx, task); err != nil {
		w.logger.Warn("Failed to requeue purge task on shutdown",
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}

func (w *Worker) updateDepth(ctx context.Context) {
	depth, err := w.queue.Depth(ctx)
	if err != nil {
		w.logger.Debug("Failed to read queue depth", zap.Error(err))
		return
	}
	w.metrics.SetQueueDepth(depth)
}
