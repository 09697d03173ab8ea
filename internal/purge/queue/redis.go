package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/redis"
	"github.com/edgecomet/purgebridge/internal/purge/job"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

// RedisQueue keeps pending task fingerprints in a ZSET scored by enqueue time
// and the encoded tasks in a HASH keyed by fingerprint.
// Dequeue pops from the ZSET before the task runs, so a crash between pop
// and execution drops that task.
type RedisQueue struct {
	client      *redis.Client
	keys        *redis.KeyGenerator
	compression string
	metrics     *metrics.Collector
	logger      *zap.Logger
}

func NewRedisQueue(client *redis.Client, keys *redis.KeyGenerator, compression string, collector *metrics.Collector, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:      client,
		keys:        keys,
		compression: compression,
		metrics:     collector,
		logger:      logger,
	}
}

func (q *RedisQueue) Name() string { return "redis" }

func (q *RedisQueue) Enqueue(ctx context.Context, task job.Task) error {
	payload, err := job.Encode(task, q.compression)
	if err != nil {
		q.metrics.RecordTask(StatusRejected)
		return err
	}

	enqueuedAt := task.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	score := float64(enqueuedAt.UnixMilli())

	fp := task.Fingerprint()
	added, err := q.client.AddPending(ctx, q.keys.QueueKey(), q.keys.PayloadKey(), fp, score, payload)
	if err != nil {
		q.metrics.RecordTask(StatusRejected)
		return fmt.Errorf("failed to enqueue purge task: %w", err)
	}

	if !added {
		q.metrics.RecordTask(StatusDeduplicated)
		q.logger.Debug("Identical purge task already queued",
			zap.String("task_id", task.ID),
			zap.String("fingerprint", fp))
		return nil
	}

	q.metrics.RecordTask(StatusEnqueued)
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, n int) ([]job.Task, error) {
	if n <= 0 {
		return nil, nil
	}

	popped, err := q.client.ZPopMin(ctx, q.keys.QueueKey(), int64(n))
	if err != nil {
		return nil, fmt.Errorf("failed to pop purge tasks: %w", err)
	}
	if len(popped) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(popped))
	for _, z := range popped {
		if member, ok := z.Member.(string); ok {
			fields = append(fields, member)
		}
	}

	payloads, err := q.client.HTake(ctx, q.keys.PayloadKey(), fields...)
	if err != nil {
		return nil, fmt.Errorf("failed to load purge task payloads: %w", err)
	}

	tasks := make([]job.Task, 0, len(payloads))
	for i, data := range payloads {
		if data == nil {
			q.logger.Warn("Queued purge task has no payload", zap.String("fingerprint", fields[i]))
			continue
		}
		task, err := job.Decode(data)
		if err != nil {
			q.logger.Error("Failed to decode queued purge task",
				zap.String("fingerprint", fields[i]),
				zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.keys.QueueKey())
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
