package job

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

// Purger is the part of the purge client a task needs
type Purger interface {
	PurgeURLs(ctx context.Context, urls []string) bool
	PurgeEverything(ctx context.Context) bool
}

// Task lifecycle statuses recorded in tasks_total
const (
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusPanicked = "panicked"
)

// Runner executes dequeued tasks. It never returns an error: the queue does
// not retry, so every failure ends here as a log line and a metric.
type Runner struct {
	provider configtypes.PurgeConfigProvider
	purger   Purger
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewRunner(provider configtypes.PurgeConfigProvider, purger Purger, collector *metrics.Collector, logger *zap.Logger) *Runner {
	return &Runner{
		provider: provider,
		purger:   purger,
		metrics:  collector,
		logger:   logger,
	}
}

// Run executes task. The enable flag is read again here because the
// configuration may have changed since the task was queued.
func (r *Runner) Run(ctx context.Context, task Task) {
	log := r.logger.With(zap.String("task_id", task.ID), zap.String("action", task.Kind()))

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordTask(StatusPanicked)
			log.Error("Purge task panicked",
				zap.String("panic", fmt.Sprint(rec)),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	cfg := r.provider.GetConfig()
	if cfg == nil || !cfg.Purge.IsEnabled() {
		r.metrics.RecordTask(StatusSkipped)
		log.Debug("Purging disabled, skipping queued task")
		return
	}

	var ok bool
	switch {
	case task.Everything:
		ok = r.purger.PurgeEverything(ctx)
	case len(task.URLs) > 0:
		ok = r.purger.PurgeURLs(ctx, task.URLs)
	default:
		r.metrics.RecordTask(StatusSkipped)
		log.Debug("Queued task carries nothing to purge")
		return
	}

	if ok {
		r.metrics.RecordTask(StatusExecuted)
		log.Debug("Purge task completed",
			zap.Int("urls", len(task.URLs)),
			zap.Duration("queued_for", time.Since(task.EnqueuedAt)))
		return
	}

	r.metrics.RecordTask(StatusFailed)
	log.Warn("Purge task failed", zap.Int("urls", len(task.URLs)))
}
