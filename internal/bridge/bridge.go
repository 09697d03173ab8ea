// Package bridge wires the purge components into a long-running service.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/metricsserver"
	"github.com/edgecomet/purgebridge/internal/common/redis"
	"github.com/edgecomet/purgebridge/internal/purge/audit"
	"github.com/edgecomet/purgebridge/internal/purge/cfclient"
	"github.com/edgecomet/purgebridge/internal/purge/engine"
	"github.com/edgecomet/purgebridge/internal/purge/job"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
	"github.com/edgecomet/purgebridge/internal/purge/queue"
)

// ConfigSource serves the configuration snapshot and can re-read it
type ConfigSource interface {
	configtypes.PurgeConfigProvider
	Reload() error
}

// Bridge is the purge-bridge service
type Bridge struct {
	config    ConfigSource
	logger    *zap.Logger
	startTime time.Time

	metrics *metrics.Collector
	audit   audit.Emitter
	client  *cfclient.Client
	redis   *redis.Client
	queue   queue.Queue
	worker  *queue.Worker
	engine  *engine.Engine

	metricsServer *fasthttp.Server

	workerCancel context.CancelFunc
	workerDone   chan struct{}
	stopOnce     sync.Once
}

// New builds every component from the current configuration. Nothing is
// started: call Start to run the worker and metrics server.
func New(source ConfigSource, logger *zap.Logger) (*Bridge, error) {
	if source == nil {
		return nil, fmt.Errorf("config source is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg := source.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)

	emitter, err := audit.New(cfg.Audit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit emitter: %w", err)
	}

	client := cfclient.New(source, logger,
		cfclient.WithMetrics(collector),
		cfclient.WithAudit(emitter))

	var rdb *redis.Client
	if cfg.Queue.Backend == configtypes.QueueBackendRedis {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			_ = emitter.Close()
			return nil, err
		}
	}

	q, err := queue.New(cfg, rdb, collector, logger)
	if err != nil {
		_ = emitter.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	runner := job.NewRunner(source, client, collector, logger)
	worker := queue.NewWorker(q, runner, cfg.Queue.PollInterval.ToDuration(), cfg.Queue.BatchSize, collector, logger)

	return &Bridge{
		config:    source,
		logger:    logger,
		startTime: time.Now().UTC(),
		metrics:   collector,
		audit:     emitter,
		client:    client,
		redis:     rdb,
		queue:     q,
		worker:    worker,
		engine:    engine.New(source, client, q, collector, logger),
	}, nil
}

// Start launches the metrics server and the queue worker
func (b *Bridge) Start(ctx context.Context) error {
	cfg := b.config.GetConfig()

	server, err := metricsserver.Start(cfg.Metrics, b.metrics, b.logger)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	b.metricsServer = server

	workerCtx, cancel := context.WithCancel(ctx)
	b.workerCancel = cancel
	b.workerDone = make(chan struct{})
	go func() {
		defer close(b.workerDone)
		b.worker.Run(workerCtx)
	}()

	b.logger.Info("Purge bridge components started",
		zap.String("queue_backend", b.queue.Name()),
		zap.Bool("queue_purge", cfg.Purge.QueuePurge),
		zap.Bool("metrics", server != nil))
	return nil
}

// Shutdown stops the worker, runs what is left in an in-memory queue while
// ctx allows, then closes the metrics server, audit log and Redis client.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() {
		if b.workerCancel != nil {
			b.workerCancel()
			select {
			case <-b.workerDone:
			case <-ctx.Done():
				b.logger.Warn("Purge worker did not stop before shutdown deadline")
			}
		}

		// Redis tasks survive a restart; memory ones do not
		if b.queue.Name() == configtypes.QueueBackendMemory {
			b.worker.Drain(ctx)
		}

		if b.metricsServer != nil {
			if err := b.metricsServer.ShutdownWithContext(ctx); err != nil {
				b.logger.Error("Metrics server shutdown error", zap.Error(err))
			}
		}

		if err := b.audit.Close(); err != nil {
			b.logger.Error("Failed to close audit log", zap.Error(err))
		}

		if b.redis != nil {
			if err := b.redis.Close(); err != nil {
				b.logger.Error("Failed to close Redis client", zap.Error(err))
			}
		}

		b.logger.Info("Purge bridge shutdown complete")
	})
	return nil
}

// Reload re-reads configuration. Purge settings, credentials and zones apply
// to the next event; queue backend and listeners need a restart.
func (b *Bridge) Reload() (*configtypes.BridgeConfig, error) {
	prev := b.config.GetConfig()
	if err := b.config.Reload(); err != nil {
		return prev, err
	}
	cfg := b.config.GetConfig()

	if prev != nil && prev.Queue.Backend != cfg.Queue.Backend {
		b.logger.Warn("queue.backend change requires a restart",
			zap.String("active", prev.Queue.Backend),
			zap.String("configured", cfg.Queue.Backend))
	}
	if prev != nil && (prev.HTTPApi.Listen != cfg.HTTPApi.Listen || prev.Metrics.Listen != cfg.Metrics.Listen) {
		b.logger.Warn("Listener address changes require a restart")
	}
	return cfg, nil
}

// HandleEvent runs one content event through the decision engine
func (b *Bridge) HandleEvent(ctx context.Context, ev engine.Event) engine.Decision {
	return b.engine.Handle(ctx, ev)
}

// Purge runs an operator purge
func (b *Bridge) Purge(ctx context.Context, req PurgeRequest) (PurgeResult, error) {
	return ManualPurge(ctx, b.config.GetConfig(), b.client, req)
}

// Config returns the active configuration snapshot
func (b *Bridge) Config() *configtypes.BridgeConfig {
	return b.config.GetConfig()
}

// Metrics exposes the collector (tests, embedding)
func (b *Bridge) Metrics() *metrics.Collector {
	return b.metrics
}
