package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/redis"
	"github.com/edgecomet/purgebridge/internal/purge/metrics"
)

// New builds the queue selected by cfg.Queue.Backend.
// rdb is required for the redis backend and ignored otherwise.
func New(cfg *configtypes.BridgeConfig, rdb *redis.Client, collector *metrics.Collector, logger *zap.Logger) (Queue, error) {
	switch cfg.Queue.Backend {
	case "", configtypes.QueueBackendMemory:
		return NewMemoryQueue(cfg.Queue.MaxSize, collector, logger), nil
	case configtypes.QueueBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis client is required for the redis queue backend")
		}
		keys := redis.NewKeyGenerator(cfg.Redis.KeyPrefix)
		return NewRedisQueue(rdb, keys, cfg.Queue.Compression, collector, logger), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.Queue.Backend)
	}
}
