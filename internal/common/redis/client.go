package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
)

// Client wraps go-redis with error logging for the queue operations the bridge needs
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
	addr   string
}

func NewClient(cfg *configtypes.RedisConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// go-redis defaults for timeouts and pool size
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	client := &Client{rdb: rdb, logger: logger, addr: cfg.Addr}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Debug("Redis client connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		c.logger.Error("Redis ping failed", zap.String("addr", c.addr), zap.Error(err))
		return err
	}
	if result != "PONG" {
		c.logger.Error("Redis ping returned unexpected response", zap.String("response", result))
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}

// AddPending stores payload under member in hashKey and schedules member in the
// zsetKey sorted set, in one MULTI/EXEC. Returns false when member was already pending;
// the stored payload is refreshed in that case.
func (c *Client) AddPending(ctx context.Context, zsetKey, hashKey, member string, score float64, payload []byte) (bool, error) {
	var zadd *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hashKey, member, payload)
		zadd = pipe.ZAddNX(ctx, zsetKey, redis.Z{Score: score, Member: member})
		return nil
	})
	if err != nil {
		c.logger.Error("Redis HSET+ZADD NX transaction failed",
			zap.String("zset", zsetKey),
			zap.String("member", member),
			zap.Error(err))
		return false, fmt.Errorf("redis add pending failed: %w", err)
	}
	return zadd.Val() > 0, nil
}

// ZPopMin removes and returns up to count members with the lowest scores
func (c *Client) ZPopMin(ctx context.Context, key string, count int64) ([]redis.Z, error) {
	result, err := c.rdb.ZPopMin(ctx, key, count).Result()
	if err != nil {
		c.logger.Error("Redis ZPOPMIN failed",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Error(err))
		return nil, fmt.Errorf("redis zpopmin failed: %w", err)
	}
	return result, nil
}

// ZCard returns the number of members in a sorted set
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	result, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		c.logger.Error("Redis ZCARD failed", zap.String("key", key), zap.Error(err))
		return 0, fmt.Errorf("redis zcard failed: %w", err)
	}
	return result, nil
}

// HTake reads and deletes hash fields in one MULTI/EXEC.
// Missing fields come back as nil entries at the same index.
func (c *Client) HTake(ctx context.Context, key string, fields ...string) ([][]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	var gets *redis.SliceCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		gets = pipe.HMGet(ctx, key, fields...)
		pipe.HDel(ctx, key, fields...)
		return nil
	})
	if err != nil && err != redis.Nil {
		c.logger.Error("Redis HMGET+HDEL transaction failed",
			zap.String("key", key),
			zap.Int("fields", len(fields)),
			zap.Error(err))
		return nil, fmt.Errorf("redis take failed: %w", err)
	}

	out := make([][]byte, len(fields))
	for i, v := range gets.Val() {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
		return err
	}
	c.logger.Debug("Redis client closed")
	return nil
}
