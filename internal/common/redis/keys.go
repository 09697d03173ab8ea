package redis

const defaultKeyPrefix = "purge"

// KeyGenerator builds the Redis keys used by the deferred purge queue.
// Bridges sharing a Redis instance keep separate queues by using different prefixes.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator returns a generator for prefix ("purge" when empty)
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &KeyGenerator{prefix: prefix}
}

// QueueKey is the ZSET of pending task fingerprints scored by enqueue time.
// Format: {prefix}:queue
func (kg *KeyGenerator) QueueKey() string {
	return kg.prefix + ":queue"
}

// PayloadKey is the HASH of fingerprint -> encoded task.
// Format: {prefix}:tasks
func (kg *KeyGenerator) PayloadKey() string {
	return kg.prefix + ":tasks"
}
