package configtypes

import (
	"fmt"
	"net/url"
	"time"

	"github.com/edgecomet/purgebridge/pkg/types"
)

// Queue backends
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Event kind keys used by purge.purge_on
const (
	EventKindEntrySaved   = "entry_saved"
	EventKindEntryDeleted = "entry_deleted"
	EventKindTermSaved    = "term_saved"
	EventKindTermDeleted  = "term_deleted"
	EventKindAssetSaved   = "asset_saved"
	EventKindAssetDeleted = "asset_deleted"
)

// DefaultAPIBaseURL is the Cloudflare v4 API root
const DefaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

// BridgeConfig is the root configuration for purge-bridge
type BridgeConfig struct {
	BridgeID string        `yaml:"bridge_id"` // Identifier added to every log line
	SiteURL  string        `yaml:"site_url"`  // Base used to make CMS-relative URLs absolute
	Purge    PurgeConfig   `yaml:"purge"`     // Purge behavior and CDN credentials
	Queue    QueueConfig   `yaml:"queue"`     // Deferred purge queue
	Redis    RedisConfig   `yaml:"redis"`     // Required when queue.backend is redis
	HTTPApi  HTTPApiConfig `yaml:"http_api"`  // Event webhook and manual purge API
	Logging  LogConfig     `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Audit    AuditConfig   `yaml:"audit"`
}

// PurgeConfig holds the CDN credentials and the purge decision toggles
type PurgeConfig struct {
	Enabled                 *bool             `yaml:"enabled,omitempty"`
	APIToken                string            `yaml:"api_token"`
	ZoneID                  string            `yaml:"zone_id"`
	Zones                   map[string]string `yaml:"zones,omitempty"` // domain or site key -> zone id
	PurgeOn                 PurgeOnConfig     `yaml:"purge_on"`
	QueuePurge              bool              `yaml:"queue_purge"`
	PurgeURLs               *bool             `yaml:"purge_urls,omitempty"`
	PurgeEverythingFallback *bool             `yaml:"purge_everything_fallback,omitempty"`
	Debug                   bool              `yaml:"debug"`
	APIBaseURL              string            `yaml:"api_base_url,omitempty"`
	RequestTimeout          types.Duration    `yaml:"request_timeout,omitempty"`
	MaxFilesPerRequest      int               `yaml:"max_files_per_request,omitempty"` // Cloudflare accepts 30 files per call
	DebugPayloadLimit       int               `yaml:"debug_payload_limit,omitempty"`   // URLs shown in debug traces
}

// PurgeOnConfig toggles purging per content event kind (nil = enabled)
type PurgeOnConfig struct {
	EntrySaved   *bool `yaml:"entry_saved,omitempty"`
	EntryDeleted *bool `yaml:"entry_deleted,omitempty"`
	TermSaved    *bool `yaml:"term_saved,omitempty"`
	TermDeleted  *bool `yaml:"term_deleted,omitempty"`
	AssetSaved   *bool `yaml:"asset_saved,omitempty"`
	AssetDeleted *bool `yaml:"asset_deleted,omitempty"`
}

// QueueConfig configures deferred purge execution
type QueueConfig struct {
	Backend      string         `yaml:"backend"`       // memory or redis
	MaxSize      int            `yaml:"max_size"`      // memory backend capacity
	PollInterval types.Duration `yaml:"poll_interval"` // worker tick
	BatchSize    int            `yaml:"batch_size"`    // tasks dequeued per tick
	Compression  string         `yaml:"compression"`   // none, snappy, lz4 (redis payloads)
}

// HTTPApiConfig configures the bridge HTTP API
type HTTPApiConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Listen         string         `yaml:"listen"`
	RequestTimeout types.Duration `yaml:"request_timeout"`
	AuthKey        string         `yaml:"auth_key"` // X-Internal-Auth value
}

// PurgeConfigProvider hands out the current configuration snapshot.
// Implementations must be safe for concurrent use; the returned value is read-only.
type PurgeConfigProvider interface {
	GetConfig() *BridgeConfig
}

// StaticProvider serves a fixed configuration
type StaticProvider struct {
	Config *BridgeConfig
}

// GetConfig returns the wrapped configuration
func (p StaticProvider) GetConfig() *BridgeConfig {
	return p.Config
}

// IsEnabled reports the master switch (default true)
func (p *PurgeConfig) IsEnabled() bool {
	return boolOr(p.Enabled, true)
}

// ShouldPurgeURLs reports whether the specific-URL path is enabled (default true)
func (p *PurgeConfig) ShouldPurgeURLs() bool {
	return boolOr(p.PurgeURLs, true)
}

// ShouldFallbackToEverything reports whether full purge is used as fallback (default true)
func (p *PurgeConfig) ShouldFallbackToEverything() bool {
	return boolOr(p.PurgeEverythingFallback, true)
}

// KindEnabled reports whether the given event kind key triggers purging.
// Unknown kinds are never enabled.
func (p *PurgeConfig) KindEnabled(kind string) bool {
	switch kind {
	case EventKindEntrySaved:
		return boolOr(p.PurgeOn.EntrySaved, true)
	case EventKindEntryDeleted:
		return boolOr(p.PurgeOn.EntryDeleted, true)
	case EventKindTermSaved:
		return boolOr(p.PurgeOn.TermSaved, true)
	case EventKindTermDeleted:
		return boolOr(p.PurgeOn.TermDeleted, true)
	case EventKindAssetSaved:
		return boolOr(p.PurgeOn.AssetSaved, true)
	case EventKindAssetDeleted:
		return boolOr(p.PurgeOn.AssetDeleted, true)
	default:
		return false
	}
}

// Timeout returns the outbound request timeout
func (p *PurgeConfig) Timeout() time.Duration {
	return p.RequestTimeout.ToDuration()
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Validate validates purge-bridge configuration.
// Missing api_token / zone_id is not an error here: the purge client reports
// it per request so the bridge can still start and accept events.
func (c *BridgeConfig) Validate() error {
	if c == nil {
		return nil
	}

	if c.SiteURL != "" {
		u, err := url.Parse(c.SiteURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("site_url must be an absolute URL, got '%s'", c.SiteURL)
		}
	}

	if c.Purge.APIBaseURL != "" {
		u, err := url.Parse(c.Purge.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("purge.api_base_url must be an absolute URL, got '%s'", c.Purge.APIBaseURL)
		}
	}

	for domain, zoneID := range c.Purge.Zones {
		if domain == "" {
			return fmt.Errorf("purge.zones contains an empty domain key")
		}
		if zoneID == "" {
			return fmt.Errorf("purge.zones[%s] has an empty zone id", domain)
		}
	}

	if c.Purge.RequestTimeout < 0 {
		return fmt.Errorf("purge.request_timeout must be >= 0")
	}
	if c.Purge.MaxFilesPerRequest < 0 {
		return fmt.Errorf("purge.max_files_per_request must be >= 0, got %d", c.Purge.MaxFilesPerRequest)
	}
	if c.Purge.DebugPayloadLimit < 0 {
		return fmt.Errorf("purge.debug_payload_limit must be >= 0, got %d", c.Purge.DebugPayloadLimit)
	}

	switch c.Queue.Backend {
	case "", QueueBackendMemory:
	case QueueBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be specified when queue.backend is redis")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
		}
	default:
		return fmt.Errorf("queue.backend must be 'memory' or 'redis', got '%s'", c.Queue.Backend)
	}

	switch c.Queue.Compression {
	case "", types.CompressionNone, types.CompressionSnappy, types.CompressionLZ4:
	default:
		return fmt.Errorf("queue.compression must be one of: none, snappy, lz4, got '%s'", c.Queue.Compression)
	}

	if c.Queue.MaxSize < 0 {
		return fmt.Errorf("queue.max_size must be >= 0, got %d", c.Queue.MaxSize)
	}
	if c.Queue.BatchSize < 0 {
		return fmt.Errorf("queue.batch_size must be >= 0, got %d", c.Queue.BatchSize)
	}
	if pi := c.Queue.PollInterval.ToDuration(); pi != 0 && pi < 10*time.Millisecond {
		return fmt.Errorf("queue.poll_interval must be >= 10ms, got %v", pi)
	}

	var httpApiPort int
	if c.HTTPApi.Enabled {
		if c.HTTPApi.Listen == "" {
			return fmt.Errorf("http_api.listen must be specified when enabled")
		}
		port, err := ListenPort(c.HTTPApi.Listen)
		if err != nil {
			return fmt.Errorf("invalid http_api.listen: %w", err)
		}
		httpApiPort = port
		if c.HTTPApi.AuthKey == "" {
			return fmt.Errorf("http_api.auth_key must be specified when http_api is enabled")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen must be specified when enabled")
		}
		port, err := ListenPort(c.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
		if c.HTTPApi.Enabled && port == httpApiPort {
			return fmt.Errorf("metrics.listen port (%d) must differ from http_api.listen port (%d) when both enabled", port, httpApiPort)
		}
	}

	if c.Audit.File.Enabled && c.Audit.File.Path == "" {
		return fmt.Errorf("audit.file.path must be specified when audit file logging is enabled")
	}

	return c.Logging.Validate()
}

// Validate validates logging configuration
func (l *LogConfig) Validate() error {
	validLogLevels := map[string]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	if l.Level != "" && !validLogLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got '%s'", l.Level)
	}

	if l.Console.Enabled && l.Console.Format != "" &&
		l.Console.Format != LogFormatJSON && l.Console.Format != LogFormatConsole {
		return fmt.Errorf("logging.console.format must be 'json' or 'console', got '%s'", l.Console.Format)
	}

	if l.File.Enabled {
		if l.File.Path == "" {
			return fmt.Errorf("logging.file.path must be specified when file logging is enabled")
		}
		if l.File.Format != "" && l.File.Format != LogFormatJSON && l.File.Format != LogFormatText {
			return fmt.Errorf("logging.file.format must be 'json' or 'text', got '%s'", l.File.Format)
		}
		if l.File.Rotation.MaxSize < 0 {
			return fmt.Errorf("logging.file.rotation.max_size must be >= 0, got %d", l.File.Rotation.MaxSize)
		}
		if l.File.Rotation.MaxAge < 0 {
			return fmt.Errorf("logging.file.rotation.max_age must be >= 0, got %d", l.File.Rotation.MaxAge)
		}
		if l.File.Rotation.MaxBackups < 0 {
			return fmt.Errorf("logging.file.rotation.max_backups must be >= 0, got %d", l.File.Rotation.MaxBackups)
		}
	}

	return nil
}
