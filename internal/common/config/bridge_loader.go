package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/yamlutil"
	"github.com/edgecomet/purgebridge/pkg/types"
)

// Environment variables that override the purge block of the config file
const (
	EnvEnabled    = "CLOUDFLARE_CACHE_ENABLED"
	EnvAPIToken   = "CLOUDFLARE_API_TOKEN"
	EnvZoneID     = "CLOUDFLARE_ZONE_ID"
	EnvQueuePurge = "CLOUDFLARE_CACHE_QUEUE_PURGE"
	EnvDebug      = "CLOUDFLARE_CACHE_DEBUG"
)

const (
	defaultRequestTimeout     = 10 * time.Second
	defaultMaxFilesPerRequest = 30
	defaultDebugPayloadLimit  = 10
	defaultQueueMaxSize       = 1000
	defaultQueuePollInterval  = time.Second
	defaultQueueBatchSize     = 10
	defaultAPIRequestTimeout  = 30 * time.Second
	defaultMetricsPath        = "/metrics"
	defaultMetricsNamespace   = "purgebridge"
)

// Compile-time interface satisfaction check
var _ configtypes.PurgeConfigProvider = (*ConfigManager)(nil)

// ConfigManager owns the bridge configuration snapshot.
// Readers get an immutable pointer; Reload swaps it atomically.
type ConfigManager struct {
	config     atomic.Pointer[configtypes.BridgeConfig]
	configPath string
	lookupEnv  func(string) (string, bool)
	logger     *zap.Logger
}

// NewConfigManager loads the configuration at configPath
func NewConfigManager(configPath string, logger *zap.Logger) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: configPath,
		lookupEnv:  os.LookupEnv,
		logger:     logger,
	}

	if err := cm.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// NewStaticConfigManager wraps an already built configuration (tests, embedding)
func NewStaticConfigManager(cfg *configtypes.BridgeConfig, logger *zap.Logger) *ConfigManager {
	cm := &ConfigManager{lookupEnv: os.LookupEnv, logger: logger}
	cm.config.Store(cfg)
	return cm
}

// Reload re-reads the config file. On error the previous snapshot stays active.
func (cm *ConfigManager) Reload() error {
	if cm.configPath == "" {
		return fmt.Errorf("config manager has no config path")
	}

	cfg, err := loadBridgeConfig(cm.configPath, cm.lookupEnv)
	if err != nil {
		return err
	}

	cm.config.Store(cfg)

	cm.logger.Info("Purge bridge configuration loaded",
		zap.String("path", cm.configPath),
		zap.String("bridge_id", cfg.BridgeID),
		zap.Bool("enabled", cfg.Purge.IsEnabled()),
		zap.Bool("queue_purge", cfg.Purge.QueuePurge),
		zap.Int("zones", len(cfg.Purge.Zones)))

	cm.emitConfigWarnings(cfg)
	return nil
}

// GetConfig returns the current configuration (read-only)
func (cm *ConfigManager) GetConfig() *configtypes.BridgeConfig {
	return cm.config.Load()
}

// LoadBridgeConfig loads, overrides from the environment, defaults and validates
// the configuration file at path.
func LoadBridgeConfig(path string, logger *zap.Logger) (*configtypes.BridgeConfig, error) {
	logger.Info("Loading purge-bridge configuration", zap.String("path", path))
	return loadBridgeConfig(path, os.LookupEnv)
}

func loadBridgeConfig(path string, lookupEnv func(string) (string, bool)) (*configtypes.BridgeConfig, error) {
	var cfg configtypes.BridgeConfig
	if err := yamlutil.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(&cfg, lookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides lets deployments keep secrets and toggles out of the file
func applyEnvOverrides(cfg *configtypes.BridgeConfig, lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv(EnvAPIToken); ok && v != "" {
		cfg.Purge.APIToken = v
	}
	if v, ok := lookupEnv(EnvZoneID); ok && v != "" {
		cfg.Purge.ZoneID = v
	}

	if v, ok := lookupEnv(EnvEnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvEnabled, v, err)
		}
		cfg.Purge.Enabled = configtypes.BoolPtr(b)
	}
	if v, ok := lookupEnv(EnvQueuePurge); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvQueuePurge, v, err)
		}
		cfg.Purge.QueuePurge = b
	}
	if v, ok := lookupEnv(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvDebug, v, err)
		}
		cfg.Purge.Debug = b
	}

	return nil
}

// ApplyDefaults fills zero values with bridge defaults
func ApplyDefaults(cfg *configtypes.BridgeConfig) {
	// If both outputs are disabled (zero values), enable console by default
	if !cfg.Logging.Console.Enabled && !cfg.Logging.File.Enabled {
		cfg.Logging.Console.Enabled = true
	}
	if cfg.Logging.Console.Format == "" {
		cfg.Logging.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Logging.File.Format == "" {
		cfg.Logging.File.Format = configtypes.LogFormatText
	}

	if cfg.Purge.APIBaseURL == "" {
		cfg.Purge.APIBaseURL = configtypes.DefaultAPIBaseURL
	}
	if cfg.Purge.RequestTimeout == 0 {
		cfg.Purge.RequestTimeout = types.Duration(defaultRequestTimeout)
	}
	if cfg.Purge.MaxFilesPerRequest == 0 {
		cfg.Purge.MaxFilesPerRequest = defaultMaxFilesPerRequest
	}
	if cfg.Purge.DebugPayloadLimit == 0 {
		cfg.Purge.DebugPayloadLimit = defaultDebugPayloadLimit
	}

	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = configtypes.QueueBackendMemory
	}
	if cfg.Queue.MaxSize == 0 {
		cfg.Queue.MaxSize = defaultQueueMaxSize
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = types.Duration(defaultQueuePollInterval)
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = defaultQueueBatchSize
	}
	if cfg.Queue.Compression == "" {
		cfg.Queue.Compression = types.CompressionNone
	}

	if cfg.HTTPApi.RequestTimeout == 0 {
		cfg.HTTPApi.RequestTimeout = types.Duration(defaultAPIRequestTimeout)
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaultMetricsNamespace
	}
}

// emitConfigWarnings logs non-fatal configuration concerns
func (cm *ConfigManager) emitConfigWarnings(cfg *configtypes.BridgeConfig) {
	if cfg.Purge.APIToken == "" || (cfg.Purge.ZoneID == "" && len(cfg.Purge.Zones) == 0) {
		cm.logger.Warn("purge.api_token or purge.zone_id not configured (every purge request will fail)",
			zap.Bool("has_token", cfg.Purge.APIToken != ""),
			zap.String("zone_id", cfg.Purge.ZoneID))
	}
	if !cfg.Purge.ShouldPurgeURLs() && !cfg.Purge.ShouldFallbackToEverything() {
		cm.logger.Warn("purge.purge_urls and purge.purge_everything_fallback are both disabled (events will never purge)")
	}
}
