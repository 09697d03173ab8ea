package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
)

func fileOnlyConfig(path, level, format string) configtypes.LogConfig {
	return configtypes.LogConfig{
		Level: level,
		File: configtypes.FileLogConfig{
			Enabled: true,
			Path:    path,
			Format:  format,
		},
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := NewLogger(configtypes.LogConfig{
		Level:   configtypes.LogLevelInfo,
		Console: configtypes.ConsoleLogConfig{Enabled: true, Format: configtypes.LogFormatConsole},
	})
	require.NoError(t, err)
	require.NotNil(t, logger.consoleLevel)
	assert.Nil(t, logger.fileLevel)

	logger.Info("console logging")
}

func TestNewLogger_ConsoleAndFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bridge.log")

	cfg := fileOnlyConfig(logPath, configtypes.LogLevelInfo, configtypes.LogFormatJSON)
	cfg.Console = configtypes.ConsoleLogConfig{Enabled: true, Format: configtypes.LogFormatJSON}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger.consoleLevel)
	require.NotNil(t, logger.fileLevel)

	logger.Info("purge dispatched", zap.String("zone_id", "z1"))
	// Syncing stdout fails with EINVAL when it is a pipe (go test); the file is written unbuffered
	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"zone_id":"z1"`)
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger(configtypes.LogConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one log output")

	_, err = NewLogger(configtypes.LogConfig{File: configtypes.FileLogConfig{Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file.path must be specified")
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		contains []string
		excludes []string
	}{
		{"debug", []string{"debug message", "info message"}, nil},
		{"info", []string{"info message", "warn message"}, []string{"debug message"}},
		{"warn", []string{"warn message"}, []string{"debug message", "info message"}},
		{"error", []string{"error message"}, []string{"info message", "warn message"}},
		{"bogus", []string{"info message"}, []string{"debug message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "level.log")
			logger, err := NewLogger(fileOnlyConfig(logPath, tt.level, configtypes.LogFormatJSON))
			require.NoError(t, err)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")
			_ = logger.Sync()

			content, err := os.ReadFile(logPath)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, string(content), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, string(content), s)
			}
		})
	}
}

func TestNewLogger_TextFormatHasNoColorCodes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "text.log")
	logger, err := NewLogger(fileOnlyConfig(logPath, configtypes.LogLevelInfo, configtypes.LogFormatText))
	require.NoError(t, err)

	logger.Warn("zone purge failed")
	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "WARN")
	assert.NotContains(t, string(content), "\x1b[")
}

func TestResolveLogLevel(t *testing.T) {
	assert.Equal(t, zap.WarnLevel, resolveLogLevel("warn", zap.DebugLevel))
	assert.Equal(t, zap.DebugLevel, resolveLogLevel("", zap.DebugLevel))
	assert.Equal(t, zapcore.InfoLevel, resolveLogLevel("nonsense", zap.ErrorLevel))
}

func TestStartupOverride_ThenConfiguredLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "startup.log")
	logger, err := NewLoggerWithStartupOverride(fileOnlyConfig(logPath, configtypes.LogLevelError, configtypes.LogFormatJSON))
	require.NoError(t, err)

	assert.Equal(t, zap.InfoLevel, logger.fileLevel.Level())

	logger.SwitchToConfiguredLevel()
	assert.Equal(t, zap.ErrorLevel, logger.fileLevel.Level())
}

func TestSetPurgeDebug_ForcesDebug(t *testing.T) {
	logger, err := NewLogger(configtypes.LogConfig{
		Level:   configtypes.LogLevelWarn,
		Console: configtypes.ConsoleLogConfig{Enabled: true, Format: configtypes.LogFormatConsole},
	})
	require.NoError(t, err)

	logger.SetPurgeDebug(true)
	logger.SwitchToConfiguredLevel()
	assert.Equal(t, zap.DebugLevel, logger.consoleLevel.Level())

	logger.SetPurgeDebug(false)
	logger.SwitchToConfiguredLevel()
	assert.Equal(t, zap.WarnLevel, logger.consoleLevel.Level())
}

func TestReconfigure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "reload.log")
	cfg := fileOnlyConfig(logPath, configtypes.LogLevelInfo, configtypes.LogFormatJSON)
	cfg.Console = configtypes.ConsoleLogConfig{Enabled: true, Level: configtypes.LogLevelError}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, zap.InfoLevel, logger.fileLevel.Level())
	assert.Equal(t, zap.ErrorLevel, logger.consoleLevel.Level())

	reloaded := cfg
	reloaded.Level = configtypes.LogLevelWarn
	logger.Reconfigure(reloaded, false)
	assert.Equal(t, zap.WarnLevel, logger.fileLevel.Level())
	assert.Equal(t, zap.ErrorLevel, logger.consoleLevel.Level(), "per-output level wins")

	logger.Reconfigure(reloaded, true)
	assert.Equal(t, zap.DebugLevel, logger.fileLevel.Level())
	assert.Equal(t, zap.DebugLevel, logger.consoleLevel.Level())
}

func TestEnsureInfoLevelForShutdown(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "shutdown.log")
	cfg := fileOnlyConfig(logPath, configtypes.LogLevelError, configtypes.LogFormatText)
	cfg.Console = configtypes.ConsoleLogConfig{Enabled: true, Level: configtypes.LogLevelDebug}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.EnsureInfoLevelForShutdown()
	assert.Equal(t, zap.InfoLevel, logger.fileLevel.Level())
	assert.Equal(t, zap.DebugLevel, logger.consoleLevel.Level(), "more verbose levels are left alone")
}

func TestNewRotatingFile(t *testing.T) {
	w := NewRotatingFile("/var/log/audit.log", configtypes.RotationConfig{MaxSize: 5, MaxBackups: 2, Compress: true})
	assert.Equal(t, "/var/log/audit.log", w.Filename)
	assert.Equal(t, 5, w.MaxSize)
	assert.Equal(t, 2, w.MaxBackups)
	assert.True(t, w.Compress)
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, logger.consoleLevel.Level())
}
