package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
)

// DynamicLogger is a zap.Logger whose per-output levels can change at runtime.
// Output layout (console, file) is fixed at construction; only levels move.
type DynamicLogger struct {
	*zap.Logger
	consoleLevel *zap.AtomicLevel
	fileLevel    *zap.AtomicLevel
	target       configtypes.LogConfig
	debugForced  bool
}

// NewLogger builds a logger from the logging block
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	global := parseLogLevel(config.Level)
	dl := &DynamicLogger{target: config}

	var cores []zapcore.Core

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.Console.Level, global))
		dl.consoleLevel = &level
		cores = append(cores, zapcore.NewCore(newEncoder(config.Console.Format), zapcore.Lock(os.Stdout), level))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.File.Level, global))
		dl.fileLevel = &level
		cores = append(cores, zapcore.NewCore(newEncoder(config.File.Format), newRotatingWriter(config.File.Path, config.File.Rotation), level))
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	case 1:
		dl.Logger = zap.New(cores[0])
	default:
		dl.Logger = zap.New(zapcore.NewTee(cores...))
	}

	return dl, nil
}

// NewLoggerWithStartupOverride starts at INFO when the configured level is quieter,
// so the startup sequence is always visible. Call SwitchToConfiguredLevel afterwards.
func NewLoggerWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	if parseLogLevel(config.Level) <= zap.InfoLevel {
		return NewLogger(config)
	}

	startup := config
	startup.Level = configtypes.LogLevelInfo
	if startup.Console.Enabled && startup.Console.Level == "" {
		startup.Console.Level = configtypes.LogLevelInfo
	}
	if startup.File.Enabled && startup.File.Level == "" {
		startup.File.Level = configtypes.LogLevelInfo
	}

	dl, err := NewLogger(startup)
	if err != nil {
		return nil, err
	}
	dl.target = config
	return dl, nil
}

// NewDefaultLogger is the console logger used before configuration is loaded
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

// SetPurgeDebug forces every output down to DEBUG while purge debug tracing is on.
// Takes effect on the next SwitchToConfiguredLevel or Reconfigure.
func (dl *DynamicLogger) SetPurgeDebug(enabled bool) {
	dl.debugForced = enabled
}

// SwitchToConfiguredLevel applies the configured levels
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	dl.Info("Switching logger to configured level",
		zap.String("level", dl.target.Level),
		zap.Bool("purge_debug", dl.debugForced))
	dl.applyLevels()
}

// Reconfigure updates levels from a reloaded logging block. Outputs added or
// removed by the reload are ignored until restart.
func (dl *DynamicLogger) Reconfigure(config configtypes.LogConfig, purgeDebug bool) {
	dl.target = config
	dl.debugForced = purgeDebug
	dl.applyLevels()
}

// EnsureInfoLevelForShutdown lowers quieter outputs to INFO so shutdown logs show
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, lvl := range []*zap.AtomicLevel{dl.consoleLevel, dl.fileLevel} {
		if lvl != nil && lvl.Level() > zap.InfoLevel {
			lvl.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

func (dl *DynamicLogger) applyLevels() {
	global := parseLogLevel(dl.target.Level)

	if dl.consoleLevel != nil {
		dl.consoleLevel.SetLevel(dl.effective(resolveLogLevel(dl.target.Console.Level, global)))
	}
	if dl.fileLevel != nil {
		dl.fileLevel.SetLevel(dl.effective(resolveLogLevel(dl.target.File.Level, global)))
	}
}

func (dl *DynamicLogger) effective(level zapcore.Level) zapcore.Level {
	if dl.debugForced {
		return zap.DebugLevel
	}
	return level
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLogLevel prefers the per-output level over the global one
func resolveLogLevel(outputLevel string, global zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return global
}

func newEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// no ANSI colors in files
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

func newRotatingWriter(path string, rotation configtypes.RotationConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(NewRotatingFile(path, rotation))
}

// NewRotatingFile returns a lumberjack writer for path. Shared with the audit log.
func NewRotatingFile(path string, rotation configtypes.RotationConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	}
}
