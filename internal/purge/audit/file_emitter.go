package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
	"github.com/edgecomet/purgebridge/internal/common/logger"
)

// Rotation defaults applied when the corresponding setting is zero
const (
	DefaultMaxSize    = 50 // MB
	DefaultMaxAge     = 30 // days
	DefaultMaxBackups = 10 // files
)

// FileEmitter appends formatted records to a rotated file
type FileEmitter struct {
	writer    *lumberjack.Logger
	formatter *TemplateFormatter
	logger    *zap.Logger
}

// NewFileEmitter creates the parent directory and validates the template
func NewFileEmitter(cfg configtypes.AuditFileConfig, log *zap.Logger) (*FileEmitter, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory %s: %w", dir, err)
	}

	template := cfg.Template
	if template == "" {
		template = DefaultTemplate
	}
	formatter, err := NewTemplateFormatter(template)
	if err != nil {
		return nil, fmt.Errorf("invalid template for audit log %s: %w", cfg.Path, err)
	}

	rotation := cfg.Rotation
	if rotation.MaxSize == 0 {
		rotation.MaxSize = DefaultMaxSize
	}
	if rotation.MaxAge == 0 {
		rotation.MaxAge = DefaultMaxAge
	}
	if rotation.MaxBackups == 0 {
		rotation.MaxBackups = DefaultMaxBackups
	}

	return &FileEmitter{
		writer:    logger.NewRotatingFile(cfg.Path, rotation),
		formatter: formatter,
		logger:    log,
	}, nil
}

// New returns a FileEmitter when audit.file is enabled, otherwise a NoopEmitter
func New(cfg configtypes.AuditConfig, log *zap.Logger) (Emitter, error) {
	if !cfg.File.Enabled {
		return NoopEmitter{}, nil
	}
	return NewFileEmitter(cfg.File, log)
}

func (f *FileEmitter) Emit(rec *Record) {
	line := f.formatter.Format(rec)
	if _, err := f.writer.Write([]byte(line + "\n")); err != nil {
		f.logger.Warn("Failed to write purge audit record",
			zap.String("zone_id", rec.ZoneID),
			zap.String("action", rec.Action),
			zap.Error(err))
	}
}

func (f *FileEmitter) Close() error {
	return f.writer.Close()
}
