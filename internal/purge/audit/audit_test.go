package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/common/configtypes"
)

func sampleRecord() *Record {
	return &Record{
		Timestamp:  time.Date(2025, 3, 4, 10, 20, 30, 123_000_000, time.UTC),
		BridgeID:   "bridge-1",
		ZoneID:     "Z1",
		Action:     "purge_urls",
		Success:    false,
		Kind:       "api",
		StatusCode: 200,
		FilesCount: 3,
		Duration:   1500 * time.Millisecond,
		Error:      "1012: \"files\" invalid",
	}
}

func TestTemplateFormatter_Default(t *testing.T) {
	f, err := NewTemplateFormatter(DefaultTemplate)
	require.NoError(t, err)

	line := f.Format(sampleRecord())
	assert.Equal(t, "2025-03-04T10:20:30.123Z\t\"Z1\"\t\"purge_urls\"\tfailure\t3\t1.500\t\"1012: \\\"files\\\" invalid\"", line)
}

func TestTemplateFormatter_Fields(t *testing.T) {
	f, err := NewTemplateFormatter("[{bridge_id}] {kind} {status_code} {status}")
	require.NoError(t, err)

	rec := sampleRecord()
	rec.Success = true
	rec.Kind = "ok"
	assert.Equal(t, `["bridge-1"] "ok" 200 success`, f.Format(rec))

	rec.BridgeID = ""
	assert.Equal(t, `[-] "ok" 200 success`, f.Format(rec))
}

func TestTemplateFormatter_NoPlaceholders(t *testing.T) {
	f, err := NewTemplateFormatter("static line")
	require.NoError(t, err)
	assert.Equal(t, "static line", f.Format(sampleRecord()))
}

func TestTemplateFormatter_Errors(t *testing.T) {
	tests := []struct {
		template string
		wantErr  string
	}{
		{"", "template cannot be empty"},
		{"{zone_id", "unclosed placeholder"},
		{"{} x", "empty placeholder"},
		{"{url}", "unknown placeholder {url}"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			_, err := NewTemplateFormatter(tt.template)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFileEmitter_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")

	em, err := NewFileEmitter(configtypes.AuditFileConfig{
		Enabled:  true,
		Path:     path,
		Template: "{zone_id} {action} {status} {files_count}",
	}, zap.NewNop())
	require.NoError(t, err)

	rec := sampleRecord()
	em.Emit(rec)
	rec.ZoneID = "Z2"
	rec.Action = "purge_everything"
	rec.Success = true
	rec.FilesCount = 0
	em.Emit(rec)
	require.NoError(t, em.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{
		`"Z1" "purge_urls" failure 3`,
		`"Z2" "purge_everything" success 0`,
	}, lines)
}

func TestFileEmitter_RotationDefaults(t *testing.T) {
	em, err := NewFileEmitter(configtypes.AuditFileConfig{Path: filepath.Join(t.TempDir(), "a.log")}, zap.NewNop())
	require.NoError(t, err)
	defer em.Close()

	assert.Equal(t, DefaultMaxSize, em.writer.MaxSize)
	assert.Equal(t, DefaultMaxAge, em.writer.MaxAge)
	assert.Equal(t, DefaultMaxBackups, em.writer.MaxBackups)
}

func TestFileEmitter_InvalidTemplate(t *testing.T) {
	_, err := NewFileEmitter(configtypes.AuditFileConfig{
		Path:     filepath.Join(t.TempDir(), "a.log"),
		Template: "{nope}",
	}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid template for audit log")
}

func TestNew(t *testing.T) {
	em, err := New(configtypes.AuditConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NoopEmitter{}, em)
	em.Emit(sampleRecord())
	assert.NoError(t, em.Close())

	em, err = New(configtypes.AuditConfig{File: configtypes.AuditFileConfig{
		Enabled: true,
		Path:    filepath.Join(t.TempDir(), "audit.log"),
	}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileEmitter{}, em)
	assert.NoError(t, em.Close())
}
