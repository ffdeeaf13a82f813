package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/invsync/internal/logger"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     logger.LogLevel
		logFunc   func(l logger.Logger)
		wantEmpty bool
	}{
		{"debug suppressed at info", logger.LogLevelInfo, func(l logger.Logger) { l.Debug("hidden") }, true},
		{"info shown at info", logger.LogLevelInfo, func(l logger.Logger) { l.Info("shown") }, false},
		{"trace shown at trace", logger.LogLevelTrace, func(l logger.Logger) { l.Trace("shown") }, false},
		{"warn suppressed at error", logger.LogLevelError, func(l logger.Logger) { l.Warn("hidden") }, true},
		{"explicit level honours threshold", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelInfo, "hidden") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			l := logger.NewSlogLogger(&buf, tt.level, time.UTC)
			tt.logFunc(l)
			if tt.wantEmpty {
				assert.Empty(t, buf.String())
			} else {
				assert.NotEmpty(t, buf.String())
			}
		})
	}
}

func TestModuleScopingAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC)
	log := base.Module("migration").Module("Customer").With(logger.String("pass_id", "p-1"))

	log.Info("pass completed", logger.Int("loaded", 3), logger.Error(errors.New("boom")), logger.Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=migration.Customer")
	assert.Contains(t, out, "pass_id=p-1")
	assert.Contains(t, out, "loaded=3")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "elapsed=1.5s")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)
	ctx := logger.WithTraceID(context.Background(), "abc-123")

	log.WithContext(ctx).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=abc-123")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "sync.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"quiet": "error"},
	})
	require.NoError(t, err)

	cl.Module("sync").Info("written", logger.String("kind", "Plant"))
	cl.Module("quiet").Info("dropped")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "written", record["msg"])
	assert.Equal(t, "sync", record["module"])
	assert.Equal(t, "Plant", record["kind"])
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestGormAdapterTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := logger.NewGormLoggerAdapter(logger.NewSlogLogger(&buf, logger.LogLevelTrace, time.UTC), 100*time.Millisecond)
	ctx := context.Background()

	long := "INSERT INTO documents VALUES " + strings.Repeat("(?),", 1000)
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return long, 500 }, nil)
	adapter.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT x", 0 }, gorm.ErrDuplicatedKey)
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT y", 0 }, gorm.ErrRecordNotFound)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "level=TRACE")
	assert.Contains(t, lines[0], "bytes)")
	assert.Less(t, len(lines[0]), len(long))
	assert.Contains(t, lines[1], "slow query")
	assert.Contains(t, lines[2], "level=DEBUG")
	assert.Contains(t, lines[3], "level=TRACE")
}
