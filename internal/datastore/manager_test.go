package datastore

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func TestOpenSQLiteInitializesSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr, err := Open(&Config{Name: "target-proj", DataDir: dir, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	require.NoError(t, mgr.Initialize())
	assert.False(t, mgr.IsMySQL())
	assert.Equal(t, filepath.Join(dir, "target-proj.db"), mgr.Path())

	for _, model := range AllModels() {
		assert.True(t, mgr.DB().Migrator().HasTable(model), "missing table for %T", model)
	}

	// Initialize is idempotent
	require.NoError(t, mgr.Initialize())
}

func TestSQLiteTranslatesDuplicateKey(t *testing.T) {
	t.Parallel()

	mgr, err := Open(&Config{Name: "dup", DataDir: t.TempDir(), Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	row := entities.SequenceRow{Kind: "Note", Value: 1}
	require.NoError(t, mgr.DB().Create(&row).Error)
	err = mgr.DB().Create(&entities.SequenceRow{Kind: "Note", Value: 2}).Error
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *Config
		category errors.ErrorCategory
	}{
		{"nil config", nil, errors.CategoryValidation},
		{"missing name", &Config{DataDir: t.TempDir()}, errors.CategoryValidation},
		{"unknown driver", &Config{Name: "x", Driver: "postgres"}, errors.CategoryConfiguration},
		{"mysql without host", &Config{Name: "x", Driver: DriverMySQL}, errors.CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn, err := BuildMySQLDSN(&MySQLConfig{
		Host:     "db.local",
		Username: "sync",
		Password: "s3cret",
		Database: "inventory",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "sync:s3cret@tcp(db.local:3306)/inventory?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	assert.Equal(t, "db.local:3306/inventory", Location(dsn))
	sanitized := SanitizeDSN(dsn)
	assert.NotContains(t, sanitized, "s3cret")
	assert.Contains(t, sanitized, "sync:****@")
}

func TestBuildMySQLDSNFromExplicitDSN(t *testing.T) {
	t.Parallel()

	dsn, err := BuildMySQLDSN(&MySQLConfig{DSN: "u:p@tcp(127.0.0.1:3307)/src"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Equal(t, "127.0.0.1:3307/src", Location(dsn))

	_, err = BuildMySQLDSN(&MySQLConfig{DSN: "not a dsn"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
