//go:build integration && mysql

package docstore_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/logger"
)

func startMySQL(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("invsync"),
		tcmysql.WithUsername("invsync"),
		tcmysql.WithPassword("invsync"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	return dsn
}

func TestSQLBackendMySQL(t *testing.T) {
	dsn := startMySQL(t)

	mgr, err := datastore.Open(&datastore.Config{
		Driver: datastore.DriverMySQL,
		Name:   "invsync",
		MySQL:  datastore.MySQLConfig{DSN: dsn, TablePrefix: "tgt_"},
		Logger: logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())
	assert.True(t, mgr.IsMySQL())

	ctx := context.Background()
	c := docstore.NewClient(docstore.NewSQLBackend(mgr.DB()))

	b := c.NewBatch()
	require.NoError(t, b.Create(c.Document("customers/Customer-1"), docstore.Document{"name": "Acme"}))
	require.NoError(t, b.Set(c.Document("customers/Customer-1/notes/Note-1"), docstore.Document{"text": "hi"}))
	require.NoError(t, b.Commit(ctx))

	dup := c.NewBatch()
	require.NoError(t, dup.Create(c.Document("customers/Customer-1"), docstore.Document{"name": "again"}))
	require.ErrorIs(t, dup.Commit(ctx), docstore.ErrAlreadyExists)

	colls, err := c.Document("customers/Customer-1").Collections(ctx)
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, "notes", colls[0].ID())

	snap, err := c.Document("customers/Customer-1").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", snap.Data().String("name"))
}
