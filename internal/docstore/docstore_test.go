package docstore_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/logger"
)

// backends returns a constructor per Backend implementation so every
// contract test runs against both.
func backends() map[string]func(t *testing.T) docstore.Backend {
	return map[string]func(t *testing.T) docstore.Backend{
		"memory": func(t *testing.T) docstore.Backend {
			t.Helper()
			return docstore.NewMemoryBackend()
		},
		"sqlite": func(t *testing.T) docstore.Backend {
			t.Helper()
			mgr, err := datastore.Open(&datastore.Config{
				Name:    "target",
				DataDir: t.TempDir(),
				Logger:  logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = mgr.Close() })
			require.NoError(t, mgr.Initialize())
			return docstore.NewSQLBackend(mgr.DB())
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, c *docstore.Client)) {
	t.Helper()
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fn(t, docstore.NewClient(newBackend(t)))
		})
	}
}

func commit(t *testing.T, c *docstore.Client, fn func(b *docstore.WriteBatch)) error {
	t.Helper()
	b := c.NewBatch()
	fn(b)
	return b.Commit(context.Background())
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, c *docstore.Client) {
		ctx := context.Background()
		doc := docstore.Document{
			"name":     "Blue Spruce",
			"qty":      12.5,
			"customer": map[string]any{"name": "Acme", "id": nil, "path": nil, "type": "Not Found"},
		}
		ref := c.Document("projects/p1/plants/Plant-1")
		require.NoError(t, commit(t, c, func(b *docstore.WriteBatch) { require.NoError(t, b.Set(ref, doc)) }))

		snap, err := ref.Get(ctx)
		require.NoError(t, err)
		require.True(t, snap.Exists)
		assert.Equal(t, doc, snap.Data())

		missing, err := c.Document("projects/p1/plants/Plant-2").Get(ctx)
		require.NoError(t, err)
		assert.False(t, missing.Exists)
		assert.Nil(t, missing.Data())
	})
}

func TestCreateConflictIsAtomic(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, c *docstore.Client) {
		ctx := context.Background()
		existing := c.Document("customers/Customer-1")
		require.NoError(t, commit(t, c, func(b *docstore.WriteBatch) {
			require.NoError(t, b.Create(existing, docstore.Document{"name": "first"}))
		}))

		err := commit(t, c, func(b *docstore.WriteBatch) {
			require.NoError(t, b.Set(c.Document("customers/Customer-2"), docstore.Document{"name": "second"}))
			require.NoError(t, b.Create(existing, docstore.Document{"name": "dup"}))
		})
		require.ErrorIs(t, err, docstore.ErrAlreadyExists)

		snap, err := c.Document("customers/Customer-2").Get(ctx)
		require.NoError(t, err)
		assert.False(t, snap.Exists, "failed batch must not apply earlier writes")

		snap, err = existing.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", snap.Data()["name"])
	})
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, c *docstore.Client) {
		err := commit(t, c, func(b *docstore.WriteBatch) {
			require.NoError(t, b.Delete(c.Document("customers/ghost")))
		})
		require.NoError(t, err)
	})
}

func TestImpliedDocumentsAndCollections(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, c *docstore.Client) {
		ctx := context.Background()
		require.NoError(t, commit(t, c, func(b *docstore.WriteBatch) {
			require.NoError(t, b.Set(c.Document("customers/Customer-1/notes/Note-1"), docstore.Document{"text": "a"}))
			require.NoError(t, b.Set(c.Document("customers/Customer-2"), docstore.Document{"name": "b"}))
			require.NoError(t, b.Set(c.Document("customers_x/Customer-9"), docstore.Document{"name": "other"}))
		}))

		docs, err := c.Collection("customers").ListDocuments(ctx)
		require.NoError(t, err)
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID()
		}
		assert.Equal(t, []string{"Customer-1", "Customer-2"}, ids)

		colls, err := c.Document("customers/Customer-1").Collections(ctx)
		require.NoError(t, err)
		require.Len(t, colls, 1)
		assert.Equal(t, "customers/Customer-1/notes", colls[0].Path())

		empty, err := c.Document("customers/Customer-2").Collections(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestLikeWildcardsAreEscaped(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, c *docstore.Client) {
		ctx := context.Background()
		require.NoError(t, commit(t, c, func(b *docstore.WriteBatch) {
			require.NoError(t, b.Set(c.Document("a_b/1"), docstore.Document{"v": "x"}))
			require.NoError(t, b.Set(c.Document("aXb/2"), docstore.Document{"v": "y"}))
			require.NoError(t, b.Set(c.Document("a%/3"), docstore.Document{"v": "z"}))
		}))

		docs, err := c.Collection("a_b").ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "1", docs[0].ID())
	})
}

func TestPathValidation(t *testing.T) {
	t.Parallel()

	c := docstore.NewClient(docstore.NewMemoryBackend())
	ctx := context.Background()

	_, err := c.Collection("customers/Customer-1").ListDocuments(ctx)
	require.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = c.Document("customers").Get(ctx)
	require.ErrorIs(t, err, docstore.ErrInvalidPath)

	b := c.NewBatch()
	require.ErrorIs(t, b.Set(c.Document("customers//x"), docstore.Document{}), docstore.ErrInvalidPath)
	require.ErrorIs(t, b.Set(c.Document("customers/x"), nil), docstore.ErrInvalidDocument)
}

func TestBatchCommitOnce(t *testing.T) {
	t.Parallel()

	c := docstore.NewClient(docstore.NewMemoryBackend())
	b := c.NewBatch()
	require.NoError(t, b.Set(c.Document("c/d"), docstore.Document{"k": "v"}))
	assert.Equal(t, 1, b.Len())
	require.NoError(t, b.Commit(context.Background()))

	require.ErrorIs(t, b.Commit(context.Background()), docstore.ErrBatchCommitted)
	require.ErrorIs(t, b.Delete(c.Document("c/d")), docstore.ErrBatchCommitted)
}

func TestPathHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		collection bool
		document   bool
	}{
		{"customers", true, false},
		{"customers/Customer-1", false, true},
		{"customers/Customer-1/notes", true, false},
		{"", false, false},
		{"a//b", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.collection, docstore.IsCollectionPath(tt.path), tt.path)
		assert.Equal(t, tt.document, docstore.IsDocumentPath(tt.path), tt.path)
	}

	assert.Equal(t, "projects/p1/plants", docstore.Join("projects/p1/", "", "/plants"))
	parent, id := docstore.Split("projects/p1/plants/Plant-1")
	assert.Equal(t, "projects/p1/plants", parent)
	assert.Equal(t, "Plant-1", id)
}
