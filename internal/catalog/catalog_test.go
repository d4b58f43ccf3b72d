package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/domain"
)

func doc(id string, at time.Time) domain.Document {
	return domain.Document{
		ID:       id,
		Filename: id + ".pdf",
		Text:     "body of " + id,
		Metadata: domain.DocumentMetadata{
			Title:      "Title " + id,
			Author:     "A. Writer",
			PageCount:  3,
			SourceType: domain.SourcePDF,
			IngestedAt: at,
			Keywords:   []string{"alpha", "beta"},
		},
		ChunkCount: 7,
	}
}

func catalogs(t *testing.T) map[string]Catalog {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Catalog{"memory": NewMemory(), "sqlite": db}
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Put(ctx, doc("old", base)))
			require.NoError(t, c.Put(ctx, doc("new", base.Add(time.Hour))))

			got, err := c.Get(ctx, "old")
			require.NoError(t, err)
			assert.Equal(t, doc("old", base), got)

			list, err := c.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "old", list[1].ID)

			require.NoError(t, c.Delete(ctx, "old"))
			_, err = c.Get(ctx, "old")
			assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
			assert.ErrorIs(t, c.Delete(ctx, "old"), domain.ErrDocumentNotFound)
		})
	}
}

func TestCatalogPutOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			d := doc("x", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, c.Put(ctx, d))
			d.ChunkCount = 9
			d.Metadata.Summary = "updated"
			require.NoError(t, c.Put(ctx, d))

			got, err := c.Get(ctx, "x")
			require.NoError(t, err)
			assert.Equal(t, 9, got.ChunkCount)
			assert.Equal(t, "updated", got.Metadata.Summary)
		})
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, doc("kept", time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "Title kept", got.Metadata.Title)
}
