package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kagami/internal/catalog"
)

func testCatalog(t *testing.T, name string) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(
		[][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8, 0.9}, {0.1, 0.3, 0.5}},
		[]string{"c0", "c1", "c0", "c0"},
		catalog.WithName(name),
	)
	require.NoError(t, err)
	return c
}

func openStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "catalogs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	c := testCatalog(t, "image")
	require.NoError(t, store.SaveCatalog(ctx, c, catalog.WriteOptions{}))

	got, err := store.LoadCatalog(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, "image", got.Name())
	require.Equal(t, c.Len(), got.Len())
	assert.True(t, got.HasPersistedOrdinals())
	for i := 0; i < c.Len(); i++ {
		want, _ := c.VectorAt(i)
		have, _ := got.VectorAt(i)
		assert.Equal(t, want, have)
		wantID, _ := c.CategoryIDAt(i)
		haveID, _ := got.CategoryIDAt(i)
		assert.Equal(t, wantID, haveID)
		wantOrd, _ := c.Ordinal(i)
		haveOrd, _ := got.Ordinal(i)
		assert.Equal(t, wantOrd, haveOrd)
	}
	assert.Empty(t, got.CheckOrdinals())
}

func TestSQLiteStorage_Float16WithoutOrdinals(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCatalog(ctx, testCatalog(t, "text"), catalog.WriteOptions{Float16: true, OmitOrdinals: true}))

	got, err := store.LoadCatalog(ctx, "text")
	require.NoError(t, err)
	assert.False(t, got.HasPersistedOrdinals())
	v, _ := got.VectorAt(1)
	assert.InDelta(t, 0.5, v[1], 1e-3)
	ord, _ := got.Ordinal(3)
	assert.Equal(t, 2, ord)
}

func TestSQLiteStorage_ReplaceListDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCatalog(ctx, testCatalog(t, "image"), catalog.WriteOptions{}))
	require.NoError(t, store.SaveCatalog(ctx, testCatalog(t, "text"), catalog.WriteOptions{Float16: true}))

	smaller, err := catalog.Load([][]float32{{1, 2}}, []string{"z"}, catalog.WithName("image"))
	require.NoError(t, err)
	require.NoError(t, store.SaveCatalog(ctx, smaller, catalog.WriteOptions{}))

	infos, err := store.ListCatalogs(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "image", infos[0].Name)
	assert.Equal(t, 1, infos[0].Records)
	assert.Equal(t, 2, infos[0].Dimensions)
	assert.Equal(t, "text", infos[1].Name)
	assert.Equal(t, "float16", infos[1].DType)
	assert.True(t, infos[1].Ordinals)

	got, err := store.LoadCatalog(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	require.NoError(t, store.DeleteCatalog(ctx, "image"))
	_, err = store.LoadCatalog(ctx, "image")
	assert.ErrorIs(t, err, ErrCatalogNotFound)
	require.NoError(t, store.DeleteCatalog(ctx, "missing"))
}

func TestSQLiteStorage_RequiresName(t *testing.T) {
	store := openStore(t)
	c, err := catalog.Load([][]float32{{1}}, []string{"a"})
	require.NoError(t, err)
	assert.Error(t, store.SaveCatalog(context.Background(), c, catalog.WriteOptions{}))
}

func TestSQLiteStorage_CorruptRecordCount(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCatalog(ctx, testCatalog(t, "image"), catalog.WriteOptions{}))

	for _, records := range []int64{-5, 1 << 40} {
		_, err := store.db.ExecContext(ctx, `UPDATE catalogs SET records = ? WHERE name = ?`, records, "image")
		require.NoError(t, err)
		var got *catalog.Catalog
		require.NotPanics(t, func() {
			got, err = store.LoadCatalog(ctx, "image")
		})
		require.NoError(t, err)
		assert.Equal(t, 4, got.Len(), "rows decide the length, records=%d", records)
	}
}
