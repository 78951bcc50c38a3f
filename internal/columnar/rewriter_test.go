package columnar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedb-go/icedb/internal/catalog"
	"github.com/icedb-go/icedb/pkg/codec"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

func writeTestFile(t *testing.T, ctx context.Context, store objectstore.Store, key string, ids []int64) {
	t.Helper()
	w := NewWriter(store, codec.NewRegistry())
	rb := catalog.NewRowBatch("p")
	for _, id := range ids {
		rb.Append(map[string]any{"id": id})
	}
	_, err := w.WriteColumns(ctx, key, *rb, catalog.WriteOptions{})
	require.NoError(t, err)
}

func TestRewriteConcatenatesSourceFiles(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	writeTestFile(t, ctx, store, "tbl/_data/p/a.parquet", []int64{1, 2})
	writeTestFile(t, ctx, store, "tbl/_data/p/b.parquet", []int64{3})

	r := NewRewriter(store, codec.NewRegistry())
	n, err := r.Rewrite(ctx, []string{"tbl/_data/p/a.parquet", "tbl/_data/p/b.parquet"}, "", "tbl/_data/p/merged.parquet")
	require.NoError(t, err)
	assert.Positive(t, n)

	raw, err := store.Get(ctx, "tbl/_data/p/merged.parquet")
	require.NoError(t, err)

	recs, _, err := readParquetRecords(ctx, raw)
	require.NoError(t, err)
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	total := 0
	for _, rec := range recs {
		total += int(rec.NumRows())
	}
	assert.Equal(t, 3, total)
}

func TestRewriteAcceptsDefaultQueryCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)
	writeTestFile(t, ctx, store, "tbl/_data/p/a.parquet", []int64{1})

	r := NewRewriter(store, codec.NewRegistry())
	_, err = r.Rewrite(ctx, []string{"tbl/_data/p/a.parquet"}, "select * from source_files", "tbl/_data/p/out.parquet")
	assert.NoError(t, err)
}

func TestRewriteRejectsUnsupportedQuery(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)
	writeTestFile(t, ctx, store, "tbl/_data/p/a.parquet", []int64{1})

	r := NewRewriter(store, codec.NewRegistry())
	_, err = r.Rewrite(ctx, []string{"tbl/_data/p/a.parquet"}, "SELECT id FROM source_files WHERE id > 1", "tbl/_data/p/out.parquet")
	assert.Error(t, err)
}

func TestRewriteRejectsEmptySourceList(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	r := NewRewriter(store, codec.NewRegistry())
	_, err = r.Rewrite(ctx, nil, "", "tbl/_data/p/out.parquet")
	assert.Error(t, err)
}
