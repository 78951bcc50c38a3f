package columnar

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedb-go/icedb/internal/catalog"
	"github.com/icedb-go/icedb/pkg/codec"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

func sampleBatch() catalog.RowBatch {
	rb := catalog.NewRowBatch("2026-07-31")
	rb.Append(map[string]any{"id": int64(2), "name": "bob", "score": 4.5})
	rb.Append(map[string]any{"id": int64(1), "name": "alice", "score": 9.1})
	rb.Append(map[string]any{"id": int64(3), "name": "carol"})
	return *rb
}

func TestWriteColumnsRoundTrips(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(store, codec.NewRegistry())
	rows := sampleBatch()

	n, err := w.WriteColumns(ctx, "tbl/_data/p/f.parquet", rows, catalog.WriteOptions{
		SortColumns: []string{"id"},
		Compression: "snappy",
	})
	require.NoError(t, err)
	assert.Positive(t, n)

	raw, err := store.Get(ctx, "tbl/_data/p/f.parquet")
	require.NoError(t, err)

	recs, schema, err := readParquetRecords(ctx, raw)
	require.NoError(t, err)
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	require.Len(t, recs, 1)
	assert.Equal(t, 3, int(recs[0].NumRows()))

	idCol, ok := recs[0].Column(schema.FieldIndices("id")[0]).(*array.Int64)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, idCol.Int64Values())
}

func TestWriteColumnsRejectsUnsupportedCellType(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(store, codec.NewRegistry())
	rb := catalog.NewRowBatch("p")
	rb.Append(map[string]any{"bad": map[string]int{"x": 1}})

	_, err = w.WriteColumns(ctx, "tbl/_data/p/f.parquet", *rb, catalog.WriteOptions{})
	assert.Error(t, err)
}

func TestDescribeMatchesWrittenColumnTags(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(store, codec.NewRegistry())
	rows := sampleBatch()

	schema, err := w.Describe(ctx, rows)
	require.NoError(t, err)

	typ, ok := schema.Type("id")
	require.True(t, ok)
	assert.Equal(t, tagInt64, typ)

	typ, ok = schema.Type("name")
	require.True(t, ok)
	assert.Equal(t, tagString, typ)

	typ, ok = schema.Type("score")
	require.True(t, ok)
	assert.Equal(t, tagFloat64, typ)
}

func TestWriteColumnsAppliesRowGroupSize(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(store, codec.NewRegistry())
	rows := sampleBatch()

	_, err = w.WriteColumns(ctx, "tbl/_data/p/f.parquet", rows, catalog.WriteOptions{
		RowGroupSize: 1,
	})
	require.NoError(t, err)

	raw, err := store.Get(ctx, "tbl/_data/p/f.parquet")
	require.NoError(t, err)

	reader, err := file.NewParquetReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 3, reader.NumRowGroups())
}
