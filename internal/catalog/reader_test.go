package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

func TestFoldForwardEmptyReturnsNoLogs(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = foldForward(ctx, store, nil)
	require.Error(t, err)
	appErr, ok := catalogerrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, catalogerrors.CodeNoLogs, appErr.Code)
}

func TestFoldForwardLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	schema := NewSchema()
	schema.Accumulate([]string{"a"}, []string{"string"})

	m1 := FileMarker{Path: "tbl/_data/p/1.parquet", FileBytes: 10, CreatedMS: 1}
	r1, err := appendLog(ctx, store, "tbl", schema, []FileMarker{m1}, nil, false, "host-a", 1)
	require.NoError(t, err)

	tombstoned := m1.WithTombstone(2)
	_, err = appendLog(ctx, store, "tbl", schema, []FileMarker{tombstoned}, nil, false, "host-a", 2)
	require.NoError(t, err)

	keys, err := currentLogKeys(ctx, store, "tbl")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, r1.Key, keys[0])

	fold, err := foldForward(ctx, store, keys)
	require.NoError(t, err)
	require.Len(t, fold.Markers, 1)
	assert.False(t, fold.Markers[m1.Path].Alive(), "later log object's tombstoned marker should win")
}

func TestFoldForwardCorruptionOnMissingSchemaLine(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	key := "tbl/_log/0000000000000001_host-a.jsonl"
	require.NoError(t, store.Put(ctx, key, []byte(`{"v":1,"sch":5,"f":1,"t":1}`)))

	_, err = foldForward(ctx, store, []string{key})
	require.Error(t, err)
	appErr, ok := catalogerrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, catalogerrors.CodeCorruption, appErr.Code)
}

func TestReadAtMaxTimeExcludesLaterKeys(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	schema := NewSchema()
	schema.Accumulate([]string{"a"}, []string{"string"})

	early := FileMarker{Path: "tbl/_data/p/1.parquet", FileBytes: 1, CreatedMS: 100}
	late := FileMarker{Path: "tbl/_data/p/2.parquet", FileBytes: 1, CreatedMS: 200}

	_, err = appendLog(ctx, store, "tbl", schema, []FileMarker{early}, nil, false, "host-a", 100)
	require.NoError(t, err)
	_, err = appendLog(ctx, store, "tbl", schema, []FileMarker{late}, nil, false, "host-a", 200)
	require.NoError(t, err)

	fold, err := readAtMaxTime(ctx, store, "tbl", 200)
	require.NoError(t, err)
	assert.Len(t, fold.Markers, 1)
	_, hasEarly := fold.Markers[early.Path]
	assert.True(t, hasEarly)
	_, hasLate := fold.Markers[late.Path]
	assert.False(t, hasLate)
}
