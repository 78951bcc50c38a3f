package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedb-go/icedb/pkg/objectstore"
)

// testClock returns a monotonically increasing millisecond clock so log
// keys sort deterministically within a test (I1).
func testClock() func() int64 {
	var n int64 = 1_700_000_000_000
	return func() int64 {
		n++
		return n
	}
}

func newTestCatalog(t *testing.T) (*Catalog, *fakeColumnWriter, *fakeDescriber, *fakeRewriter) {
	t.Helper()
	store, err := objectstore.NewLocalDiskStore(t.TempDir())
	require.NoError(t, err)

	writer := &fakeColumnWriter{}
	describer := &fakeDescriber{}
	rewriter := &fakeRewriter{}

	cat := New(Options{
		Store:        store,
		Prefix:       "tbl",
		HostID:       "test-host",
		ColumnWriter: writer,
		Describer:    describer,
		Rewriter:     rewriter,
		Clock:        testClock(),
	})
	return cat, writer, describer, rewriter
}

func partitionFunc(values map[string]any) string {
	return "u=" + values["u"].(string) + "/d=" + values["d"].(string)
}

// S1: round-trip insert.
func TestInsertRoundTrip(t *testing.T) {
	cat, writer, _, _ := newTestCatalog(t)
	ctx := context.Background()

	rows := []Row{
		{Values: map[string]any{"u": "A", "d": "2024-01-01", "ts": int64(100)}},
		{Values: map[string]any{"u": "B", "d": "2024-01-01", "ts": int64(200)}},
		{Values: map[string]any{"u": "A", "d": "2024-01-02", "ts": int64(300)}},
	}

	result, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc, SortColumns: []string{"ts"}})
	require.NoError(t, err)
	assert.Len(t, result.Markers, 3)
	assert.Len(t, writer.calls, 3)

	fold, err := cat.Fold(ctx)
	require.NoError(t, err)
	assert.Len(t, fold.Markers, 3)
	for _, fm := range fold.Markers {
		assert.True(t, fm.Alive())
	}

	partitions, err := cat.ListPartitions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u=A/d=2024-01-01", "u=B/d=2024-01-01", "u=A/d=2024-01-02"}, partitions)
}

// S4: schema conflict during insert leaves nothing visible.
func TestInsertSchemaConflictLeavesNoTrace(t *testing.T) {
	cat, _, describer, _ := newTestCatalog(t)
	ctx := context.Background()

	rows1 := []Row{{Values: map[string]any{"u": "A", "d": "2024-01-01", "user_id": "abc"}}}
	_, err := cat.Insert(ctx, rows1, InsertOptions{PartitionFunc: partitionFunc})
	require.NoError(t, err)

	describer.failOn = map[string]bool{"user_id": true}
	rows2 := []Row{{Values: map[string]any{"u": "A", "d": "2024-01-01", "user_id": 5}}}
	_, err = cat.Insert(ctx, rows2, InsertOptions{PartitionFunc: partitionFunc})
	require.Error(t, err)
	var appErr interface{ Error() string }
	require.ErrorAs(t, err, &appErr)

	fold, err := cat.Fold(ctx)
	require.NoError(t, err)
	assert.Len(t, fold.Markers, 1, "the failed insert must not have added a second marker")
}

// S2: merge cohort selection.
func TestMergeCohortSelection(t *testing.T) {
	cat, _, _, rewriter := newTestCatalog(t)
	ctx := context.Background()
	rewriter.fileBytes = 500

	for i := 0; i < 10; i++ {
		rows := []Row{
			{Values: map[string]any{"u": "A", "d": "2024-01-01", "ts": int64(i)}},
		}
		_, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc})
		require.NoError(t, err)
	}

	foldBefore, err := cat.Fold(ctx)
	require.NoError(t, err)
	require.Len(t, foldBefore.Markers, 10)

	result, ok, err := cat.Merge(ctx, MergeOptions{MaxFileSize: 10_000_000, MaxFileCount: 10})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, result.Cohort, 10)

	foldAfter, err := cat.Fold(ctx)
	require.NoError(t, err)
	aliveCount := 0
	for _, fm := range foldAfter.Markers {
		if fm.Alive() {
			aliveCount++
		}
	}
	assert.Equal(t, 1, aliveCount, "only the new merged marker should be alive")
}

// P4: partition removal removes exactly the selected partitions.
func TestRemovePartitions(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	ctx := context.Background()

	rows := []Row{
		{Values: map[string]any{"u": "A", "d": "2024-01-01"}},
		{Values: map[string]any{"u": "B", "d": "2024-01-01"}},
	}
	_, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc})
	require.NoError(t, err)

	result, err := cat.Remove(ctx, func(partitions []string) []string {
		var dropped []string
		for _, p := range partitions {
			if p == "u=A/d=2024-01-01" {
				dropped = append(dropped, p)
			}
		}
		return dropped
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tombstoned)

	partitions, err := cat.ListPartitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u=B/d=2024-01-01"}, partitions)
}

// Rewrite tombstones the source files in a partition and installs new
// markers from the external Rewriter.
func TestRewritePartition(t *testing.T) {
	cat, _, _, rewriter := newTestCatalog(t)
	ctx := context.Background()
	rewriter.fileBytes = 42

	rows := []Row{{Values: map[string]any{"u": "A", "d": "2024-01-01"}}}
	_, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc})
	require.NoError(t, err)

	result, err := cat.Rewrite(ctx, "u=A/d=2024-01-01", "")
	require.NoError(t, err)
	require.Len(t, result.NewMarkers, 1)
	assert.EqualValues(t, 42, result.NewMarkers[0].FileBytes)

	fold, err := cat.Fold(ctx)
	require.NoError(t, err)
	aliveCount := 0
	for _, fm := range fold.Markers {
		if fm.Alive() {
			aliveCount++
		}
	}
	assert.Equal(t, 1, aliveCount)
}

// P5: tombstone collection preserves the live set and removes old
// objects after minAge.
func TestCollectRemovesOldTombstonedObjects(t *testing.T) {
	cat, _, _, rewriter := newTestCatalog(t)
	ctx := context.Background()
	rewriter.fileBytes = 50

	for i := 0; i < 3; i++ {
		rows := []Row{{Values: map[string]any{"u": "A", "d": "2024-01-01", "ts": int64(i)}}}
		_, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc})
		require.NoError(t, err)
	}

	_, ok, err := cat.Merge(ctx, MergeOptions{MaxFileSize: 10_000_000, MaxFileCount: 2})
	require.NoError(t, err)
	require.True(t, ok)

	result, err := cat.Collect(ctx, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, result.DeletedData)
	assert.NotEmpty(t, result.DeletedLogs)

	foldAfter, err := cat.Fold(ctx)
	require.NoError(t, err)
	for _, fm := range foldAfter.Markers {
		assert.True(t, fm.Alive())
	}
}

// P8: partition string is preserved bit-for-bit.
func TestPartitionStringPreserved(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	ctx := context.Background()

	rows := []Row{{Values: map[string]any{"u": "weird/chars=ok", "d": "2024-01-01"}}}
	_, err := cat.Insert(ctx, rows, InsertOptions{PartitionFunc: partitionFunc})
	require.NoError(t, err)

	partitions, err := cat.ListPartitions(ctx)
	require.NoError(t, err)
	require.Len(t, partitions, 1)
	assert.Equal(t, "u=weird/chars=ok/d=2024-01-01", partitions[0])
}
