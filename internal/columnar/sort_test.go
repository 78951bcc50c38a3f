package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedb-go/icedb/internal/catalog"
)

func TestSortOrderOrdersAscendingByPriority(t *testing.T) {
	rb := catalog.NewRowBatch("p")
	rb.Append(map[string]any{"a": int64(1), "b": "y"})
	rb.Append(map[string]any{"a": int64(1), "b": "x"})
	rb.Append(map[string]any{"a": int64(0), "b": "z"})

	order, err := sortOrder(*rb, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestSortOrderNoColumnsIsIdentity(t *testing.T) {
	rb := catalog.NewRowBatch("p")
	rb.Append(map[string]any{"a": int64(3)})
	rb.Append(map[string]any{"a": int64(1)})

	order, err := sortOrder(*rb, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)
}

func TestSortOrderRejectsMissingColumn(t *testing.T) {
	rb := catalog.NewRowBatch("p")
	rb.Append(map[string]any{"a": int64(1)})

	_, err := sortOrder(*rb, []string{"missing"})
	assert.Error(t, err)
}

func TestApplyOrderReordersEveryColumn(t *testing.T) {
	rb := catalog.NewRowBatch("p")
	rb.Append(map[string]any{"a": int64(1), "b": "x"})
	rb.Append(map[string]any{"a": int64(0), "b": "y"})

	out := applyOrder(*rb, []int{1, 0})
	assert.Equal(t, []any{int64(0), int64(1)}, out["a"])
	assert.Equal(t, []any{"y", "x"}, out["b"])
}

func TestCompareCellsNilSortsFirst(t *testing.T) {
	less, equal := compareCells(nil, int64(5))
	assert.True(t, less)
	assert.False(t, equal)

	less, equal = compareCells(int64(5), nil)
	assert.False(t, less)
	assert.False(t, equal)

	_, equal = compareCells(nil, nil)
	assert.True(t, equal)
}
