package columnar

import (
	"fmt"
	"sort"

	"github.com/icedb-go/icedb/internal/catalog"
)

// sortOrder returns a row permutation that orders rb's rows ascending by
// the given columns, in priority order (spec.md §4.5's sort order "O").
// Rows are otherwise left in original order (stable sort).
func sortOrder(rb catalog.RowBatch, sortColumns []string) ([]int, error) {
	n := rb.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if len(sortColumns) == 0 {
		return order, nil
	}
	for _, col := range sortColumns {
		if _, ok := rb.Values[col]; !ok {
			return nil, fmt.Errorf("sort column %q not present in batch", col)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		for _, col := range sortColumns {
			vals := rb.Values[col]
			less, equal := compareCells(vals[a], vals[b])
			if !equal {
				return less
			}
		}
		return false
	})
	return order, nil
}

// compareCells compares two cells of the same column (hence same
// dynamic type, or nil). Returns (less, equal). nil sorts first.
func compareCells(a, b any) (less bool, equal bool) {
	if a == nil && b == nil {
		return false, true
	}
	if a == nil {
		return true, false
	}
	if b == nil {
		return false, false
	}
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		return av < bv, av == bv
	case int:
		bv := b.(int)
		return av < bv, av == bv
	case float64:
		bv := b.(float64)
		return av < bv, av == bv
	case string:
		bv := b.(string)
		return av < bv, av == bv
	case bool:
		bv := b.(bool)
		return !av && bv, av == bv
	case []byte:
		bv := b.([]byte)
		return string(av) < string(bv), string(av) == string(bv)
	default:
		return false, true
	}
}

// applyOrder reorders every column in-place according to order.
func applyOrder(rb catalog.RowBatch, order []int) map[string][]any {
	out := make(map[string][]any, len(rb.Columns))
	for _, col := range rb.Columns {
		src := rb.Values[col]
		dst := make([]any, len(order))
		for i, idx := range order {
			if idx < len(src) {
				dst[i] = src[idx]
			}
		}
		out[col] = dst
	}
	return out
}
