package catalog

// RowBatch is the core's opaque view of a set of rows: a columnar
// representation keyed by column name, with each column a slice of
// scalar Go values (spec.md §9: "Dynamic dispatch over row shape" — the
// core never inspects row contents itself, only hands RowBatch to the
// external ColumnWriter/Rewriter/Describer collaborators).
type RowBatch struct {
	// Columns holds one entry per column name, in the order the columns
	// were first seen by Append; within a single row, new columns are
	// added in Go map iteration order, which is not defined. Each Values
	// entry is a slice (one element per row) of a concrete Go type the
	// ColumnWriter understands: int64, float64, string, bool, or []byte.
	Columns []string
	Values  map[string][]any

	// Partition is the partition key this batch belongs to (spec.md §3):
	// all rows in one RowBatch share one partition, since insert fans out
	// per partition bucket.
	Partition string
}

// NewRowBatch returns an empty batch for the given partition.
func NewRowBatch(partition string) *RowBatch {
	return &RowBatch{Values: make(map[string][]any), Partition: partition}
}

// Append adds one row's worth of values, keyed by column name. Columns
// the row does not populate get a nil entry: Append calls alignColumns
// before returning, so every column's slice always has one entry per
// row, since schema columns are monotonic but not every row in a batch
// necessarily has every column populated (spec.md §4.3).
func (rb *RowBatch) Append(row map[string]any) {
	n := rb.Len()
	for col, val := range row {
		if _, ok := rb.Values[col]; !ok {
			rb.Columns = append(rb.Columns, col)
			rb.Values[col] = make([]any, n)
		}
		rb.Values[col] = append(rb.Values[col], val)
	}
	rb.alignColumns()
}

// Len returns the number of rows currently in the batch.
func (rb *RowBatch) Len() int {
	max := 0
	for _, col := range rb.Columns {
		if n := len(rb.Values[col]); n > max {
			max = n
		}
	}
	return max
}

// alignColumns pads every column's slice up to the batch's row count
// with nil, so a row that omitted a column does not desynchronize
// column lengths for the external writer.
func (rb *RowBatch) alignColumns() {
	n := rb.Len()
	for _, col := range rb.Columns {
		vals := rb.Values[col]
		for len(vals) < n {
			vals = append(vals, nil)
		}
		rb.Values[col] = vals
	}
}
