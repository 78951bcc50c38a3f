package catalog

import catalogerrors "github.com/icedb-go/icedb/pkg/errors"

// AccumulateResult reports whether Accumulate changed the schema, for
// callers that want to log "added" vs "nothing added" the way
// icedb.py's tests distinguish first introduction from idempotent
// re-accumulation (spec.md §4.3).
type AccumulateResult struct {
	Added []string
}

// Accumulate merges columns/types pairs into s. A column reappearing
// with a different type raises SchemaConflict (I5); re-accumulating an
// identical column/type pair is a no-op.
func (s *Schema) Accumulate(columns, types []string) (AccumulateResult, error) {
	var result AccumulateResult
	for i, col := range columns {
		t := types[i]
		if existing, ok := s.types[col]; ok {
			if existing != t {
				return result, catalogerrors.SchemaConflict(col, existing, t)
			}
			continue
		}
		s.types[col] = t
		s.order = append(s.order, col)
		result.Added = append(result.Added, col)
	}
	return result, nil
}

// AccumulateSchema merges every column of other into s, in other's
// column order. Used when a merge log object must carry forward the
// accumulated schema of several source log objects without shrinking it
// (I6).
func (s *Schema) AccumulateSchema(other *Schema) (AccumulateResult, error) {
	cols := other.Columns()
	types := make([]string, len(cols))
	for i, c := range cols {
		types[i], _ = other.Type(c)
	}
	return s.Accumulate(cols, types)
}
