package catalog

import (
	"context"
	"sync"
)

// fakeColumnWriter records every WriteColumns call and reports a
// caller-controlled byte count, so insert tests can assert on fan-out
// behavior without a real Parquet encoder.
type fakeColumnWriter struct {
	mu    sync.Mutex
	calls []string

	fileBytes int64
	failKey   string
}

func (w *fakeColumnWriter) WriteColumns(ctx context.Context, key string, rows RowBatch, opts WriteOptions) (int64, error) {
	w.mu.Lock()
	w.calls = append(w.calls, key)
	w.mu.Unlock()
	if w.failKey != "" && key == w.failKey {
		return 0, errTest("forced write failure")
	}
	if w.fileBytes != 0 {
		return w.fileBytes, nil
	}
	return int64(rows.Len() * 10), nil
}

type fakeDescriber struct {
	failOn map[string]bool
}

func (d *fakeDescriber) Describe(ctx context.Context, rows RowBatch) (*Schema, error) {
	schema := NewSchema()
	cols := make([]string, 0, len(rows.Columns))
	types := make([]string, 0, len(rows.Columns))
	for _, col := range rows.Columns {
		cols = append(cols, col)
		if d.failOn[col] {
			types = append(types, "integer")
		} else {
			types = append(types, inferType(rows.Values[col]))
		}
	}
	if _, err := schema.Accumulate(cols, types); err != nil {
		return nil, err
	}
	return schema, nil
}

func inferType(values []any) string {
	for _, v := range values {
		switch v.(type) {
		case int, int64:
			return "integer"
		case float64:
			return "float"
		case bool:
			return "boolean"
		}
	}
	return "string"
}

type fakeRewriter struct {
	calls     [][]string
	fileBytes int64
}

func (r *fakeRewriter) Rewrite(ctx context.Context, sources []string, query string, destKey string) (int64, error) {
	r.calls = append(r.calls, sources)
	if r.fileBytes != 0 {
		return r.fileBytes, nil
	}
	return int64(len(sources)) * 100, nil
}

type errTest string

func (e errTest) Error() string { return string(e) }
