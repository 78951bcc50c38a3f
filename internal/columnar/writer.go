package columnar

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/icedb-go/icedb/internal/catalog"
	"github.com/icedb-go/icedb/pkg/codec"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

// defaultRowGroupSize is the maximum number of rows per Parquet row group
// when a caller does not specify one via WriteOptions.RowGroupSize.
const defaultRowGroupSize = 64 * 1024

// Writer implements catalog.ColumnWriter and catalog.Describer on top of
// Arrow/Parquet (SPEC_FULL.md §4.11).
type Writer struct {
	store  objectstore.Store
	codecs *codec.Registry
}

// NewWriter builds a Writer that uploads through store and resolves
// compression names through codecs.
func NewWriter(store objectstore.Store, codecs *codec.Registry) *Writer {
	return &Writer{store: store, codecs: codecs}
}

// WriteColumns builds an Arrow record from rows (applying opts.SortColumns
// if given), encodes it to Parquet with the resolved compression codec,
// and uploads the result to key (spec.md §1 contract (a), §4.5).
func (w *Writer) WriteColumns(ctx context.Context, key string, rows catalog.RowBatch, opts catalog.WriteOptions) (int64, error) {
	schema, _, err := schemaFor(rows)
	if err != nil {
		return 0, err
	}

	compression, err := w.codecs.Resolve(opts.Compression)
	if err != nil {
		return 0, err
	}

	order, err := sortOrder(rows, opts.SortColumns)
	if err != nil {
		return 0, err
	}
	ordered := applyOrder(rows, order)

	record, err := buildRecord(schema, rows.Columns, ordered, rows.Len())
	if err != nil {
		return 0, err
	}
	defer record.Release()

	rowGroupSize := opts.RowGroupSize
	if rowGroupSize <= 0 {
		rowGroupSize = defaultRowGroupSize
	}

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compression),
		parquet.WithMaxRowGroupLength(rowGroupSize),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	var buf bytes.Buffer
	fileWriter, err := pqarrow.NewFileWriter(schema, &buf, props, arrowProps)
	if err != nil {
		return 0, fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := fileWriter.Write(record); err != nil {
		fileWriter.Close()
		return 0, fmt.Errorf("writing record: %w", err)
	}
	if err := fileWriter.Close(); err != nil {
		return 0, fmt.Errorf("closing parquet writer: %w", err)
	}

	if err := w.store.Put(ctx, key, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// Describe walks a RowBatch's columns and returns a catalog.Schema using
// the same type-tag strings WriteColumns maps back from (spec.md §1
// contract (c)).
func (w *Writer) Describe(ctx context.Context, rows catalog.RowBatch) (*catalog.Schema, error) {
	schema := catalog.NewSchema()
	cols := make([]string, 0, len(rows.Columns))
	types := make([]string, 0, len(rows.Columns))
	for _, col := range rows.Columns {
		_, tag, err := arrowFieldFor(col, rows.Values[col])
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		types = append(types, tag)
	}
	if _, err := schema.Accumulate(cols, types); err != nil {
		return nil, err
	}
	return schema, nil
}

// buildRecord constructs one Arrow record from ordered column data using
// a RecordBuilder, generalized from a fixed five-column schema to a
// dynamic one built per RowBatch.
func buildRecord(schema *arrow.Schema, columns []string, values map[string][]any, numRows int) (arrow.Record, error) {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for i, col := range columns {
		field := builder.Field(i)
		cells := values[col]
		for r := 0; r < numRows; r++ {
			var v any
			if r < len(cells) {
				v = cells[r]
			}
			if v == nil {
				field.AppendNull()
				continue
			}
			if err := appendCell(field, v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col, r, err)
			}
		}
	}

	return builder.NewRecord(), nil
}

// appendCell appends one scalar Go value onto the matching typed Arrow
// builder.
func appendCell(field array.Builder, v any) error {
	switch b := field.(type) {
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			b.Append(n)
		case int:
			b.Append(int64(n))
		default:
			return fmt.Errorf("expected int64-like value, got %T", v)
		}
	case *array.Float64Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		b.Append(n)
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		b.Append(s)
	case *array.BooleanBuilder:
		bo, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		b.Append(bo)
	case *array.BinaryBuilder:
		bs, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, got %T", v)
		}
		b.Append(bs)
	default:
		return fmt.Errorf("unsupported Arrow builder type %T", field)
	}
	return nil
}
