// Package columnar implements spec.md §1's external collaborator
// contracts — ColumnWriter, Rewriter, Describer — on top of
// apache/arrow-go/v18, grounded on DataDog's parquet_writer.go
// (pqarrow.NewFileWriter + RecordBuilder + parquet.WithCompression).
// Unlike that file's fixed five-column schema, this writer builds its
// Arrow schema dynamically per batch from the RowBatch's column set
// (spec.md §9's "Dynamic dispatch over row shape").
package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/icedb-go/icedb/internal/catalog"
)

// Type tag strings carried verbatim as the column "type" in a
// catalog.Schema, per spec.md §6 ("a type string carried verbatim from
// the external describe facility").
const (
	tagInt64   = "int64"
	tagFloat64 = "float64"
	tagString  = "string"
	tagBool    = "bool"
	tagBytes   = "bytes"
)

// arrowFieldFor returns the Arrow field and type tag for a column, or an
// error if the first non-nil cell observed is of an unsupported Go type.
func arrowFieldFor(name string, values []any) (arrow.Field, string, error) {
	for _, v := range values {
		if v == nil {
			continue
		}
		switch v.(type) {
		case int64:
			return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}, tagInt64, nil
		case int:
			return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}, tagInt64, nil
		case float64:
			return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}, tagFloat64, nil
		case string:
			return arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}, tagString, nil
		case bool:
			return arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Boolean, Nullable: true}, tagBool, nil
		case []byte:
			return arrow.Field{Name: name, Type: arrow.BinaryTypes.Binary, Nullable: true}, tagBytes, nil
		default:
			return arrow.Field{}, "", fmt.Errorf("column %q: unsupported cell type %T", name, v)
		}
	}
	// every cell observed was nil: default to string, matching the
	// original source's behavior of widening an all-null column to text.
	return arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}, tagString, nil
}

// schemaFor builds an Arrow schema and a parallel slice of type tags
// (one per column, matching rb.Columns order) for a RowBatch.
func schemaFor(rb catalog.RowBatch) (*arrow.Schema, []string, error) {
	fields := make([]arrow.Field, len(rb.Columns))
	tags := make([]string, len(rb.Columns))
	for i, col := range rb.Columns {
		field, tag, err := arrowFieldFor(col, rb.Values[col])
		if err != nil {
			return nil, nil, err
		}
		fields[i] = field
		tags[i] = tag
	}
	return arrow.NewSchema(fields, nil), tags, nil
}
