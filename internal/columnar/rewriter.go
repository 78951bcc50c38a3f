package columnar

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/icedb-go/icedb/pkg/codec"
	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

// defaultRewriteQuery is the only rewrite expression this reference
// implementation executes: an unfiltered, unprojected concatenation of
// every source file's rows, matching spec.md §4.6's default
// `SELECT * FROM source_files`.
const defaultRewriteQuery = "SELECT * FROM source_files"

// Rewriter implements catalog.Rewriter by reading each source Parquet
// object back into Arrow records and concatenating them into one new
// object (spec.md §1 contract (b), §4.6's identity-merge case exercised
// by P3). It is a reference implementation, not a SQL engine: the
// analytical SQL engine spec.md §1 calls out as an external collaborator
// is genuinely out of this core's scope, so only the default projection
// is supported here. A caller needing arbitrary SQL rewrites (per-user
// deletion, deduplication — spec.md §4.8's use cases) supplies its own
// catalog.Rewriter backed by a real query engine.
type Rewriter struct {
	store  objectstore.Store
	codecs *codec.Registry

	// Compression is the codec used for rewritten output; defaults to
	// the registry's fallback if empty.
	Compression string
}

// NewRewriter builds a Rewriter uploading through store.
func NewRewriter(store objectstore.Store, codecs *codec.Registry) *Rewriter {
	return &Rewriter{store: store, codecs: codecs}
}

// Rewrite concatenates sources' rows into destKey. Only the default
// `SELECT * FROM source_files` query (or an empty query) is accepted;
// anything else is a terminal validation error, since this reference
// implementation has no query planner.
func (r *Rewriter) Rewrite(ctx context.Context, sources []string, query string, destKey string) (int64, error) {
	normalized := strings.TrimSpace(query)
	if normalized != "" && !strings.EqualFold(normalized, defaultRewriteQuery) {
		return 0, catalogerrors.New(catalogerrors.CodeProcessingInvalid, "columnar", "rewrite",
			fmt.Sprintf("unsupported rewrite query %q: reference Rewriter only executes %q", query, defaultRewriteQuery))
	}
	if len(sources) == 0 {
		return 0, catalogerrors.New(catalogerrors.CodeProcessingInvalid, "columnar", "rewrite", "no source files supplied")
	}

	var schema *arrow.Schema
	var records []arrow.Record
	for _, src := range sources {
		data, err := r.store.Get(ctx, src)
		if err != nil {
			return 0, err
		}
		recs, sch, err := readParquetRecords(ctx, data)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", src, err)
		}
		if schema == nil {
			schema = sch
		}
		records = append(records, recs...)
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	compression, err := r.codecs.Resolve(r.Compression)
	if err != nil {
		return 0, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compression),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	var buf bytes.Buffer
	fileWriter, err := pqarrow.NewFileWriter(schema, &buf, props, arrowProps)
	if err != nil {
		return 0, fmt.Errorf("creating parquet writer: %w", err)
	}
	for _, rec := range records {
		if err := fileWriter.Write(rec); err != nil {
			fileWriter.Close()
			return 0, fmt.Errorf("writing record: %w", err)
		}
	}
	if err := fileWriter.Close(); err != nil {
		return 0, fmt.Errorf("closing parquet writer: %w", err)
	}

	if err := r.store.Put(ctx, destKey, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// readParquetRecords decodes one Parquet object into its Arrow schema
// and the records it contains.
func readParquetRecords(ctx context.Context, data []byte) ([]arrow.Record, *arrow.Schema, error) {
	reader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("opening parquet reader: %w", err)
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, nil, fmt.Errorf("opening arrow reader: %w", err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, nil, fmt.Errorf("reading schema: %w", err)
	}

	recordReader, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building record reader: %w", err)
	}
	defer recordReader.Release()

	var records []arrow.Record
	for recordReader.Next() {
		rec := recordReader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := recordReader.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, schema, nil
}
