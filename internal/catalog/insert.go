package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icedb-go/icedb/internal/metrics"
	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
	"github.com/icedb-go/icedb/pkg/workerpool"
)

// Row is a single record handed to Insert. PartitionOverride, if set,
// takes precedence over PartitionFunc and is stripped from Values before
// the row reaches the columnar writer unless the caller asks to keep it
// (spec.md §4.5).
type Row struct {
	Values            map[string]any
	PartitionOverride string
}

// InsertOptions configures one Insert call (spec.md §4.5, §6).
type InsertOptions struct {
	// PartitionFunc computes a partition string for a row that carries
	// no PartitionOverride. Required unless every row has an override.
	PartitionFunc func(values map[string]any) string

	// KeepPartitionColumn preserves the partition override key in the
	// row values handed to the columnar writer, instead of stripping it.
	KeepPartitionColumn string

	SortColumns  []string
	Compression  string
	RowGroupSize int64

	// MaxWorkers bounds the per-partition upload fan-out (spec.md §5's
	// maxThreads). Defaults to 4 if zero or negative.
	MaxWorkers int
}

// InsertedMarker pairs a newly appended FileMarker with the partition it
// belongs to, for caller observability (spec.md §4.5 "returns the list
// of markers that were appended").
type InsertedMarker struct {
	Partition string
	Marker    FileMarker
}

// InsertResult is the outcome of a successful Insert.
type InsertResult struct {
	LogKey  string
	Header  LogMetadata
	Markers []InsertedMarker
}

// Insert groups rows into per-partition buckets, fans the buckets out to
// the external ColumnWriter/Describer in parallel, and appends one log
// object listing every new marker (spec.md §4.5). Either the whole
// operation succeeds and a single log object becomes visible, or it
// fails and nothing is visible (spec.md §7's propagation policy) — bar
// the orphaned data objects a partial bucket failure may have already
// uploaded, which tombstone collection will not reclaim (spec.md §5).
func (c *Catalog) Insert(ctx context.Context, rows []Row, opts InsertOptions) (InsertResult, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"component": "catalog", "operation": "insert"})

	buckets, err := bucketRows(rows, opts)
	if err != nil {
		c.observeOperation("insert", "error", time.Since(start))
		return InsertResult{}, err
	}

	baseSchema, err := c.currentSchema(ctx)
	if err != nil {
		c.observeOperation("insert", "error", time.Since(start))
		return InsertResult{}, err
	}

	partitions := make([]string, 0, len(buckets))
	for p := range buckets {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	type bucketOutcome struct {
		partition string
		marker    FileMarker
		schema    *Schema
	}
	outcomes := make([]bucketOutcome, len(partitions))

	tasks := make([]workerpool.Task, len(partitions))
	for i, partition := range partitions {
		i, partition := i, partition
		rowsInBucket := buckets[partition]
		tasks[i] = workerpool.Task{
			Label: partition,
			Execute: func(ctx context.Context) error {
				marker, schema, err := c.writeBucket(ctx, partition, rowsInBucket, opts)
				if err != nil {
					return err
				}
				outcomes[i] = bucketOutcome{partition: partition, marker: marker, schema: schema}
				return nil
			},
		}
	}

	stats, err := workerpool.Run(ctx, c.logger, maxWorkers, tasks)
	metrics.SetInsertFanoutWorkers(float64(maxWorkers))
	if err != nil {
		c.observeOperation("insert", "error", time.Since(start))
		return InsertResult{}, err
	}

	schema := baseSchema.Clone()
	markers := make([]FileMarker, 0, len(outcomes))
	inserted := make([]InsertedMarker, 0, len(outcomes))
	for _, o := range outcomes {
		if _, err := schema.AccumulateSchema(o.schema); err != nil {
			c.observeOperation("insert", "error", time.Since(start))
			return InsertResult{}, err
		}
		markers = append(markers, o.marker)
		inserted = append(inserted, InsertedMarker{Partition: o.partition, Marker: o.marker})
	}

	now := c.clock()
	result, err := appendLog(ctx, c.store, c.prefix, schema, markers, nil, false, c.hostID, now)
	if err != nil {
		c.observeOperation("insert", "error", time.Since(start))
		return InsertResult{}, err
	}

	log.WithFields(logrus.Fields{
		"buckets":  stats.Total,
		"failed":   stats.Failed,
		"duration": time.Since(start),
		"log_key":  result.Key,
	}).Info("insert complete")
	c.observeOperation("insert", "success", time.Since(start))

	return InsertResult{LogKey: result.Key, Header: result.Header, Markers: inserted}, nil
}

// currentSchema folds the catalog forward far enough to recover its
// current schema, so a new insert's SchemaConflict check (I5) is
// evaluated against the full accumulated history, not just the rows in
// this one call. An empty catalog (no log objects yet) starts from an
// empty schema rather than surfacing NoLogs.
func (c *Catalog) currentSchema(ctx context.Context) (*Schema, error) {
	keys, err := currentLogKeys(ctx, c.store, c.prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return NewSchema(), nil
	}
	fold, err := foldForward(ctx, c.store, keys)
	if err != nil {
		return nil, err
	}
	return fold.Schema, nil
}

// writeBucket uploads one partition's rows through the external
// ColumnWriter, takes the object's size from the byte count the writer
// reports, describes the bucket's columns, and returns the resulting
// marker and schema fragment.
func (c *Catalog) writeBucket(ctx context.Context, partition string, rows []Row, opts InsertOptions) (FileMarker, *Schema, error) {
	batch := rowBatchFromRows(partition, rows, opts)

	key := dataKey(c.prefix, partition)
	fileBytes, err := c.columnWriter.WriteColumns(ctx, key, *batch, WriteOptions{
		SortColumns:  opts.SortColumns,
		Compression:  opts.Compression,
		RowGroupSize: opts.RowGroupSize,
	})
	if err != nil {
		return FileMarker{}, nil, err
	}

	schema, err := c.describer.Describe(ctx, *batch)
	if err != nil {
		return FileMarker{}, nil, err
	}

	marker := FileMarker{
		Path:      key,
		FileBytes: fileBytes,
		CreatedMS: c.clock(),
	}
	return marker, schema, nil
}

// bucketRows groups rows by partition, resolving each row's partition
// via its override or opts.PartitionFunc (spec.md §4.5).
func bucketRows(rows []Row, opts InsertOptions) (map[string][]Row, error) {
	buckets := make(map[string][]Row)
	for _, r := range rows {
		partition := r.PartitionOverride
		if partition == "" {
			if opts.PartitionFunc == nil {
				return nil, catalogerrors.New(catalogerrors.CodeProcessingInvalid, "catalog", "insert", "row has no partition override and no PartitionFunc was supplied")
			}
			partition = opts.PartitionFunc(r.Values)
		}
		buckets[partition] = append(buckets[partition], r)
	}
	return buckets, nil
}

// rowBatchFromRows flattens a bucket's rows into a RowBatch, stripping
// the partition override column unless the caller asked to keep it.
func rowBatchFromRows(partition string, rows []Row, opts InsertOptions) *RowBatch {
	batch := NewRowBatch(partition)
	for _, r := range rows {
		values := r.Values
		if r.PartitionOverride != "" && opts.KeepPartitionColumn == "" {
			trimmed := make(map[string]any, len(values))
			for k, v := range values {
				trimmed[k] = v
			}
			delete(trimmed, "_partition")
			values = trimmed
		}
		batch.Append(values)
	}
	return batch
}
