package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// MergeOptions configures one Merge call (spec.md §4.6).
type MergeOptions struct {
	MaxFileSize  int64
	MaxFileCount int

	// Ascending selects least-compacted partitions first instead of the
	// default descending ("most files first") order (spec.md §4.6).
	Ascending bool

	// Query overrides the default `SELECT * FROM source_files` rewrite
	// expression.
	Query string
}

// MergeResult is the outcome of a Merge call that found a cohort to
// compact. A Merge call that finds no partition with a non-trivial
// cohort returns MergeResult{} with ok=false and a nil error (spec.md
// §4.6: "or null tuple if no partition had a non-trivial cohort").
type MergeResult struct {
	LogKey    string
	Header    LogMetadata
	Marker    FileMarker
	Partition string
	Cohort    []FileMarker
}

// Merge picks a partition by cohort-size policy, rewrites its cohort of
// small files into one larger file through the external Rewriter, and
// appends a self-contained merge log object tombstoning the cohort's
// markers and the log objects that introduced them (spec.md §4.6).
func (c *Catalog) Merge(ctx context.Context, opts MergeOptions) (MergeResult, bool, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"component": "catalog", "operation": "merge"})

	keys, err := currentLogKeys(ctx, c.store, c.prefix)
	if err != nil {
		c.observeOperation("merge", "error", time.Since(start))
		return MergeResult{}, false, err
	}
	fold, err := foldForward(ctx, c.store, keys)
	if err != nil {
		c.observeOperation("merge", "error", time.Since(start))
		return MergeResult{}, false, err
	}

	byPartition := make(map[string][]FileMarker)
	for path, fm := range fold.Markers {
		if !fm.Alive() {
			continue
		}
		p := partitionFromDataKey(c.prefix, path)
		byPartition[p] = append(byPartition[p], fm)
	}

	partitions := orderPartitionsByCohortSize(byPartition, opts.Ascending)

	for _, partition := range partitions {
		cohort := selectCohort(byPartition[partition], opts)
		if len(cohort) < 2 {
			continue
		}

		result, err := c.mergeCohort(ctx, partition, cohort, fold, opts)
		if err != nil {
			c.observeOperation("merge", "error", time.Since(start))
			return MergeResult{}, false, err
		}

		log.WithFields(logrus.Fields{
			"partition": partition,
			"cohort":    len(cohort),
			"duration":  time.Since(start),
			"log_key":   result.LogKey,
		}).Info("merge complete")
		c.observeOperation("merge", "success", time.Since(start))
		return result, true, nil
	}

	c.observeOperation("merge", "noop", time.Since(start))
	return MergeResult{}, false, nil
}

// selectCohort sorts a partition's live markers by fileBytes ascending
// and greedily accumulates them until either the byte or count threshold
// is crossed (spec.md §4.6). The marker that crosses a threshold is
// still included before the loop breaks (the resolved Open Question in
// SPEC_FULL.md §4.6: follow spec.md's OR reading, same one-file
// overshoot on the size threshold).
func selectCohort(markers []FileMarker, opts MergeOptions) []FileMarker {
	sorted := append([]FileMarker(nil), markers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FileBytes < sorted[j].FileBytes })

	var cohort []FileMarker
	var accBytes int64
	for _, fm := range sorted {
		cohort = append(cohort, fm)
		accBytes += fm.FileBytes
		if accBytes >= opts.MaxFileSize || len(cohort) >= opts.MaxFileCount {
			break
		}
	}
	return cohort
}

// orderPartitionsByCohortSize sorts partition names by their live marker
// count, descending by default ("recent activity first") or ascending
// when opts.Ascending selects least-compacted partitions first (spec.md
// §4.6).
func orderPartitionsByCohortSize(byPartition map[string][]FileMarker, ascending bool) []string {
	partitions := make([]string, 0, len(byPartition))
	for p := range byPartition {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool {
		ci, cj := len(byPartition[partitions[i]]), len(byPartition[partitions[j]])
		if ci == cj {
			return partitions[i] < partitions[j]
		}
		if ascending {
			return ci < cj
		}
		return ci > cj
	})
	return partitions
}

// mergeCohort rewrites a chosen cohort into one new data object and
// appends the merge log object that supersedes it (spec.md §4.6).
func (c *Catalog) mergeCohort(ctx context.Context, partition string, cohort []FileMarker, fold FoldResult, opts MergeOptions) (MergeResult, error) {
	sources := make([]string, len(cohort))
	cohortPaths := make(map[string]bool, len(cohort))
	sourceLogKeys := make(map[string]bool)
	for i, fm := range cohort {
		sources[i] = fm.Path
		cohortPaths[fm.Path] = true
		if lk := fm.SourceLogKey(); lk != "" {
			sourceLogKeys[lk] = true
		}
	}

	query := opts.Query
	if query == "" {
		query = "SELECT * FROM source_files"
	}

	destKey := dataKey(c.prefix, partition)
	fileBytes, err := c.rewriter.Rewrite(ctx, sources, query, destKey)
	if err != nil {
		return MergeResult{}, err
	}

	now := c.clock()
	newMarker := FileMarker{Path: destKey, FileBytes: fileBytes, CreatedMS: now}

	// Re-fold the cohort's source log objects in isolation so the new
	// log object presents a self-consistent view of the schema and
	// markers it supersedes (spec.md §4.6).
	var sourceKeys []string
	for k := range sourceLogKeys {
		sourceKeys = append(sourceKeys, k)
	}
	sort.Strings(sourceKeys)
	sourceFold, err := foldForward(ctx, c.store, sourceKeys)
	if err != nil {
		return MergeResult{}, err
	}

	markers := make([]FileMarker, 0, len(sourceFold.Markers)+1)
	for _, fm := range sourceFold.Markers {
		if cohortPaths[fm.Path] {
			fm = fm.WithTombstone(now)
		}
		markers = append(markers, fm)
	}
	markers = append(markers, newMarker)

	tombstones := make([]LogTombstone, 0, len(sourceKeys))
	for _, k := range sourceKeys {
		tombstones = append(tombstones, LogTombstone{Path: k, CreatedMS: now})
	}

	result, err := appendLog(ctx, c.store, c.prefix, sourceFold.Schema, markers, tombstones, true, c.hostID, now)
	if err != nil {
		return MergeResult{}, err
	}

	return MergeResult{
		LogKey:    result.Key,
		Header:    result.Header,
		Marker:    newMarker,
		Partition: partition,
		Cohort:    cohort,
	}, nil
}
