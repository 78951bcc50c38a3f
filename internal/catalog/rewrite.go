package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// RewriteResult is the outcome of a Rewrite call (spec.md §4.8).
type RewriteResult struct {
	LogKey     string
	Header     LogMetadata
	NewMarkers []FileMarker
}

// Rewrite replaces every live file in one partition with the output of a
// user query run per-file by the external Rewriter, over the logical
// name `_rows` bound to one source file at a time (spec.md §4.8). Use
// cases: per-user deletion, per-partition deduplication, targeted schema
// cleanup. The query must not add columns beyond the current schema —
// the schema is carried forward unchanged, never re-described.
func (c *Catalog) Rewrite(ctx context.Context, partition, query string) (RewriteResult, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"component": "catalog", "operation": "rewrite", "partition": partition})

	keys, err := currentLogKeys(ctx, c.store, c.prefix)
	if err != nil {
		c.observeOperation("rewrite", "error", time.Since(start))
		return RewriteResult{}, err
	}
	fold, err := foldForward(ctx, c.store, keys)
	if err != nil {
		c.observeOperation("rewrite", "error", time.Since(start))
		return RewriteResult{}, err
	}

	var liveInPartition []FileMarker
	for path, fm := range fold.Markers {
		if fm.Alive() && partitionFromDataKey(c.prefix, path) == partition {
			liveInPartition = append(liveInPartition, fm)
		}
	}
	if len(liveInPartition) == 0 {
		c.observeOperation("rewrite", "noop", time.Since(start))
		return RewriteResult{}, nil
	}
	sort.Slice(liveInPartition, func(i, j int) bool { return liveInPartition[i].Path < liveInPartition[j].Path })

	now := c.clock()
	newMarkers := make([]FileMarker, 0, len(liveInPartition))
	touchedLogs := make(map[string]bool)

	for _, fm := range liveInPartition {
		destKey := dataKey(c.prefix, partition)
		fileBytes, err := c.rewriter.Rewrite(ctx, []string{fm.Path}, query, destKey)
		if err != nil {
			c.observeOperation("rewrite", "error", time.Since(start))
			return RewriteResult{}, err
		}
		newMarkers = append(newMarkers, FileMarker{Path: destKey, FileBytes: fileBytes, CreatedMS: now})
		if lk := fm.SourceLogKey(); lk != "" {
			touchedLogs[lk] = true
		}
	}

	markers := make([]FileMarker, 0, len(fold.Markers)+len(newMarkers))
	for path, fm := range fold.Markers {
		if fm.Alive() && partitionFromDataKey(c.prefix, path) == partition {
			fm = fm.WithTombstone(now)
		}
		markers = append(markers, fm)
	}
	markers = append(markers, newMarkers...)

	var touchedKeys []string
	for k := range touchedLogs {
		touchedKeys = append(touchedKeys, k)
	}
	sort.Strings(touchedKeys)
	tombstones := make([]LogTombstone, 0, len(touchedKeys))
	for _, k := range touchedKeys {
		tombstones = append(tombstones, LogTombstone{Path: k, CreatedMS: now})
	}

	result, err := appendLog(ctx, c.store, c.prefix, fold.Schema, markers, tombstones, true, c.hostID, now)
	if err != nil {
		c.observeOperation("rewrite", "error", time.Since(start))
		return RewriteResult{}, err
	}

	log.WithFields(logrus.Fields{
		"files_rewritten": len(liveInPartition),
		"duration":        time.Since(start),
		"log_key":         result.Key,
	}).Info("rewrite complete")
	c.observeOperation("rewrite", "success", time.Since(start))

	return RewriteResult{LogKey: result.Key, Header: result.Header, NewMarkers: newMarkers}, nil
}
