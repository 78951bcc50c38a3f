package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// RemoveResult is the outcome of a Remove call (spec.md §4.7).
type RemoveResult struct {
	LogKey     string
	Header     LogMetadata
	Tombstoned int
}

// Remove tombstones every live marker in the partitions a predicate
// selects, with no data I/O (spec.md §4.7): a log-only merge that marks
// whole partitions as gone.
func (c *Catalog) Remove(ctx context.Context, predicate func(partitions []string) []string) (RemoveResult, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"component": "catalog", "operation": "remove"})

	keys, err := currentLogKeys(ctx, c.store, c.prefix)
	if err != nil {
		c.observeOperation("remove", "error", time.Since(start))
		return RemoveResult{}, err
	}
	fold, err := foldForward(ctx, c.store, keys)
	if err != nil {
		c.observeOperation("remove", "error", time.Since(start))
		return RemoveResult{}, err
	}

	livePartitions := make(map[string]bool)
	for path, fm := range fold.Markers {
		if fm.Alive() {
			livePartitions[partitionFromDataKey(c.prefix, path)] = true
		}
	}
	var partitionList []string
	for p := range livePartitions {
		partitionList = append(partitionList, p)
	}
	sort.Strings(partitionList)

	dropped := make(map[string]bool)
	for _, p := range predicate(partitionList) {
		dropped[p] = true
	}

	now := c.clock()
	markers := make([]FileMarker, 0, len(fold.Markers))
	touchedLogs := make(map[string]bool)
	tombstoned := 0
	for path, fm := range fold.Markers {
		if fm.Alive() && dropped[partitionFromDataKey(c.prefix, path)] {
			fm = fm.WithTombstone(now)
			tombstoned++
			if lk := fm.SourceLogKey(); lk != "" {
				touchedLogs[lk] = true
			}
		}
		markers = append(markers, fm)
	}

	if tombstoned == 0 {
		c.observeOperation("remove", "noop", time.Since(start))
		return RemoveResult{}, nil
	}

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
		c.observeOperation("remove", "error", time.Since(start))
		return RemoveResult{}, err
	}

	log.WithFields(logrus.Fields{
		"partitions": len(dropped),
		"tombstoned": tombstoned,
		"duration":   time.Since(start),
		"log_key":    result.Key,
	}).Info("remove complete")
	c.observeOperation("remove", "success", time.Since(start))

	return RemoveResult{LogKey: result.Key, Header: result.Header, Tombstoned: tombstoned}, nil
}
