package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// CollectResult is the outcome of a Collect call (spec.md §4.9).
type CollectResult struct {
	ConsolidatedLog string
	DeletedLogs     []string
	DeletedData     []string
}

// Collect walks every merge log object, physically deletes the data and
// log objects those logs tombstoned more than minAge ago, and replaces
// the merge logs with one fresh consolidated merge log object
// (spec.md §4.9).
//
// The order is: delete the tombstoned data and log objects, append the
// consolidated log object, then delete the old merge log objects. A
// crash after the first deletes and before the append leaves the old
// merge logs naming objects that no longer exist, but only as
// tombstones, so the live set is unchanged; a crash after the append
// leaves extra unconsolidated log objects a future fold-forward handles
// idempotently (I2, I4).
func (c *Catalog) Collect(ctx context.Context, minAgeMs int64) (CollectResult, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"component": "catalog", "operation": "collect"})

	now := c.clock()
	cutoff := now - minAgeMs

	keys, err := currentLogKeys(ctx, c.store, c.prefix)
	if err != nil {
		c.observeOperation("collect", "error", time.Since(start))
		return CollectResult{}, err
	}
	authoritative, err := foldForward(ctx, c.store, keys)
	if err != nil {
		c.observeOperation("collect", "error", time.Since(start))
		return CollectResult{}, err
	}

	var mergeKeys []string
	for _, k := range keys {
		if isMergeKey(k) {
			mergeKeys = append(mergeKeys, k)
		}
	}
	sort.Strings(mergeKeys)

	keepFMs := make(map[string]FileMarker)
	keepLTs := make(map[string]LogTombstone)
	deleteLogs := make(map[string]bool)
	deleteData := make(map[string]bool)
	schema := NewSchema()

	for _, mk := range mergeKeys {
		parsed, err := foldForward(ctx, c.store, []string{mk})
		if err != nil {
			c.observeOperation("collect", "error", time.Since(start))
			return CollectResult{}, err
		}
		if _, err := schema.AccumulateSchema(parsed.Schema); err != nil {
			c.observeOperation("collect", "error", time.Since(start))
			return CollectResult{}, err
		}

		for path, lt := range parsed.Tombstones {
			if lt.CreatedMS <= cutoff {
				deleteLogs[path] = true
			} else {
				keepLTs[path] = lt
			}
		}

		for path, fm := range parsed.Markers {
			effective := fm
			if live, ok := authoritative.Markers[path]; ok && live.Tombstone != nil {
				effective = live
			}
			if effective.Tombstone != nil && *effective.Tombstone <= cutoff {
				deleteData[path] = true
			} else {
				keepFMs[path] = fm
			}
		}
	}

	for path := range deleteData {
		if err := c.store.Delete(ctx, path); err != nil {
			c.observeOperation("collect", "error", time.Since(start))
			return CollectResult{}, err
		}
	}
	for path := range deleteLogs {
		if err := c.store.Delete(ctx, path); err != nil {
			c.observeOperation("collect", "error", time.Since(start))
			return CollectResult{}, err
		}
	}

	var keptFMList []FileMarker
	for _, fm := range keepFMs {
		keptFMList = append(keptFMList, fm)
	}
	sort.Slice(keptFMList, func(i, j int) bool { return keptFMList[i].Path < keptFMList[j].Path })

	var keptLTList []LogTombstone
	for _, lt := range keepLTs {
		keptLTList = append(keptLTList, lt)
	}
	sort.Slice(keptLTList, func(i, j int) bool { return keptLTList[i].Path < keptLTList[j].Path })

	result, err := appendLog(ctx, c.store, c.prefix, schema, keptFMList, keptLTList, true, c.hostID, now)
	if err != nil {
		c.observeOperation("collect", "error", time.Since(start))
		return CollectResult{}, err
	}

	var deletedLogList, deletedDataList []string
	for k := range deleteLogs {
		deletedLogList = append(deletedLogList, k)
	}
	for k := range deleteData {
		deletedDataList = append(deletedDataList, k)
	}
	sort.Strings(deletedLogList)
	sort.Strings(deletedDataList)

	for _, mk := range mergeKeys {
		if err := c.store.Delete(ctx, mk); err != nil {
			c.observeOperation("collect", "error", time.Since(start))
			return CollectResult{}, err
		}
	}

	log.WithFields(logrus.Fields{
		"consolidated": result.Key,
		"deleted_logs": len(deletedLogList),
		"deleted_data": len(deletedDataList),
		"duration":     time.Since(start),
	}).Info("collect complete")
	c.observeOperation("collect", "success", time.Since(start))

	return CollectResult{
		ConsolidatedLog: result.Key,
		DeletedLogs:     deletedLogList,
		DeletedData:     deletedDataList,
	}, nil
}
