package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/icedb-go/icedb/pkg/objectstore"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
)

// FoldResult is the derived current state of the catalog at the moment a
// set of log objects was folded: a schema, the live/tombstoned file
// markers, and the live log tombstones (spec.md §4.2).
type FoldResult struct {
	Schema      *Schema
	Markers     map[string]FileMarker // path -> FM, last writer wins (I2)
	Tombstones  map[string]LogTombstone
	LogKeys     []string // the keys folded, ascending (I1)
}

// currentLogKeys lists every log object under prefix's _log/ directory
// (spec.md §4.2).
func currentLogKeys(ctx context.Context, store objectstore.Store, prefix string) ([]string, error) {
	objs, err := store.List(ctx, logPrefix(prefix))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
	}
	// I1: keys already sort lexicographically in timestamp order because
	// of the zero-padded prefix, but List's underlying store is not
	// contractually required to return sorted results, so sort
	// explicitly here.
	sort.Strings(keys)
	return keys, nil
}

// foldForward reads each key in ascending order, parses its sections,
// and accumulates the catalog's current state (spec.md §4.2, I2).
func foldForward(ctx context.Context, store objectstore.Store, keys []string) (FoldResult, error) {
	result := FoldResult{
		Schema:     NewSchema(),
		Markers:    make(map[string]FileMarker),
		Tombstones: make(map[string]LogTombstone),
	}
	if len(keys) == 0 {
		return result, catalogerrors.NoLogs("")
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	for _, key := range sorted {
		data, err := store.Get(ctx, key)
		if err != nil {
			return result, err
		}
		lines := splitLines(data)

		var meta LogMetadata
		if len(lines) == 0 {
			return result, catalogerrors.Corruption(key, "empty log object")
		}
		if err := json.Unmarshal(lines[0], &meta); err != nil {
			return result, catalogerrors.Corruption(key, "invalid header line")
		}
		if meta.SchemaLineIndex <= 0 || meta.SchemaLineIndex >= len(lines) {
			return result, catalogerrors.Corruption(key, "missing schema line")
		}

		var schema Schema
		if err := json.Unmarshal(lines[meta.SchemaLineIndex], &schema); err != nil {
			return result, catalogerrors.Corruption(key, "invalid schema line")
		}
		if _, err := result.Schema.AccumulateSchema(&schema); err != nil {
			return result, err
		}

		if meta.TombstoneLineIndex != nil {
			idx := *meta.TombstoneLineIndex
			for i := idx; i < meta.FileLineIndex && i < len(lines); i++ {
				var lt LogTombstone
				if err := json.Unmarshal(lines[i], &lt); err != nil {
					return result, catalogerrors.Corruption(key, "invalid tombstone line")
				}
				result.Tombstones[lt.Path] = lt
			}
		}

		for i := meta.FileLineIndex; i < len(lines); i++ {
			var fm FileMarker
			if err := json.Unmarshal(lines[i], &fm); err != nil {
				return result, catalogerrors.Corruption(key, "invalid marker line")
			}
			fm.sourceLogKey = key
			result.Markers[fm.Path] = fm // last writer wins, I2
		}

		result.LogKeys = append(result.LogKeys, key)
	}

	return result, nil
}

// readAtMaxTime lists all log keys, drops any whose embedded timestamp
// is >= t, then folds the remainder forward (spec.md §4.2). This fixes
// the Python source's read_at_max_time, whose equivalent timestamp
// check (`if meta.timestamp > timestamp: pass`) never actually excluded
// anything.
func readAtMaxTime(ctx context.Context, store objectstore.Store, prefix string, tMS int64) (FoldResult, error) {
	keys, err := currentLogKeys(ctx, store, prefix)
	if err != nil {
		return FoldResult{}, err
	}
	var filtered []string
	for _, k := range keys {
		ts, err := logKeyTimestamp(k)
		if err != nil {
			return FoldResult{}, catalogerrors.Corruption(k, "unparseable timestamp in key")
		}
		if ts >= tMS {
			continue
		}
		filtered = append(filtered, k)
	}
	return foldForward(ctx, store, filtered)
}

func splitLines(data []byte) [][]byte {
	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return nil
	}
	return bytes.Split(data, []byte("\n"))
}
