package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	logDir  = "_log"
	dataDir = "_data"

	// tsWidth zero-pads millisecond timestamps wide enough to sort
	// lexicographically through the year 2286 (I1), matching spec.md
	// §6's "zero-padded so all keys sort together correctly".
	tsWidth = 13

	mergeMarker = "_m"
)

// logKey builds a log object key: <prefix>/_log/<ts>[_m]_<host>.jsonl
// (spec.md §6).
func logKey(prefix string, timestampMS int64, merged bool, host string) string {
	ts := zeroPad(timestampMS, tsWidth)
	suffix := ""
	if merged {
		suffix = mergeMarker
	}
	return fmt.Sprintf("%s/%s/%s%s_%s.jsonl", strings.TrimSuffix(prefix, "/"), logDir, ts, suffix, host)
}

// dataKey builds a data object key: <prefix>/_data/<partition>/<uuid>.parquet
// (spec.md §6).
func dataKey(prefix, partition string) string {
	return fmt.Sprintf("%s/%s/%s/%s.parquet", strings.TrimSuffix(prefix, "/"), dataDir, partition, uuid.NewString())
}

// logPrefix returns the prefix under which every log object for this
// catalog lives, for use with Store.List.
func logPrefix(prefix string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimSuffix(prefix, "/"), logDir)
}

// dataPrefix returns the prefix under which every data object lives.
func dataPrefix(prefix string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimSuffix(prefix, "/"), dataDir)
}

// isMergeKey reports whether a log key carries the "_m" merge marker
// (spec.md §4.9: "merge log objects... keys containing the _m marker").
func isMergeKey(key string) bool {
	name := baseName(key)
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return false
	}
	return strings.HasPrefix(parts[1], "m_")
}

// logKeyTimestamp extracts the embedded millisecond timestamp from a log
// key, for I1 ordering checks and the readAtMaxTime filter (spec.md
// §4.2).
func logKeyTimestamp(key string) (int64, error) {
	name := baseName(key)
	name = strings.TrimSuffix(name, ".jsonl")
	tsPart := name
	if idx := strings.Index(name, "_"); idx >= 0 {
		tsPart = name[:idx]
	}
	return strconv.ParseInt(tsPart, 10, 64)
}

// partitionFromDataKey recovers a data object's partition by stripping
// the _data/ prefix and the filename (spec.md §3).
func partitionFromDataKey(prefix, key string) string {
	base := fmt.Sprintf("%s/%s/", strings.TrimSuffix(prefix, "/"), dataDir)
	rest := strings.TrimPrefix(key, base)
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return ""
	}
	return rest[:idx]
}

func baseName(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

func zeroPad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
