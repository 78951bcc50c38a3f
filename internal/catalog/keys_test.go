package catalog

import (
	"sort"
	"testing"
)

// P6: log key order equals timestamp order (I1).
func TestLogKeyOrderMatchesTimestampOrder(t *testing.T) {
	timestamps := []int64{1700000000001, 1700000000002, 1699999999999, 1700000000100}
	keys := make([]string, len(timestamps))
	for i, ts := range timestamps {
		keys[i] = logKey("tbl", ts, false, "host-a")
	}

	sortedByTimestamp := append([]int64(nil), timestamps...)
	sort.Slice(sortedByTimestamp, func(i, j int) bool { return sortedByTimestamp[i] < sortedByTimestamp[j] })

	sortedKeys := append([]string(nil), keys...)
	sort.Strings(sortedKeys)

	for i, ts := range sortedByTimestamp {
		want := logKey("tbl", ts, false, "host-a")
		if sortedKeys[i] != want {
			t.Fatalf("at index %d: lexicographic sort gave %q, want %q", i, sortedKeys[i], want)
		}
	}
}

func TestIsMergeKey(t *testing.T) {
	plain := logKey("tbl", 1700000000000, false, "host-a")
	merged := logKey("tbl", 1700000000000, true, "host-a")
	if isMergeKey(plain) {
		t.Fatalf("plain key %q should not be a merge key", plain)
	}
	if !isMergeKey(merged) {
		t.Fatalf("merged key %q should be a merge key", merged)
	}
}

func TestPartitionFromDataKey(t *testing.T) {
	key := dataKey("tbl", "u=A/d=2024-01-01")
	got := partitionFromDataKey("tbl", key)
	if got != "u=A/d=2024-01-01" {
		t.Fatalf("got partition %q, want u=A/d=2024-01-01", got)
	}
}

func TestLogKeyTimestampRoundTrips(t *testing.T) {
	key := logKey("tbl", 1700000000123, false, "host-a")
	ts, err := logKeyTimestamp(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != 1700000000123 {
		t.Fatalf("got %d, want 1700000000123", ts)
	}
}
