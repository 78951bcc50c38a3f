package catalog

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/icedb-go/icedb/pkg/objectstore"
)

// AppendResult is the outcome of writing a new log object (spec.md
// §4.4).
type AppendResult struct {
	Key    string
	Header LogMetadata
}

// appendLog serializes a new log object with the fixed section order
// (header, schema, tombstones?, markers) and a globally-ordered
// filename, then writes it with a single PutNoRetry call — the commit
// point for every catalog operation (spec.md §4.4, §4.5: "the append is
// the commit point"). Log-object writes are never retried
// automatically; the caller sees the error, per spec.md §7.
func appendLog(
	ctx context.Context,
	store objectstore.Store,
	prefix string,
	schema *Schema,
	markers []FileMarker,
	tombstones []LogTombstone,
	merged bool,
	host string,
	timestampMS int64,
) (AppendResult, error) {
	fileLineIndex := 2 + len(tombstones)
	var tombstoneLineIndex *int
	if len(tombstones) > 0 {
		idx := 2
		tombstoneLineIndex = &idx
	}

	meta := LogMetadata{
		Version:            LogVersion,
		SchemaLineIndex:     1,
		FileLineIndex:       fileLineIndex,
		TombstoneLineIndex:  tombstoneLineIndex,
		Timestamp:           timestampMS,
	}

	var buf bytes.Buffer
	if err := writeJSONLine(&buf, meta); err != nil {
		return AppendResult{}, err
	}
	if err := writeJSONLine(&buf, schema); err != nil {
		return AppendResult{}, err
	}
	for _, t := range tombstones {
		if err := writeJSONLine(&buf, t); err != nil {
			return AppendResult{}, err
		}
	}
	for _, m := range markers {
		if err := writeJSONLine(&buf, m); err != nil {
			return AppendResult{}, err
		}
	}

	key := logKey(prefix, timestampMS, merged, host)
	if err := store.PutNoRetry(ctx, key, buf.Bytes()); err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Key: key, Header: meta}, nil
}

func writeJSONLine(buf *bytes.Buffer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	buf.Write(data)
	return nil
}
