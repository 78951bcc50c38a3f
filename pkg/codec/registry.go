// Package codec resolves the compression parameter C named in spec.md §1
// and §4.5 into a concrete parquet/compress.Compression value, validating
// it before any object-store I/O happens.
//
// The registry does not perform compression itself — arrow-go's
// parquet/compress package does that, shelling out internally to
// snappy/zstd/gzip/lz4 codec implementations. This package's job is
// just the name -> enum mapping and the terminal validation error
// spec.md §6 calls for ("validation errors on compression codec").
package codec

import (
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/parquet/compress"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
)

// Name identifies a compression codec by its external, user-facing name.
type Name string

const (
	None   Name = "none"
	Snappy Name = "snappy"
	Gzip   Name = "gzip"
	Zstd   Name = "zstd"
	Lz4    Name = "lz4"
)

// Registry maps codec names to the parquet compression enum that
// implements them. A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byName  map[Name]compress.Compression
	fallback Name
}

// NewRegistry returns a Registry pre-populated with the codecs this
// repository's reference columnar writer supports: snappy, gzip, zstd,
// lz4, and the identity codec "none", each resolving to the matching
// arrow-go parquet/compress.Compression enum value.
func NewRegistry() *Registry {
	r := &Registry{
		byName:   make(map[Name]compress.Compression),
		fallback: Snappy,
	}
	r.register(None, compress.Codecs.Uncompressed)
	r.register(Snappy, compress.Codecs.Snappy)
	r.register(Gzip, compress.Codecs.Gzip)
	r.register(Zstd, compress.Codecs.Zstd)
	r.register(Lz4, compress.Codecs.Lz4Raw)
	return r
}

func (r *Registry) register(name Name, c compress.Compression) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = c
}

// Resolve validates a caller-supplied codec name and returns the
// parquet compression it maps to. An empty name resolves to the
// registry's default (snappy).
func (r *Registry) Resolve(name string) (compress.Compression, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := Name(name)
	if n == "" {
		n = r.fallback
	}
	c, ok := r.byName[n]
	if !ok {
		return 0, catalogerrors.CodecUnsupported(name)
	}
	return c, nil
}

// Names returns every registered codec name, sorted, for diagnostics and
// config validation error messages.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}
