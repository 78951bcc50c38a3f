package codec

import (
	"testing"

	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveKnownCodecs(t *testing.T) {
	r := NewRegistry()

	cases := map[string]compress.Compression{
		"none":   compress.Codecs.Uncompressed,
		"snappy": compress.Codecs.Snappy,
		"gzip":   compress.Codecs.Gzip,
		"zstd":   compress.Codecs.Zstd,
		"lz4":    compress.Codecs.Lz4Raw,
	}

	for name, want := range cases {
		got, err := r.Resolve(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRegistryResolveEmptyUsesDefault(t *testing.T) {
	r := NewRegistry()

	got, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Snappy, got)
}

func TestRegistryResolveUnknownCodec(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("brotli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODEC_UNSUPPORTED")
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	assert.Equal(t, []string{"gzip", "lz4", "none", "snappy", "zstd"}, names)
}
