package objectstore

import (
	"context"
	"strings"
)

// PrefixedStore scopes every key passed through it under a fixed prefix
// before delegating to an underlying Store, and strips that prefix back
// off keys returned by List. This is the "bucket with a tenant prefix"
// isolation spec.md §4.1 calls for: a tenant ID is a key-space prefix,
// nothing more, with no per-tenant orchestration struct involved.
type PrefixedStore struct {
	inner  Store
	prefix string
}

// NewPrefixedStore scopes inner under prefix (e.g. a tenant or
// environment identifier). An empty prefix is a valid no-op scoping.
func NewPrefixedStore(inner Store, prefix string) *PrefixedStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &PrefixedStore{inner: inner, prefix: prefix}
}

func (p *PrefixedStore) full(key string) string { return p.prefix + key }

func (p *PrefixedStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	raw, err := p.inner.List(ctx, p.full(prefix))
	if err != nil {
		return nil, err
	}
	out := make([]ObjectInfo, len(raw))
	for i, o := range raw {
		out[i] = ObjectInfo{Key: strings.TrimPrefix(o.Key, p.prefix), Size: o.Size}
	}
	return out, nil
}

func (p *PrefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.full(key))
}

func (p *PrefixedStore) Put(ctx context.Context, key string, data []byte) error {
	return p.inner.Put(ctx, p.full(key), data)
}

func (p *PrefixedStore) PutNoRetry(ctx context.Context, key string, data []byte) error {
	return p.inner.PutNoRetry(ctx, p.full(key), data)
}

func (p *PrefixedStore) Head(ctx context.Context, key string) (int64, error) {
	return p.inner.Head(ctx, p.full(key))
}

func (p *PrefixedStore) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.full(key))
}
