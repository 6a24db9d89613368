package cache

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressedCache stores zstd-compressed payloads in an underlying cache.
type CompressedCache struct {
	inner TileCache
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func NewCompressedCache(inner TileCache) (*CompressedCache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &CompressedCache{inner: inner, enc: enc, dec: dec}, nil
}

var _ TileCache = (*CompressedCache)(nil)

func (c *CompressedCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	v, ok, err := c.inner.Get(ctx, k)
	if err != nil || !ok {
		return nil, ok, err
	}

	raw, err := c.dec.DecodeAll(v, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress tile %s: %w", k, err)
	}
	return raw, true, nil
}

func (c *CompressedCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	return c.inner.Set(ctx, k, c.enc.EncodeAll(v, nil))
}
