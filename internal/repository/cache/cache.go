package cache

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/config"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
)

type TileCacheKey struct {
	OriginX int64
	OriginY int64
	Size    int64
}

func (k TileCacheKey) String() string {
	return fmt.Sprintf("%d_%d_%d", k.OriginX, k.OriginY, k.Size)
}

type TileCacheValue []byte

// TileCache stores raw tile payloads. A miss is (nil, false, nil).
type TileCache interface {
	Get(context.Context, TileCacheKey) (TileCacheValue, bool, error)
	Set(context.Context, TileCacheKey, TileCacheValue) error
}

// New builds the backend selected by cfg.Backend. The returned func releases
// backend resources.
func New(cfg config.Cache, redisCfg config.Redis, l logger.Logger) (TileCache, func() error, error) {
	var (
		c       TileCache
		closeFn = func() error { return nil }
	)

	switch cfg.Backend {
	case "none", "":
		c = NoopCache{}
	case "memory":
		c = NewMapCache()
	case "filesystem":
		fs, err := NewFilesystemCache(cfg.FSDir)
		if err != nil {
			return nil, nil, err
		}
		c = fs
	case "sqlite":
		s, err := NewSQLiteCache(cfg.SQLitePath, l)
		if err != nil {
			return nil, nil, err
		}
		c, closeFn = s, s.Close
	case "redis":
		r, err := NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		}, l)
		if err != nil {
			return nil, nil, err
		}
		c, closeFn = r, r.Close
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if cfg.Compress {
		z, err := NewCompressedCache(c)
		if err != nil {
			return nil, nil, err
		}
		c = z
	}

	l.Info("tile cache initialized", "backend", cfg.Backend, "compress", cfg.Compress)

	return c, closeFn, nil
}

type NoopCache struct{}

var _ TileCache = NoopCache{}

func (NoopCache) Get(context.Context, TileCacheKey) (TileCacheValue, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, TileCacheKey, TileCacheValue) error {
	return nil
}
