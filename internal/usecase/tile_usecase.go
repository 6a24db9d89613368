package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jaennil/guide_helper/backend/pointcloud/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "GuideHelper-PointCloud/1.0 (https://github.com/jaennil/guide_helper)"

// TileUseCase opens tile payloads from the dataset bucket, consulting the
// payload cache first.
type TileUseCase struct {
	baseURL    string
	cache      cache.TileCache
	httpClient *http.Client
	logger     logger.Logger
}

var _ tilestream.Source = (*TileUseCase)(nil)

func NewTileUseCase(baseURL string, timeout time.Duration, c cache.TileCache, l logger.Logger) *TileUseCase {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &TileUseCase{
		baseURL: baseURL,
		cache:   c,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: l,
	}
}

func (uc *TileUseCase) TileURL(key tilestream.Key) string {
	return fmt.Sprintf("%s/tile_%s.bin", uc.baseURL, key)
}

func (uc *TileUseCase) Open(ctx context.Context, key tilestream.Key) (io.ReadCloser, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "tiles.fetch",
		trace.WithAttributes(
			attribute.String("tile.key", key.String()),
			attribute.Int64("tile.size", key.Size),
		),
	)

	cacheKey := cache.TileCacheKey{OriginX: key.OriginX, OriginY: key.OriginY, Size: key.Size}

	data, exists, err := uc.cache.Get(ctx, cacheKey)
	if err != nil {
		uc.logger.Warn("failed to check cache, will fetch from upstream", "key", key.String(), "error", err)
	} else if exists {
		metrics.TilesCacheHits.Inc()
		span.SetAttributes(attribute.Bool("tile.cache_hit", true))
		span.End()
		uc.logger.Debug("cache hit", "key", key.String(), "size", len(data))
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	metrics.TilesCacheMisses.Inc()
	span.SetAttributes(attribute.Bool("tile.cache_hit", false))

	url := uc.TileURL(key)
	uc.logger.Debug("fetching from upstream", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, uc.endWithError(span, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	metrics.TilesUpstreamRequests.Inc()
	start := time.Now()
	resp, err := uc.httpClient.Do(req)
	metrics.TilesUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, uc.endWithError(span, fmt.Errorf("failed to fetch tile %s: %w", key, err))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, uc.endWithError(span, fmt.Errorf("%w: %s", tilestream.ErrTileNotFound, key))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, uc.endWithError(span, fmt.Errorf("%w: %d for %s", tilestream.ErrUnexpectedStatus, resp.StatusCode, key))
	}

	return &cachingBody{
		body:  resp.Body,
		key:   cacheKey,
		uc:    uc,
		ctx:   context.WithoutCancel(ctx),
		span:  span,
		limit: resp.ContentLength,
	}, nil
}

func (uc *TileUseCase) endWithError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return err
}

// cachingBody copies the payload as it is read and stores it in the cache
// once the upstream body has been consumed completely.
type cachingBody struct {
	body  io.ReadCloser
	key   cache.TileCacheKey
	uc    *TileUseCase
	ctx   context.Context
	span  trace.Span
	limit int64

	buf    bytes.Buffer
	eof    bool
	failed bool
	closed bool
}

func (b *cachingBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	b.buf.Write(p[:n])
	switch {
	case err == io.EOF:
		b.eof = true
	case err != nil:
		b.failed = true
	}
	return n, err
}

func (b *cachingBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.body.Close()

	b.span.SetAttributes(attribute.Int("tile.bytes", b.buf.Len()))
	b.span.End()

	if !b.eof || b.failed || b.buf.Len() == 0 {
		return err
	}
	if b.limit >= 0 && int64(b.buf.Len()) != b.limit {
		b.uc.logger.Warn("short tile body, not caching", "key", b.key.String(), "got", b.buf.Len(), "want", b.limit)
		return err
	}

	if setErr := b.uc.cache.Set(b.ctx, b.key, b.buf.Bytes()); setErr != nil {
		b.uc.logger.Warn("failed to store tile in cache", "key", b.key.String(), "error", setErr)
	} else {
		metrics.TilesCacheStores.Inc()
	}
	return err
}
