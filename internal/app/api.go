package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang/geo/r3"
	v1 "github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/scene"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/usecase"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/config"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("app config", "cfg", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
	}

	tileCache, closeCache, err := cache.New(cfg.Cache, cfg.Redis, l)
	if err != nil {
		l.Fatal("failed to initialize tile cache", "error", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			l.Error("failed to close tile cache", "error", err)
		}
	}()

	tileUseCase := usecase.NewTileUseCase(cfg.Dataset.BaseURL, cfg.Tiles.FetchTimeout, tileCache, l)

	sc := scene.New(l)
	materializer := scene.NewMaterializer(cfg.Tiles.PointSize, l)

	if cfg.Textures.Enabled {
		loadTextures(ctx, usecase.NewTextureUseCase(cfg.Textures.GroundURL, cfg.Textures.CeilingURL, l), materializer, l)
	}

	tiers, err := buildTiers(cfg.Tiles)
	if err != nil {
		l.Fatal("invalid tier configuration", "error", err)
	}

	manager, err := tilestream.NewManager(tilestream.Options{
		Bounds: tilestream.Bounds{
			XMin: cfg.Dataset.XMin,
			XMax: cfg.Dataset.XMax,
			YMin: cfg.Dataset.YMin,
			YMax: cfg.Dataset.YMax,
		},
		Tiers:                tiers,
		Source:               tileUseCase,
		Materializer:         materializer,
		Scene:                sc,
		Logger:               l,
		Metrics:              metrics.TileMetrics{},
		FetchTimeout:         cfg.Tiles.FetchTimeout,
		MaxConcurrentFetches: cfg.Tiles.MaxConcurrentFetches,
		AbortStale:           cfg.Tiles.AbortStale,
		Strict:               cfg.Tiles.Strict,
	})
	if err != nil {
		l.Fatal("failed to create tile manager", "error", err)
	}

	start := r3.Vector{X: cfg.Camera.StartX, Y: cfg.Camera.StartY, Z: cfg.Camera.StartZ}
	viewer := usecase.NewViewerUseCase(manager, cfg.Camera.UpdateInterval, start, l)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		viewer.Run(ctx)
	}()

	validate := validator.New()
	h := handler.NewHandler(validate, manager, viewer, sc, tileUseCase)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server...", "address", httpServer.Addr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
		l.Info("http server stopped", "address", httpServer.Addr)
	}()

	<-ctx.Done()
	l.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http_server shutdown completed")
	}

	wg.Wait()
	manager.Close()

	l.Info("application shutdown completed")
}

func buildTiers(cfg config.Tiles) (tilestream.Tiers, error) {
	specs, err := cfg.TierSpecs()
	if err != nil {
		return nil, err
	}

	tiers := make(tilestream.Tiers, len(specs))
	for _, s := range specs {
		tiers[s.Size] = tilestream.TierConfig{Radius: s.Radius, MaxVisibleHeight: s.MaxVisibleHeight}
	}
	return tiers, tiers.Validate()
}

// loadTextures installs the elevation maps before any tile is built. Tiles
// still stream without them.
func loadTextures(ctx context.Context, uc *usecase.TextureUseCase, m *scene.Materializer, l logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	textures, err := uc.Load(ctx)
	if err != nil {
		l.Warn("continuing without textures", "error", err)
		return
	}
	m.SetTextures(textures)
}
