package usecase

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/jaennil/guide_helper/backend/pointcloud/internal/scene"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type TextureUseCase struct {
	groundURL  string
	ceilingURL string
	httpClient *http.Client
	logger     logger.Logger
}

func NewTextureUseCase(groundURL, ceilingURL string, l logger.Logger) *TextureUseCase {
	return &TextureUseCase{
		groundURL:  groundURL,
		ceilingURL: ceilingURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: l,
	}
}

// Load fetches both elevation maps concurrently. Either failing fails the load.
func (uc *TextureUseCase) Load(ctx context.Context) (*scene.Textures, error) {
	var textures scene.Textures

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := uc.fetchPNG(ctx, uc.groundURL)
		if err != nil {
			return fmt.Errorf("ground texture: %w", err)
		}
		textures.Ground = img
		return nil
	})
	g.Go(func() error {
		img, err := uc.fetchPNG(ctx, uc.ceilingURL)
		if err != nil {
			return fmt.Errorf("ceiling texture: %w", err)
		}
		textures.Ceiling = img
		return nil
	})

	if err := g.Wait(); err != nil {
		uc.logger.Error("failed to load textures", "error", err)
		return nil, err
	}

	uc.logger.Info("textures loaded",
		"ground", textures.Ground.Bounds().Size().String(),
		"ceiling", textures.Ceiling.Bounds().Size().String(),
	)
	return &textures, nil
}

func (uc *TextureUseCase) fetchPNG(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return img, nil
}
