package usecase

import (
	"context"
	"io"

	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
)

type emptySource struct{}

func (emptySource) Open(context.Context, tilestream.Key) (io.ReadCloser, error) {
	return nil, tilestream.ErrTileNotFound
}

type nopMaterializer struct{}

func (nopMaterializer) Build(tilestream.Key, []float32) (tilestream.Drawable, error) {
	return struct{}{}, nil
}

func (nopMaterializer) Dispose(tilestream.Drawable) {}

type nopScene struct{}

func (nopScene) Add(tilestream.Drawable)    {}
func (nopScene) Remove(tilestream.Drawable) {}
