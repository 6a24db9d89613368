package tilestream

import (
	"context"
	"io"
	"time"
)

// Source opens the binary payload of a tile. Open returns once response
// headers are available; a non-2xx response must produce an error wrapping
// ErrUnexpectedStatus (or ErrTileNotFound for 404).
type Source interface {
	Open(ctx context.Context, key Key) (io.ReadCloser, error)
}

// Drawable is an opaque renderable handle produced by a Materializer.
type Drawable any

type Materializer interface {
	Build(key Key, vertices []float32) (Drawable, error)
	// Dispose releases geometry and material resources. Called exactly once per Drawable.
	Dispose(d Drawable)
}

type Scene interface {
	Add(d Drawable)
	Remove(d Drawable)
}

type Metrics interface {
	FetchStarted()
	TileLoaded(points int, elapsed time.Duration)
	TileBroken(reason string)
	TileDiscarded()
	TileEvicted(points int)
}

type nopMetrics struct{}

func (nopMetrics) FetchStarted()                 {}
func (nopMetrics) TileLoaded(int, time.Duration) {}
func (nopMetrics) TileBroken(string)             {}
func (nopMetrics) TileDiscarded()                {}
func (nopMetrics) TileEvicted(int)               {}
