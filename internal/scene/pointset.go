package scene

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
)

var ErrBadVertexCount = errors.New("vertex buffer is not a whole number of points")

// Textures are the elevation maps shared by every point material.
type Textures struct {
	Ground  image.Image
	Ceiling image.Image
}

// PointSet is the drawable built for one tile. Vertices are never modified
// after Build. Min and Max bound the finite points only and are zero when
// there are none.
type PointSet struct {
	ID        uuid.UUID
	Key       tilestream.Key
	Vertices  []float32
	Min       r3.Vector
	Max       r3.Vector
	NonFinite int
	PointSize float64
	Textures  *Textures
	CreatedAt time.Time

	disposed atomic.Bool
}

func (p *PointSet) Points() int {
	return len(p.Vertices) / 3
}

func (p *PointSet) Disposed() bool {
	return p.disposed.Load()
}

type Materializer struct {
	pointSize float64
	logger    logger.Logger

	mu       sync.RWMutex
	textures *Textures

	live atomic.Int64
}

var _ tilestream.Materializer = (*Materializer)(nil)

func NewMaterializer(pointSize float64, l logger.Logger) *Materializer {
	return &Materializer{
		pointSize: pointSize,
		logger:    l,
	}
}

// SetTextures swaps the textures used by point sets built from now on.
func (m *Materializer) SetTextures(t *Textures) {
	m.mu.Lock()
	m.textures = t
	m.mu.Unlock()
}

func (m *Materializer) Build(key tilestream.Key, vertices []float32) (tilestream.Drawable, error) {
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d floats", ErrBadVertexCount, len(vertices))
	}

	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	nonFinite := 0
	for i := 0; i < len(vertices); i += 3 {
		v := r3.Vector{X: float64(vertices[i]), Y: float64(vertices[i+1]), Z: float64(vertices[i+2])}
		if !finite(v) {
			nonFinite++
			continue
		}
		lo = r3.Vector{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vector{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	if nonFinite == len(vertices)/3 {
		lo, hi = r3.Vector{}, r3.Vector{}
	}
	if nonFinite > 0 {
		m.logger.Warn("tile has non-finite points", "key", key.String(), "count", nonFinite)
	}

	m.mu.RLock()
	textures := m.textures
	m.mu.RUnlock()

	m.live.Add(1)

	return &PointSet{
		ID:        uuid.New(),
		Key:       key,
		Vertices:  vertices,
		Min:       lo,
		Max:       hi,
		NonFinite: nonFinite,
		PointSize: m.pointSize,
		Textures:  textures,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Materializer) Dispose(d tilestream.Drawable) {
	p, ok := d.(*PointSet)
	if !ok {
		m.logger.Error("dispose of unknown drawable", "type", fmt.Sprintf("%T", d))
		return
	}
	if p.disposed.Swap(true) {
		m.logger.Warn("point set disposed twice", "id", p.ID, "key", p.Key.String())
		return
	}
	m.live.Add(-1)
}

// Live is the number of point sets built and not yet disposed.
func (m *Materializer) Live() int {
	return int(m.live.Load())
}

func finite(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
