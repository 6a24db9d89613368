package scene

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
)

type EventType string

const (
	EventAdd    EventType = "add"
	EventRemove EventType = "remove"
)

type Event struct {
	Seq    uint64     `json:"seq"`
	Type   EventType  `json:"type"`
	Object ObjectInfo `json:"object"`
}

type ObjectInfo struct {
	ID        uuid.UUID      `json:"id"`
	Key       tilestream.Key `json:"key"`
	Points    int            `json:"points"`
	Min       [3]float64     `json:"min"`
	Max       [3]float64     `json:"max"`
	PointSize float64        `json:"point_size"`
}

func infoOf(p *PointSet) ObjectInfo {
	return ObjectInfo{
		ID:        p.ID,
		Key:       p.Key,
		Points:    p.Points(),
		Min:       [3]float64{p.Min.X, p.Min.Y, p.Min.Z},
		Max:       [3]float64{p.Max.X, p.Max.Y, p.Max.Z},
		PointSize: p.PointSize,
	}
}

// Subscription receives scene events until it is closed or falls behind.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	scene  *Scene
	closed bool
}

func (s *Subscription) Close() {
	s.scene.unsubscribe(s)
}

// Scene is a headless scene graph holding the point sets attached by the tile
// manager.
type Scene struct {
	logger logger.Logger

	mu      sync.RWMutex
	objects map[uuid.UUID]*PointSet
	seq     uint64
	subs    map[*Subscription]struct{}
}

var _ tilestream.Scene = (*Scene)(nil)

func New(l logger.Logger) *Scene {
	return &Scene{
		logger:  l,
		objects: make(map[uuid.UUID]*PointSet),
		subs:    make(map[*Subscription]struct{}),
	}
}

func (s *Scene) Add(d tilestream.Drawable) {
	p, ok := d.(*PointSet)
	if !ok {
		s.logger.Error("refusing to add unknown drawable", "type", fmt.Sprintf("%T", d))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[p.ID]; exists {
		s.logger.Warn("point set already in scene", "id", p.ID, "key", p.Key.String())
		return
	}
	s.objects[p.ID] = p
	s.publishLocked(EventAdd, p)
}

func (s *Scene) Remove(d tilestream.Drawable) {
	p, ok := d.(*PointSet)
	if !ok {
		s.logger.Error("refusing to remove unknown drawable", "type", fmt.Sprintf("%T", d))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[p.ID]; !exists {
		s.logger.Warn("point set not in scene", "id", p.ID, "key", p.Key.String())
		return
	}
	delete(s.objects, p.ID)
	s.publishLocked(EventRemove, p)
}

func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Scene) Object(id uuid.UUID) (*PointSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.objects[id]
	return p, ok
}

// Objects lists the scene ordered by tier, then origin.
func (s *Scene) Objects() []ObjectInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objectsLocked()
}

func (s *Scene) objectsLocked() []ObjectInfo {
	out := make([]ObjectInfo, 0, len(s.objects))
	for _, p := range s.objects {
		out = append(out, infoOf(p))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.OriginX != b.OriginX {
			return a.OriginX < b.OriginX
		}
		return a.OriginY < b.OriginY
	})
	return out
}

// Points is the total number of points attached.
func (s *Scene) Points() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.objects {
		n += p.Points()
	}
	return n
}

// Subscribe returns the current objects and a subscription that receives every
// later change. A subscriber whose buffer fills up is dropped and its channel
// closed.
func (s *Scene) Subscribe(buffer int) ([]ObjectInfo, *Subscription) {
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, scene: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub] = struct{}{}
	return s.objectsLocked(), sub
}

func (s *Scene) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(sub)
}

func (s *Scene) dropLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(s.subs, sub)
	close(sub.ch)
}

func (s *Scene) publishLocked(t EventType, p *PointSet) {
	s.seq++
	ev := Event{Seq: s.seq, Type: t, Object: infoOf(p)}
	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			s.logger.Warn("dropping slow scene subscriber", "seq", ev.Seq)
			s.dropLocked(sub)
		}
	}
}
