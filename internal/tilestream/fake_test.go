package tilestream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
)

// fakeSource serves one point per tile unless configured otherwise.
type fakeSource struct {
	mu       sync.Mutex
	calls    map[Key]int
	order    []Key
	status   map[Key]int
	payloads map[Key][]byte

	// openHook runs inside Open before headers are "received".
	openHook func(ctx context.Context, key Key) error
	// bodyHook runs before the body is read.
	bodyHook func(key Key)

	started chan Key
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:    make(map[Key]int),
		status:   make(map[Key]int),
		payloads: make(map[Key][]byte),
		started:  make(chan Key, 1024),
	}
}

func (s *fakeSource) Open(ctx context.Context, key Key) (io.ReadCloser, error) {
	s.mu.Lock()
	s.calls[key]++
	s.order = append(s.order, key)
	openHook := s.openHook
	bodyHook := s.bodyHook
	code, hasStatus := s.status[key]
	payload, hasPayload := s.payloads[key]
	s.mu.Unlock()

	s.started <- key

	if openHook != nil {
		if err := openHook(ctx, key); err != nil {
			return nil, err
		}
	}

	if hasStatus {
		if code == 404 {
			return nil, fmt.Errorf("%w: %s", ErrTileNotFound, key)
		}
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
	if !hasPayload {
		payload = EncodePoints([]float32{float32(key.OriginX), float32(key.OriginY), 1})
	}

	return &hookedBody{r: bytes.NewReader(payload), key: key, hook: bodyHook}, nil
}

func (s *fakeSource) callCount(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *fakeSource) callOrder() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Key(nil), s.order...)
}

func (s *fakeSource) waitStarted(t *testing.T, key Key) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case k := <-s.started:
			if k == key {
				return
			}
		case <-timeout:
			t.Fatalf("fetch for %s never started", key)
		}
	}
}

// waitStartedN blocks until n more fetches have entered Open.
func (s *fakeSource) waitStartedN(t *testing.T, n int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-s.started:
		case <-timeout:
			t.Fatalf("only %d of %d fetches started", i, n)
		}
	}
}

type hookedBody struct {
	r    *bytes.Reader
	key  Key
	hook func(Key)
	once sync.Once
}

func (b *hookedBody) Read(p []byte) (int, error) {
	if b.hook != nil {
		b.once.Do(func() { b.hook(b.key) })
	}
	return b.r.Read(p)
}

func (b *hookedBody) Close() error { return nil }

type fakeDrawable struct {
	key      Key
	points   int
	disposed int
}

type fakeMaterializer struct {
	mu    sync.Mutex
	built []*fakeDrawable
	fail  map[Key]bool
}

func (m *fakeMaterializer) Build(key Key, vertices []float32) (Drawable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[key] {
		return nil, fmt.Errorf("shader compile failed")
	}
	d := &fakeDrawable{key: key, points: len(vertices) / 3}
	m.built = append(m.built, d)
	return d, nil
}

func (m *fakeMaterializer) Dispose(d Drawable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.(*fakeDrawable).disposed++
}

func (m *fakeMaterializer) builtFor(key Key) []*fakeDrawable {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fakeDrawable
	for _, d := range m.built {
		if d.key == key {
			out = append(out, d)
		}
	}
	return out
}

type fakeScene struct {
	mu      sync.Mutex
	objects map[*fakeDrawable]struct{}
}

func newFakeScene() *fakeScene {
	return &fakeScene{objects: make(map[*fakeDrawable]struct{})}
}

func (s *fakeScene) Add(d Drawable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[d.(*fakeDrawable)] = struct{}{}
}

func (s *fakeScene) Remove(d Drawable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, d.(*fakeDrawable))
}

func (s *fakeScene) keys() map[Key]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]int)
	for d := range s.objects {
		out[d.key]++
	}
	return out
}

type fakeMetrics struct {
	mu        sync.Mutex
	started   int
	loaded    int
	broken    map[string]int
	discarded int
	evicted   int
}

func (m *fakeMetrics) FetchStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *fakeMetrics) TileLoaded(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded++
}

func (m *fakeMetrics) TileBroken(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken == nil {
		m.broken = make(map[string]int)
	}
	m.broken[reason]++
}

func (m *fakeMetrics) TileDiscarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded++
}

func (m *fakeMetrics) TileEvicted(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted++
}

type harness struct {
	manager      *Manager
	source       *fakeSource
	materializer *fakeMaterializer
	scene        *fakeScene
	metrics      *fakeMetrics
}

var testBounds = Bounds{XMin: 0, XMax: 1000, YMin: 0, YMax: 1000}

func newHarness(t *testing.T, tiers Tiers, tweak func(*Options)) *harness {
	t.Helper()
	h := &harness{
		source:       newFakeSource(),
		materializer: &fakeMaterializer{fail: make(map[Key]bool)},
		scene:        newFakeScene(),
		metrics:      &fakeMetrics{},
	}
	opts := Options{
		Bounds:       testBounds,
		Tiers:        tiers,
		Source:       h.source,
		Materializer: h.materializer,
		Scene:        h.scene,
		Metrics:      h.metrics,
	}
	if tweak != nil {
		tweak(&opts)
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	h.manager = m
	return h
}

// assertSceneMatchesDesired checks that the scene holds exactly one object per
// loaded key and nothing outside the current desired set.
func (h *harness) assertSceneMatchesDesired(t *testing.T) {
	t.Helper()
	desired := h.manager.Desired()
	keys := h.scene.keys()
	for k, n := range keys {
		if n != 1 {
			t.Fatalf("key %s attached %d times", k, n)
		}
		if !desired.Contains(k) {
			t.Fatalf("key %s attached but not desired", k)
		}
	}
	for _, k := range desired.Keys() {
		st, _ := h.manager.Status(k)
		_, attached := keys[k]
		if (st.State == StateLoaded) != attached {
			t.Fatalf("key %s state %s but attached=%v", k, st.State, attached)
		}
	}
}

func pos(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}
