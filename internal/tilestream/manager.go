package tilestream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Bounds       Bounds
	Tiers        Tiers
	Source       Source
	Materializer Materializer
	Scene        Scene
	Logger       logger.Logger
	Metrics      Metrics

	// Zero disables the per-fetch timeout.
	FetchTimeout time.Duration
	// Zero leaves fetch fan-out unbounded.
	MaxConcurrentFetches int
	// Cancel in-flight fetches for keys that leave the desired set.
	AbortStale bool
	// Panic when an out-of-bounds key reaches the fetch stage.
	Strict bool
}

// Manager streams point-cloud tiles around a camera position. It owns every
// drawable it adds to the scene until the tile is evicted.
type Manager struct {
	bounds        Bounds
	source        Source
	materializer  Materializer
	scene         Scene
	logger        logger.Logger
	metrics       Metrics
	fetchTimeout  time.Duration
	maxConcurrent int
	abortStale    bool
	strict        bool
	now           func() time.Time

	mu         sync.Mutex
	tiers      Tiers
	desired    *DesiredSet
	generation uint64
	entries    map[Key]*entry
	closed     bool
}

type Summary struct {
	Generation uint64 `json:"generation"`
	Desired    int    `json:"desired"`
	Requested  int    `json:"requested"`
	Resident   int    `json:"resident"`
	Evicted    int    `json:"evicted"`
}

func NewManager(opts Options) (*Manager, error) {
	if err := opts.Bounds.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Tiers.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, errors.New("tilestream: source is required")
	}
	if opts.Materializer == nil {
		return nil, errors.New("tilestream: materializer is required")
	}
	if opts.Scene == nil {
		return nil, errors.New("tilestream: scene is required")
	}

	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	var metrics Metrics = nopMetrics{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	return &Manager{
		bounds:        opts.Bounds,
		source:        opts.Source,
		materializer:  opts.Materializer,
		scene:         opts.Scene,
		logger:        l,
		metrics:       metrics,
		fetchTimeout:  opts.FetchTimeout,
		maxConcurrent: opts.MaxConcurrentFetches,
		abortStale:    opts.AbortStale,
		strict:        opts.Strict,
		now:           time.Now,
		tiers:         opts.Tiers.Clone(),
		desired:       newDesiredSet(nil),
		entries:       make(map[Key]*entry),
	}, nil
}

// UpdatePosition installs the desired set for pos, loads every desired tile
// that has no state yet and evicts resident tiles that are no longer desired.
// It returns once all loads it started have settled. Per-tile failures are
// never reported to the caller.
func (m *Manager) UpdatePosition(ctx context.Context, pos r3.Vector) Summary {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Summary{}
	}

	desired := ComputeDesiredKeys(m.bounds, pos, m.tiers)
	m.generation++
	desired.Generation = m.generation
	m.desired = desired

	if m.abortStale {
		m.abortStaleLocked()
	}

	var pending []Key
	for _, k := range desired.Keys() {
		if _, ok := m.entries[k]; !ok {
			pending = append(pending, k)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("desired set installed",
		"generation", desired.Generation,
		"x", pos.X, "y", pos.Y, "z", pos.Z,
		"desired", desired.Len(),
		"pending", len(pending),
	)

	var g errgroup.Group
	if m.maxConcurrent > 0 {
		g.SetLimit(m.maxConcurrent)
	}
	for _, k := range pending {
		k := k
		g.Go(func() error {
			m.LoadTile(ctx, k)
			return nil
		})
	}
	_ = g.Wait()

	evicted := m.Reconcile()

	return Summary{
		Generation: desired.Generation,
		Desired:    desired.Len(),
		Requested:  len(pending),
		Resident:   m.Resident(),
		Evicted:    evicted,
	}
}

// LoadTile fetches, decodes and materializes one tile. It returns without
// doing anything if the key already has a state or is not currently desired,
// and blocks until the attempt settles otherwise.
func (m *Manager) LoadTile(ctx context.Context, key Key) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if _, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return
	}
	if !m.desired.Contains(key) {
		m.mu.Unlock()
		return
	}
	if !m.bounds.ContainsKey(key) {
		m.mu.Unlock()
		m.rejectOutOfBounds(key)
		return
	}

	loadCtx, cancel := m.fetchContext(ctx)
	e := &entry{
		state:      StateLoading,
		since:      m.now(),
		generation: m.desired.Generation,
		cancel:     cancel,
	}
	m.entries[key] = e
	m.mu.Unlock()
	defer cancel()

	m.metrics.FetchStarted()
	started := time.Now()

	body, err := m.source.Open(loadCtx, key)
	if err != nil {
		m.fail(key, e, loadCtx, err)
		return
	}
	defer body.Close()

	if !m.stillDesired(key, e) {
		return
	}

	vertices, err := DecodePoints(body)
	if err != nil {
		m.fail(key, e, loadCtx, err)
		return
	}

	m.commit(key, e, vertices, time.Since(started))
}

// Reconcile evicts every resident tile that is not in the current desired
// set. Loading and broken tiles are left alone.
func (m *Manager) Reconcile() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for k, e := range m.entries {
		if e.state != StateLoaded || m.desired.Contains(k) {
			continue
		}
		m.evictLocked(k, e)
		evicted++
	}

	if evicted > 0 {
		m.logger.Debug("evicted tiles", "count", evicted, "generation", m.desired.Generation)
	}

	return evicted
}

// Close cancels in-flight fetches and releases every resident tile. The
// manager ignores all further calls.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.desired = newDesiredSet(nil)

	released := 0
	for k, e := range m.entries {
		switch e.state {
		case StateLoading:
			e.cancel()
			delete(m.entries, k)
		case StateLoaded:
			m.evictLocked(k, e)
			released++
		}
	}

	m.logger.Info("tile manager closed", "released", released)
}

func (m *Manager) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.fetchTimeout > 0 {
		return context.WithTimeout(ctx, m.fetchTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) rejectOutOfBounds(key Key) {
	err := fmt.Errorf("%w: %s", ErrOutOfBounds, key)
	if m.strict {
		panic("tilestream: " + err.Error())
	}

	m.logger.Error("out of bounds tile reached fetch stage", "key", key.String(), "error", err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return
	}
	m.entries[key] = &entry{state: StateBroken, since: m.now(), err: err}
	m.metrics.TileBroken(failureReason(err))
}

// stillDesired reports whether the load owning e may continue. A stale load
// clears its Loading marker.
func (m *Manager) stillDesired(key Key, e *entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[key] != e {
		return false
	}
	if m.closed || !m.desired.Contains(key) {
		m.discardLocked(key, e)
		return false
	}
	return true
}

func (m *Manager) fail(key Key, e *entry, loadCtx context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[key] != e {
		return
	}

	// cancelled by AbortStale or by the caller, not a property of the tile
	if errors.Is(loadCtx.Err(), context.Canceled) {
		m.discardLocked(key, e)
		return
	}

	m.markBrokenLocked(key, err)
}

func (m *Manager) commit(key Key, e *entry, vertices []float32, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[key] != e {
		return
	}
	if m.closed || !m.desired.Contains(key) {
		m.discardLocked(key, e)
		return
	}

	d, err := m.materializer.Build(key, vertices)
	if err != nil {
		m.markBrokenLocked(key, fmt.Errorf("%w: %v", ErrMaterialize, err))
		return
	}
	m.scene.Add(d)

	points := len(vertices) / 3
	m.entries[key] = &entry{
		state:    StateLoaded,
		since:    m.now(),
		drawable: d,
		points:   points,
	}

	m.logger.Debug("tile loaded",
		"key", key.String(),
		"points", points,
		"elapsed", elapsed,
	)
	m.metrics.TileLoaded(points, elapsed)
}

func (m *Manager) discardLocked(key Key, e *entry) {
	delete(m.entries, key)
	m.logger.Debug("discarded stale tile", "key", key.String(), "generation", e.generation)
	m.metrics.TileDiscarded()
}

func (m *Manager) markBrokenLocked(key Key, err error) {
	m.entries[key] = &entry{state: StateBroken, since: m.now(), err: err}
	m.logger.Warn("tile marked broken", "key", key.String(), "error", err)
	m.metrics.TileBroken(failureReason(err))
}

func (m *Manager) evictLocked(key Key, e *entry) {
	m.scene.Remove(e.drawable)
	m.materializer.Dispose(e.drawable)
	delete(m.entries, key)
	m.metrics.TileEvicted(e.points)
}

// abortStaleLocked cancels loads that fell out of the desired set and forgets
// them at once, so a key that becomes desired again is requested afresh. The
// cancelled goroutine no longer owns the entry and settles without effect.
func (m *Manager) abortStaleLocked() {
	for k, e := range m.entries {
		if e.state == StateLoading && !m.desired.Contains(k) {
			e.cancel()
			m.discardLocked(k, e)
		}
	}
}

func (m *Manager) Resident() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.state == StateLoaded {
			n++
		}
	}
	return n
}

func (m *Manager) Status(key Key) (TileStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return TileStatus{Key: key, State: StateAbsent}, false
	}
	return e.status(key), true
}

// Snapshot returns the state of every tracked key ordered by tier, then origin.
func (m *Manager) Snapshot() []TileStatus {
	m.mu.Lock()
	out := make([]TileStatus, 0, len(m.entries))
	for k, e := range m.entries {
		out = append(out, e.status(k))
	}
	m.mu.Unlock()

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

// DesiredKeys computes the desired set for pos without installing it.
func (m *Manager) DesiredKeys(pos r3.Vector) []Key {
	m.mu.Lock()
	tiers := m.tiers.Clone()
	m.mu.Unlock()

	return ComputeDesiredKeys(m.bounds, pos, tiers).Keys()
}

func (m *Manager) Desired() *DesiredSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desired
}

func (m *Manager) Bounds() Bounds {
	return m.bounds
}

func (m *Manager) Tiers() Tiers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers.Clone()
}

// SetTier adds or replaces a tier. It takes effect on the next UpdatePosition.
func (m *Manager) SetTier(size int64, cfg TierConfig) error {
	if err := cfg.Validate(size); err != nil {
		return err
	}

	m.mu.Lock()
	m.tiers[size] = cfg
	m.mu.Unlock()

	m.logger.Info("tier updated", "size", size, "radius", cfg.Radius, "max_visible_height", cfg.MaxVisibleHeight)
	return nil
}

func (m *Manager) RemoveTier(size int64) bool {
	m.mu.Lock()
	_, ok := m.tiers[size]
	delete(m.tiers, size)
	m.mu.Unlock()

	if ok {
		m.logger.Info("tier removed", "size", size)
	}
	return ok
}
