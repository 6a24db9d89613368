package tilestream

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var singleTier = Tiers{100: {Radius: 1, MaxVisibleHeight: 1e8}}

func TestUpdatePositionLoadsDesiredTiles(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)

	summary := h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	if summary.Desired != 9 || summary.Requested != 9 || summary.Resident != 9 || summary.Evicted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	h.assertSceneMatchesDesired(t)

	// same position again: nothing new requested
	summary = h.manager.UpdatePosition(context.Background(), pos(160, 140, 10))
	if summary.Requested != 0 || summary.Resident != 9 {
		t.Fatalf("unexpected summary on repeat %+v", summary)
	}
	if summary.Generation != 2 {
		t.Fatalf("expected generation 2, got %d", summary.Generation)
	}
	for _, k := range h.manager.Desired().Keys() {
		if n := h.source.callCount(k); n != 1 {
			t.Fatalf("key %s fetched %d times", k, n)
		}
	}
}

func TestLoadTileDeduplicatesInFlight(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	release := make(chan struct{})
	h.source.openHook = func(ctx context.Context, key Key) error {
		<-release
		return nil
	}

	key := Key{100, 100, 100}
	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStarted(t, key)

	if st, _ := h.manager.Status(key); st.State != StateLoading {
		t.Fatalf("expected loading, got %s", st.State)
	}

	// a second request while the first is unresolved must be a no-op
	h.manager.LoadTile(context.Background(), key)
	h.manager.LoadTile(context.Background(), key)

	close(release)
	<-done

	if n := h.source.callCount(key); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
	if st, _ := h.manager.Status(key); st.State != StateLoaded {
		t.Fatalf("expected loaded, got %s", st.State)
	}
}

func TestLoadTileIgnoresUndesiredKey(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	h.manager.LoadTile(context.Background(), Key{500, 500, 100})

	if n := h.source.callCount(Key{500, 500, 100}); n != 0 {
		t.Fatalf("undesired key fetched %d times", n)
	}
}

func TestBrokenTileIsNeverRetried(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	key := Key{100, 100, 100}
	h.source.status[key] = 404

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	st, _ := h.manager.Status(key)
	if st.State != StateBroken {
		t.Fatalf("expected broken, got %s", st.State)
	}
	if st.Error == "" {
		t.Fatalf("broken status should carry the error")
	}
	if len(h.scene.keys()) != 0 {
		t.Fatalf("broken tile must not be attached")
	}

	// still desired
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	// away and back
	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	h.manager.LoadTile(context.Background(), key)

	if n := h.source.callCount(key); n != 1 {
		t.Fatalf("broken tile re-requested, %d requests", n)
	}
	if _, attached := h.scene.keys()[key]; attached {
		t.Fatalf("broken tile attached to the scene")
	}
	if h.metrics.broken["not_found"] != 1 {
		t.Fatalf("expected one not_found failure, got %v", h.metrics.broken)
	}
}

func TestFailureKinds(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)
	h.source.status[Key{0, 0, 100}] = 500
	h.source.payloads[Key{100, 0, 100}] = []byte{1, 2, 3, 4, 5}
	h.source.payloads[Key{0, 100, 100}] = []byte{}
	h.materializer.fail[Key{200, 200, 100}] = true

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	for _, k := range []Key{{0, 0, 100}, {100, 0, 100}, {200, 200, 100}} {
		if st, _ := h.manager.Status(k); st.State != StateBroken {
			t.Fatalf("expected %s broken, got %s", k, st.State)
		}
	}
	// a zero-length body is a tile with no points
	if st, _ := h.manager.Status(Key{0, 100, 100}); st.State != StateLoaded || st.Points != 0 {
		t.Fatalf("expected empty tile loaded, got %s with %d points", st.State, st.Points)
	}
	if h.manager.Resident() != 6 {
		t.Fatalf("expected 6 resident tiles, got %d", h.manager.Resident())
	}
	want := map[string]int{"status": 1, "decode": 1, "materialize": 1}
	for reason, n := range want {
		if h.metrics.broken[reason] != n {
			t.Fatalf("expected %d %s failures, got %v", n, reason, h.metrics.broken)
		}
	}
	h.assertSceneMatchesDesired(t)
}

func TestStaleResultDiscardedAfterHeaders(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	keyA := Key{100, 100, 100}
	keyB := Key{800, 800, 100}

	release := make(chan struct{})
	h.source.openHook = func(ctx context.Context, key Key) error {
		if key == keyA {
			<-release
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStarted(t, keyA)

	// camera moved while A is in flight
	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))

	close(release)
	<-done

	if len(h.materializer.builtFor(keyA)) != 0 {
		t.Fatalf("stale tile was materialized")
	}
	keys := h.scene.keys()
	if _, ok := keys[keyA]; ok {
		t.Fatalf("stale tile attached to the scene")
	}
	if _, ok := keys[keyB]; !ok {
		t.Fatalf("current tile missing from the scene")
	}
	if _, tracked := h.manager.Status(keyA); tracked {
		t.Fatalf("stale tile should leave no state behind")
	}
	if h.metrics.discarded != 1 {
		t.Fatalf("expected one discard, got %d", h.metrics.discarded)
	}
	h.assertSceneMatchesDesired(t)
}

func TestStaleResultDiscardedAfterBody(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	keyA := Key{100, 100, 100}
	keyB := Key{800, 800, 100}

	reading := make(chan struct{})
	release := make(chan struct{})
	h.source.bodyHook = func(key Key) {
		if key == keyA {
			close(reading)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()

	// headers passed the first check; the body is being read
	select {
	case <-reading:
	case <-time.After(2 * time.Second):
		t.Fatalf("body of %s never read", keyA)
	}

	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))

	close(release)
	<-done

	if len(h.materializer.builtFor(keyA)) != 0 {
		t.Fatalf("stale tile was materialized")
	}
	if _, ok := h.scene.keys()[keyA]; ok {
		t.Fatalf("stale tile attached to the scene")
	}
	if _, ok := h.scene.keys()[keyB]; !ok {
		t.Fatalf("current tile missing from the scene")
	}
}

func TestInFlightTileStillDesiredIsKept(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)
	key := Key{100, 100, 100}

	release := make(chan struct{})
	h.source.openHook = func(ctx context.Context, k Key) error {
		if k == key {
			<-release
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStartedN(t, 9)

	// shift by one cell: key stays inside the new neighbourhood
	summary := h.manager.UpdatePosition(context.Background(), pos(250, 150, 10))
	if summary.Requested != 3 {
		t.Fatalf("expected 3 new requests, got %+v", summary)
	}

	close(release)
	<-done

	if st, _ := h.manager.Status(key); st.State != StateLoaded {
		t.Fatalf("expected loaded, got %s", st.State)
	}
	if n := h.source.callCount(key); n != 1 {
		t.Fatalf("expected one request, got %d", n)
	}
	h.assertSceneMatchesDesired(t)
}

func TestEvictionOnMove(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	summary := h.manager.UpdatePosition(context.Background(), pos(350, 150, 10))

	// cells x=0..2 -> x=2..4, the x=0 and x=1 columns go
	if summary.Evicted != 6 {
		t.Fatalf("expected 6 evictions, got %+v", summary)
	}
	h.assertSceneMatchesDesired(t)

	for _, d := range h.materializer.built {
		attached := h.scene.keys()[d.key] > 0
		switch {
		case attached && d.disposed != 0:
			t.Fatalf("attached drawable %s was disposed", d.key)
		case !attached && d.disposed != 1:
			t.Fatalf("detached drawable %s disposed %d times", d.key, d.disposed)
		}
	}
	if h.metrics.evicted != 6 {
		t.Fatalf("expected 6 eviction metrics, got %d", h.metrics.evicted)
	}
}

func TestNavigateAwayAndBackCreatesFreshDrawable(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	key := Key{100, 100, 100}

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	built := h.materializer.builtFor(key)
	if len(built) != 2 {
		t.Fatalf("expected two separate drawables, got %d", len(built))
	}
	if built[0].disposed != 1 {
		t.Fatalf("first drawable disposed %d times", built[0].disposed)
	}
	if built[1].disposed != 0 {
		t.Fatalf("second drawable should still be live")
	}
	if h.source.callCount(key) != 2 {
		t.Fatalf("expected a fresh request after returning")
	}
}

func TestHeightCeilingDropsFineTier(t *testing.T) {
	tiers := Tiers{
		100: {Radius: 2, MaxVisibleHeight: 500},
		400: {Radius: 1, MaxVisibleHeight: 1e8},
	}
	h := newHarness(t, tiers, nil)

	h.manager.UpdatePosition(context.Background(), pos(450, 450, 100))
	if h.manager.Resident() != 10 {
		t.Fatalf("expected 10 resident tiles, got %d", h.manager.Resident())
	}

	summary := h.manager.UpdatePosition(context.Background(), pos(450, 450, 1000))
	if summary.Requested != 0 {
		t.Fatalf("climbing should not request anything, got %+v", summary)
	}
	if summary.Evicted != 9 || summary.Resident != 1 {
		t.Fatalf("fine tier should be evicted above its ceiling, got %+v", summary)
	}
	h.assertSceneMatchesDesired(t)
}

func TestAbortStaleCancelsInFlightFetch(t *testing.T) {
	h := newHarness(t, singleTier, func(o *Options) { o.AbortStale = true })
	keyA := Key{100, 100, 100}

	h.source.openHook = func(ctx context.Context, key Key) error {
		if key != keyA {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStarted(t, keyA)

	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("aborted fetch never settled")
	}

	if _, tracked := h.manager.Status(keyA); tracked {
		t.Fatalf("aborted fetch must not leave the key broken")
	}

	h.source.mu.Lock()
	h.source.openHook = nil
	h.source.mu.Unlock()

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	if st, _ := h.manager.Status(keyA); st.State != StateLoaded {
		t.Fatalf("expected %s to load on return, got %s", keyA, st.State)
	}
	if n := h.source.callCount(keyA); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestAbortStaleQuickReturnRequestsAgain(t *testing.T) {
	h := newHarness(t, singleTier, func(o *Options) { o.AbortStale = true })
	keyA := Key{100, 100, 100}

	var opened int32
	h.source.openHook = func(ctx context.Context, key Key) error {
		if key != keyA || atomic.AddInt32(&opened, 1) > 1 {
			return nil
		}
		<-ctx.Done()
		// settle only after the camera has come back
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStarted(t, keyA)

	h.manager.UpdatePosition(context.Background(), pos(850, 850, 10))
	if _, tracked := h.manager.Status(keyA); tracked {
		t.Fatalf("aborted key should be forgotten immediately")
	}

	summary := h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))
	if summary.Requested != 1 {
		t.Fatalf("expected %s to be requested again, got %+v", keyA, summary)
	}
	if st, _ := h.manager.Status(keyA); st.State != StateLoaded {
		t.Fatalf("expected %s loaded, got %s", keyA, st.State)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("aborted fetch never settled")
	}

	// the old goroutine must not have touched the new entry
	if st, _ := h.manager.Status(keyA); st.State != StateLoaded {
		t.Fatalf("expected %s still loaded, got %s", keyA, st.State)
	}
	if n := len(h.materializer.builtFor(keyA)); n != 1 {
		t.Fatalf("expected one drawable for %s, got %d", keyA, n)
	}
	h.assertSceneMatchesDesired(t)
}

func TestCameraFarOutsideDatasetLoadsNothing(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	summary := h.manager.UpdatePosition(context.Background(), pos(1e300, -1e300, 10))
	if summary.Desired != 0 || summary.Requested != 0 || summary.Resident != 0 || summary.Evicted != 9 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if n := h.source.callCount(Key{0, 0, 100}); n != 1 {
		t.Fatalf("origin tile fetched %d times", n)
	}
	h.assertSceneMatchesDesired(t)
}

func TestFetchTimeoutMarksBroken(t *testing.T) {
	h := newHarness(t, singleTier, func(o *Options) { o.FetchTimeout = 20 * time.Millisecond })
	h.source.openHook = func(ctx context.Context, key Key) error {
		<-ctx.Done()
		return ctx.Err()
	}

	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	if st, _ := h.manager.Status(Key{100, 100, 100}); st.State != StateBroken {
		t.Fatalf("expected broken after timeout, got %s", st.State)
	}
	if h.metrics.broken["timeout"] != 1 {
		t.Fatalf("expected a timeout failure, got %v", h.metrics.broken)
	}
}

func TestCallerCancellationDiscards(t *testing.T) {
	h := newHarness(t, singleTier, nil)
	h.source.openHook = func(ctx context.Context, key Key) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.manager.UpdatePosition(ctx, pos(150, 150, 10))
		close(done)
	}()
	h.source.waitStarted(t, Key{100, 100, 100})
	cancel()
	<-done

	if _, tracked := h.manager.Status(Key{100, 100, 100}); tracked {
		t.Fatalf("cancelled fetch must not mark the tile broken")
	}
}

func TestMaxConcurrentFetches(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 3, MaxVisibleHeight: 1e8}}, func(o *Options) { o.MaxConcurrentFetches = 2 })

	var inFlight, peak int32
	h.source.openHook = func(ctx context.Context, key Key) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	summary := h.manager.UpdatePosition(context.Background(), pos(450, 450, 10))

	if summary.Resident != 25 {
		t.Fatalf("expected 25 resident tiles, got %+v", summary)
	}
	if peak > 2 {
		t.Fatalf("observed %d concurrent fetches, limit is 2", peak)
	}
}

func TestFetchesStartNearestFirst(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 3, MaxVisibleHeight: 1e8}}, func(o *Options) { o.MaxConcurrentFetches = 1 })

	h.manager.UpdatePosition(context.Background(), pos(450, 450, 10))

	order := h.source.callOrder()
	if len(order) != 25 {
		t.Fatalf("expected 25 fetches, got %d", len(order))
	}
	if order[0] != (Key{400, 400, 100}) {
		t.Fatalf("first fetch should be the containing cell, got %s", order[0])
	}
	prev := int64(-1)
	for _, k := range order {
		d := manhattan(testBounds, 450, 450, k)
		if d < prev {
			t.Fatalf("fetch of %s at distance %d started after distance %d", k, d, prev)
		}
		prev = d
	}
}

func TestOutOfBoundsKeyAtFetchStage(t *testing.T) {
	oob := Key{-100, 0, 100}

	h := newHarness(t, singleTier, nil)
	h.manager.desired = newDesiredSet([]Key{oob})
	h.manager.LoadTile(context.Background(), oob)

	if st, _ := h.manager.Status(oob); st.State != StateBroken {
		t.Fatalf("expected broken, got %s", st.State)
	}
	if h.source.callCount(oob) != 0 {
		t.Fatalf("out of bounds key must never be fetched")
	}

	strict := newHarness(t, singleTier, func(o *Options) { o.Strict = true })
	strict.manager.desired = newDesiredSet([]Key{oob})
	defer func() {
		if recover() == nil {
			t.Fatalf("strict mode should panic")
		}
		if strict.source.callCount(oob) != 0 {
			t.Fatalf("out of bounds key must never be fetched")
		}
	}()
	strict.manager.LoadTile(context.Background(), oob)
}

func TestCloseReleasesEverything(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	h.manager.Close()
	h.manager.Close()

	if len(h.scene.keys()) != 0 {
		t.Fatalf("scene should be empty after Close")
	}
	for _, d := range h.materializer.built {
		if d.disposed != 1 {
			t.Fatalf("drawable %s disposed %d times", d.key, d.disposed)
		}
	}
	if s := h.manager.UpdatePosition(context.Background(), pos(150, 150, 10)); s != (Summary{}) {
		t.Fatalf("closed manager should ignore updates, got %+v", s)
	}
}

func TestTierMutation(t *testing.T) {
	h := newHarness(t, singleTier, nil)

	if err := h.manager.SetTier(400, TierConfig{Radius: 0, MaxVisibleHeight: 1}); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
	if err := h.manager.SetTier(400, TierConfig{Radius: 1, MaxVisibleHeight: 1e8}); err != nil {
		t.Fatalf("SetTier failed: %v", err)
	}
	if got := h.manager.DesiredKeys(pos(450, 450, 10)); len(got) != 2 {
		t.Fatalf("expected keys from both tiers, got %v", got)
	}

	h.manager.UpdatePosition(context.Background(), pos(450, 450, 10))
	if h.manager.Resident() != 2 {
		t.Fatalf("expected 2 resident tiles, got %d", h.manager.Resident())
	}

	if !h.manager.RemoveTier(400) {
		t.Fatalf("RemoveTier should report an existing tier")
	}
	if h.manager.RemoveTier(400) {
		t.Fatalf("RemoveTier should report a missing tier")
	}
	summary := h.manager.UpdatePosition(context.Background(), pos(450, 450, 10))
	if summary.Evicted != 1 || summary.Resident != 1 {
		t.Fatalf("removed tier should be evicted, got %+v", summary)
	}

	tiers := h.manager.Tiers()
	tiers[999] = TierConfig{Radius: 1, MaxVisibleHeight: 1}
	if _, leaked := h.manager.Tiers()[999]; leaked {
		t.Fatalf("Tiers must return a copy")
	}
}

func TestSnapshotOrder(t *testing.T) {
	h := newHarness(t, Tiers{100: {Radius: 2, MaxVisibleHeight: 1e8}}, nil)
	h.source.status[Key{0, 0, 100}] = 404
	h.manager.UpdatePosition(context.Background(), pos(150, 150, 10))

	snap := h.manager.Snapshot()
	if len(snap) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(snap))
	}
	if snap[0].Key != (Key{0, 0, 100}) || snap[0].State != StateBroken {
		t.Fatalf("unexpected first entry %+v", snap[0])
	}
	for i := 1; i < len(snap); i++ {
		a, b := snap[i-1].Key, snap[i].Key
		if a.OriginX > b.OriginX || (a.OriginX == b.OriginX && a.OriginY >= b.OriginY) {
			t.Fatalf("snapshot out of order at %d: %s then %s", i, a, b)
		}
	}
}

func TestNewManagerValidation(t *testing.T) {
	src, mat, scn := newFakeSource(), &fakeMaterializer{}, newFakeScene()
	cases := []Options{
		{Bounds: Bounds{XMin: 10, XMax: 10, YMin: 0, YMax: 1}, Tiers: singleTier, Source: src, Materializer: mat, Scene: scn},
		{Bounds: testBounds, Tiers: Tiers{100: {}}, Source: src, Materializer: mat, Scene: scn},
		{Bounds: testBounds, Tiers: singleTier, Materializer: mat, Scene: scn},
		{Bounds: testBounds, Tiers: singleTier, Source: src, Scene: scn},
		{Bounds: testBounds, Tiers: singleTier, Source: src, Materializer: mat},
	}
	for i, opts := range cases {
		if _, err := NewManager(opts); err == nil {
			t.Fatalf("case %d: expected an error", i)
		}
	}
}

func TestConcurrentUpdatesSettleConsistently(t *testing.T) {
	h := newHarness(t, Tiers{
		100: {Radius: 2, MaxVisibleHeight: 300},
		250: {Radius: 2, MaxVisibleHeight: 1e8},
	}, nil)

	rng := rand.New(rand.NewSource(7))
	var delayMu sync.Mutex
	h.source.openHook = func(ctx context.Context, key Key) error {
		delayMu.Lock()
		d := time.Duration(rng.Intn(3000)) * time.Microsecond
		delayMu.Unlock()
		time.Sleep(d)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x := float64((i * 137) % 1000)
			y := float64((i * 291) % 1000)
			z := float64((i * 53) % 600)
			h.manager.UpdatePosition(context.Background(), pos(x, y, z))
		}(i)
	}
	wg.Wait()

	h.manager.UpdatePosition(context.Background(), pos(500, 500, 10))
	h.assertSceneMatchesDesired(t)

	attached := h.scene.keys()
	for _, d := range h.materializer.built {
		live := false
		if attached[d.key] > 0 {
			st, _ := h.manager.Status(d.key)
			live = st.State == StateLoaded && d.disposed == 0
		}
		if !live && d.disposed != 1 {
			t.Fatalf("drawable %s disposed %d times", d.key, d.disposed)
		}
	}
	if h.manager.Resident() != len(attached) {
		t.Fatalf("resident count %d does not match scene size %d", h.manager.Resident(), len(attached))
	}
}
