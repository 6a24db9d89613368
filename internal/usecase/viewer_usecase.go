package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/metrics"
	"golang.org/x/time/rate"
)

type PositionUpdater interface {
	UpdatePosition(ctx context.Context, pos r3.Vector) tilestream.Summary
}

// ViewerUseCase follows the camera. Positions reported with SetPosition are
// coalesced and forwarded to the tile manager at most once per interval;
// updates are not awaited, so several may be in flight at once.
type ViewerUseCase struct {
	manager PositionUpdater
	limiter *rate.Limiter
	logger  logger.Logger

	mu      sync.Mutex
	pos     r3.Vector
	dirty   bool
	summary tilestream.Summary

	notify chan struct{}
	wg     sync.WaitGroup
}

func NewViewerUseCase(m PositionUpdater, interval time.Duration, start r3.Vector, l logger.Logger) *ViewerUseCase {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &ViewerUseCase{
		manager: m,
		limiter: rate.NewLimiter(limit, 1),
		logger:  l,
		pos:     start,
		dirty:   true,
		notify:  make(chan struct{}, 1),
	}
}

func (uc *ViewerUseCase) SetPosition(pos r3.Vector) {
	uc.mu.Lock()
	uc.pos = pos
	uc.dirty = true
	uc.mu.Unlock()

	select {
	case uc.notify <- struct{}{}:
	default:
	}
}

func (uc *ViewerUseCase) Position() r3.Vector {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.pos
}

// LastSummary returns the result of the most recently completed update.
func (uc *ViewerUseCase) LastSummary() tilestream.Summary {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.summary
}

// Update moves the camera and waits for the resulting update, bypassing the
// throttle.
func (uc *ViewerUseCase) Update(ctx context.Context, pos r3.Vector) tilestream.Summary {
	uc.mu.Lock()
	uc.pos = pos
	uc.dirty = false
	uc.mu.Unlock()

	return uc.apply(ctx, pos)
}

// Run forwards positions until ctx is done, then waits for in-flight updates.
func (uc *ViewerUseCase) Run(ctx context.Context) {
	uc.SetPosition(uc.Position())

	defer uc.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-uc.notify:
		}

		if err := uc.limiter.Wait(ctx); err != nil {
			return
		}

		uc.mu.Lock()
		pos, dirty := uc.pos, uc.dirty
		uc.dirty = false
		uc.mu.Unlock()
		if !dirty {
			continue
		}

		uc.wg.Add(1)
		go func() {
			defer uc.wg.Done()
			uc.apply(ctx, pos)
		}()
	}
}

func (uc *ViewerUseCase) apply(ctx context.Context, pos r3.Vector) tilestream.Summary {
	metrics.PositionUpdates.Inc()

	summary := uc.manager.UpdatePosition(ctx, pos)

	uc.mu.Lock()
	if summary.Generation >= uc.summary.Generation {
		uc.summary = summary
	}
	uc.mu.Unlock()

	uc.logger.Debug("position applied",
		"x", pos.X, "y", pos.Y, "z", pos.Z,
		"generation", summary.Generation,
		"requested", summary.Requested,
		"resident", summary.Resident,
		"evicted", summary.Evicted,
	)
	return summary
}
