package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TilesRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_requests_total",
		Help: "Total number of tile fetches started",
	})

	TilesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_loaded_total",
		Help: "Total number of tiles attached to the scene",
	})

	TilesBroken = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_broken_total",
		Help: "Total number of tiles marked broken",
	}, []string{"reason"})

	TilesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_discarded_total",
		Help: "Total number of tile results discarded as stale",
	})

	TilesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_evicted_total",
		Help: "Total number of tiles evicted from the scene",
	})

	TilesResident = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_resident",
		Help: "Number of tiles currently attached to the scene",
	})

	TilesPointsResident = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_points_resident",
		Help: "Number of points currently attached to the scene",
	})

	TilesLoadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_load_latency_seconds",
		Help:    "Time from fetch start to scene attach in seconds",
		Buckets: prometheus.DefBuckets,
	})

	TilesCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_hits_total",
		Help: "Total number of tile payload cache hits",
	})

	TilesCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_misses_total",
		Help: "Total number of tile payload cache misses",
	})

	TilesCacheStores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_stores_total",
		Help: "Total number of tile payloads written to the cache",
	})

	TilesUpstreamRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_upstream_requests_total",
		Help: "Total number of upstream dataset requests",
	})

	TilesUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_upstream_latency_seconds",
		Help:    "Latency of upstream tile response headers in seconds",
		Buckets: prometheus.DefBuckets,
	})

	PositionUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camera_position_updates_total",
		Help: "Total number of desired-set recomputations",
	})

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})
)

// TileMetrics reports tile lifecycle events to the collectors above.
type TileMetrics struct{}

func (TileMetrics) FetchStarted() {
	TilesRequests.Inc()
}

func (TileMetrics) TileLoaded(points int, elapsed time.Duration) {
	TilesLoaded.Inc()
	TilesResident.Inc()
	TilesPointsResident.Add(float64(points))
	TilesLoadLatency.Observe(elapsed.Seconds())
}

func (TileMetrics) TileBroken(reason string) {
	TilesBroken.WithLabelValues(reason).Inc()
}

func (TileMetrics) TileDiscarded() {
	TilesDiscarded.Inc()
}

func (TileMetrics) TileEvicted(points int) {
	TilesEvicted.Inc()
	TilesResident.Dec()
	TilesPointsResident.Sub(float64(points))
}
