package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware())
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	v1.GET("/position", handler.GetPosition)
	v1.POST("/position", handler.SetPosition)

	v1.GET("/tiles", handler.Tiles)
	v1.GET("/tiles/desired", handler.DesiredTiles)
	v1.GET("/tiles/:key", handler.Tile)

	v1.GET("/tiers", handler.Tiers)
	v1.PUT("/tiers/:size", handler.PutTier)
	v1.DELETE("/tiers/:size", handler.DeleteTier)

	v1.GET("/scene", handler.Scene)
	v1.GET("/scene/objects/:id/vertices", handler.Vertices)
	v1.GET("/scene/events", handler.Events)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
