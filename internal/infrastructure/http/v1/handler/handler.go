package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang/geo/r3"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/scene"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
	"github.com/jaennil/guide_helper/backend/pointcloud/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type TileManager interface {
	Snapshot() []tilestream.TileStatus
	Status(key tilestream.Key) (tilestream.TileStatus, bool)
	Desired() *tilestream.DesiredSet
	DesiredKeys(pos r3.Vector) []tilestream.Key
	Resident() int
	Tiers() tilestream.Tiers
	SetTier(size int64, cfg tilestream.TierConfig) error
	RemoveTier(size int64) bool
}

type Viewer interface {
	SetPosition(pos r3.Vector)
	Position() r3.Vector
	Update(ctx context.Context, pos r3.Vector) tilestream.Summary
	LastSummary() tilestream.Summary
}

type TileLocator interface {
	TileURL(key tilestream.Key) string
}

type Handler struct {
	validate *validator.Validate
	manager  TileManager
	viewer   Viewer
	scene    *scene.Scene
	locator  TileLocator

	streamIdle time.Duration
}

func NewHandler(v *validator.Validate, m TileManager, viewer Viewer, s *scene.Scene, locator TileLocator) *Handler {
	return &Handler{
		validate: v,
		manager:  m,
		viewer:   viewer,
		scene:    s,
		locator:  locator,

		streamIdle: defaultStreamIdle,
	}
}

// SetStreamIdleTimeout sets how long an event stream may go without any
// frame from the client, pongs included, before it is closed.
func (h *Handler) SetStreamIdleTimeout(d time.Duration) {
	if d > 0 {
		h.streamIdle = d
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func requestLogger(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
