package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/r3"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
)

func (h *Handler) Tiles(c *gin.Context) {
	desired := h.manager.Desired()

	h.RespondWithJSON(c, http.StatusOK, "got tiles", dto.TilesResponse{
		Generation: desired.Generation,
		Desired:    desired.Len(),
		Resident:   h.manager.Resident(),
		Tiles:      h.manager.Snapshot(),
	})
}

func (h *Handler) Tile(c *gin.Context) {
	l := requestLogger(c)

	key, err := tilestream.ParseKey(c.Param("key"))
	if err != nil {
		l.Warn("invalid tile key", "key", c.Param("key"), "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	status, tracked := h.manager.Status(key)
	if !tracked {
		h.RespondWithJSON(c, http.StatusNotFound, "tile not tracked", nil)
		return
	}

	resp := dto.TileResponse{
		TileStatus: status,
		Desired:    h.manager.Desired().Contains(key),
	}
	if h.locator != nil {
		resp.URL = h.locator.TileURL(key)
	}

	h.RespondWithJSON(c, http.StatusOK, "got tile", resp)
}

// DesiredTiles previews the desired set for a camera position without
// moving the camera.
func (h *Handler) DesiredTiles(c *gin.Context) {
	var q dto.DesiredQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrInvalidPositionQuery.Error(), nil)
		return
	}
	if err := h.validate.Struct(q); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	keys := h.manager.DesiredKeys(r3.Vector{X: *q.X, Y: *q.Y, Z: *q.Z})
	if keys == nil {
		keys = []tilestream.Key{}
	}

	h.RespondWithJSON(c, http.StatusOK, "got desired tiles", dto.DesiredResponse{
		Count: len(keys),
		Keys:  keys,
	})
}
