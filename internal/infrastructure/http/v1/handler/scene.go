package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
)

func (h *Handler) Scene(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "got scene", dto.SceneResponse{
		Objects: h.scene.Objects(),
		Points:  h.scene.Points(),
	})
}

// Vertices streams an object's vertex buffer in the tile payload encoding.
func (h *Handler) Vertices(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "id should be a uuid", nil)
		return
	}

	p, ok := h.scene.Object(id)
	if !ok {
		h.RespondWithJSON(c, http.StatusNotFound, "object not in scene", nil)
		return
	}

	c.Header("X-Tile-Key", p.Key.String())
	c.Data(http.StatusOK, "application/octet-stream", tilestream.EncodePoints(p.Vertices))
}
