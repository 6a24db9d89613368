package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/r3"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/dto"
)

func (h *Handler) SetPosition(c *gin.Context) {
	l := requestLogger(c)

	var req dto.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	pos := r3.Vector{X: *req.X, Y: *req.Y, Z: *req.Z}

	if c.Query("wait") == "true" {
		summary := h.viewer.Update(c.Request.Context(), pos)
		l.Info("position applied", "x", pos.X, "y", pos.Y, "z", pos.Z, "generation", summary.Generation)
		h.RespondWithJSON(c, http.StatusOK, "position applied", dto.PositionResponse{
			X: pos.X, Y: pos.Y, Z: pos.Z,
			Summary: &summary,
		})
		return
	}

	h.viewer.SetPosition(pos)
	l.Debug("position queued", "x", pos.X, "y", pos.Y, "z", pos.Z)
	h.RespondWithJSON(c, http.StatusAccepted, "position queued", dto.PositionResponse{X: pos.X, Y: pos.Y, Z: pos.Z})
}

func (h *Handler) GetPosition(c *gin.Context) {
	pos := h.viewer.Position()
	summary := h.viewer.LastSummary()

	h.RespondWithJSON(c, http.StatusOK, "got position", dto.PositionResponse{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		Summary: &summary,
	})
}
