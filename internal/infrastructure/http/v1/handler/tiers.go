package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/tilestream"
)

func (h *Handler) Tiers(c *gin.Context) {
	tiers := h.manager.Tiers()

	out := make([]dto.TierResponse, 0, len(tiers))
	for _, size := range tiers.Sizes() {
		t := tiers[size]
		out = append(out, dto.TierResponse{
			Size:             size,
			Radius:           t.Radius,
			MaxVisibleHeight: t.MaxVisibleHeight,
		})
	}

	h.RespondWithJSON(c, http.StatusOK, "got tiers", out)
}

func (h *Handler) PutTier(c *gin.Context) {
	l := requestLogger(c)

	size, err := strconv.ParseInt(c.Param("size"), 10, 64)
	if err != nil || size <= 0 {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrInvalidSize.Error(), nil)
		return
	}

	var req dto.TierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrFailedToDecodeRequestBody.Error(), nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cfg := tilestream.TierConfig{Radius: req.Radius, MaxVisibleHeight: req.MaxVisibleHeight}
	if err := h.manager.SetTier(size, cfg); err != nil {
		if errors.Is(err, tilestream.ErrInvalidTier) {
			h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		l.Error("failed to set tier", "size", size, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tier updated", dto.TierResponse{
		Size:             size,
		Radius:           cfg.Radius,
		MaxVisibleHeight: cfg.MaxVisibleHeight,
	})
}

func (h *Handler) DeleteTier(c *gin.Context) {
	size, err := strconv.ParseInt(c.Param("size"), 10, 64)
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrInvalidSize.Error(), nil)
		return
	}

	if !h.manager.RemoveTier(size) {
		h.RespondWithJSON(c, http.StatusNotFound, "tier not found", nil)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tier removed", nil)
}
