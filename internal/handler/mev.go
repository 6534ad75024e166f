package handler

import (
	"net/http"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/gin-gonic/gin"
)

type MevHandler struct {
	svc *service.GuardService
}

func NewMevHandler(svc *service.GuardService) *MevHandler {
	return &MevHandler{svc: svc}
}

func (h *MevHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.MevConfig())
}

type setLevelRequest struct {
	Level   string `json:"level" binding:"required,oneof=basic standard maximum"`
	Enabled *bool  `json:"enabled"`
}

func (h *MevHandler) SetLevel(c *gin.Context) {
	var req setLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg := h.svc.SetMevLevel(model.MevLevel(req.Level), enabled)
	c.JSON(http.StatusOK, cfg)
}
