package handler

import (
	"net/http"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/GoSwapGuard/swapguard/internal/validate"
	"github.com/gin-gonic/gin"
)

type SwapHandler struct {
	svc *service.GuardService
}

func NewSwapHandler(svc *service.GuardService) *SwapHandler {
	return &SwapHandler{svc: svc}
}

type analyzeRequest struct {
	Pair   string        `json:"pair"`
	Quotes []model.Quote `json:"quotes"`
}

// Analyze scores a quote set (or the live book for the pair) and returns
// the impact analysis with a recommended slippage tolerance.
func (h *SwapHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	analysis, slippage := h.svc.Analyze(req.Pair, req.Quotes)
	c.JSON(http.StatusOK, gin.H{
		"analysis":     analysis,
		"slippage_pct": slippage,
	})
}

// Validate runs the pre-submission checks on a swap intent.
// The verdict is returned with HTTP 200 even when invalid: rejection is
// an answer, not a transport failure.
func (h *SwapHandler) Validate(c *gin.Context) {
	var in validate.Intent
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	result := h.svc.ValidateIntent(c.Request.Context(), in)
	c.JSON(http.StatusOK, result)
}

// RateLimit reports whether the user address may submit another intent.
func (h *SwapHandler) RateLimit(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.Error(apperrors.NewInvalidRequest("missing user query parameter"))
		return
	}

	status := h.svc.RateLimitStatus(c.Request.Context(), user)
	c.JSON(http.StatusOK, status)
}
