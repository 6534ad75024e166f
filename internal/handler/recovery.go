package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GoSwapGuard/swapguard/internal/pkg/apperrors"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/GoSwapGuard/swapguard/internal/service"
	"github.com/gin-gonic/gin"
)

type RecoveryHandler struct {
	svc *service.GuardService
}

func NewRecoveryHandler(svc *service.GuardService) *RecoveryHandler {
	return &RecoveryHandler{svc: svc}
}

func (h *RecoveryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ops, err := h.svc.PendingOperations(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrStorage, "failed to list pending operations", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

// Recover re-checks a saved operation and tells the caller what to do
// with it next.
func (h *RecoveryHandler) Recover(c *gin.Context) {
	recoveryID := c.Param("id")

	action, op, err := h.svc.Recover(c.Request.Context(), recoveryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.Error(apperrors.New(apperrors.ErrNotFound, "unknown recovery id", err))
			return
		}
		c.Error(apperrors.New(apperrors.ErrStorage, "failed to load pending operation", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"action":    action,
		"operation": op,
	})
}
