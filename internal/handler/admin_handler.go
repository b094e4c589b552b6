package handler

import (
	"net/http"
	"strconv"

	"jikonnect/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the operational surfaces: audit trail, payout queue,
// and the dead-letter callback review queue.
type AdminHandler struct {
	auditRepo    *repository.AuditLogRepository
	callbackRepo *repository.CallbackEventRepository
	payoutRepo   *repository.PayoutRepository
}

func NewAdminHandler(
	auditRepo *repository.AuditLogRepository,
	callbackRepo *repository.CallbackEventRepository,
	payoutRepo *repository.PayoutRepository,
) *AdminHandler {
	return &AdminHandler{
		auditRepo:    auditRepo,
		callbackRepo: callbackRepo,
		payoutRepo:   payoutRepo,
	}
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	out, err := h.auditRepo.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": out})
}

// CallbackEvents lists unreviewed dead-lettered callbacks: unmatched
// references, undecodable bodies, and late-success conflicts.
func (h *AdminHandler) CallbackEvents(c *gin.Context) {
	out, err := h.callbackRepo.ListUnreviewed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"callback_events": out})
}

func (h *AdminHandler) ReviewCallbackEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	if err := h.callbackRepo.MarkReviewed(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

// Payouts lists payout requests filtered by status, PENDING by default.
func (h *AdminHandler) Payouts(c *gin.Context) {
	status := c.DefaultQuery("status", "PENDING")
	out, err := h.payoutRepo.ListByStatus(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": out})
}
