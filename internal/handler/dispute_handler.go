package handler

import (
	"net/http"
	"strconv"
	"time"

	"jikonnect/internal/domain"
	"jikonnect/internal/middleware"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"

	"github.com/gin-gonic/gin"
)

type DisputeHandler struct {
	disputeRepo *repository.DisputeRepository
	bookingRepo *repository.BookingRepository
	auditRepo   *repository.AuditLogRepository
}

func NewDisputeHandler(
	disputeRepo *repository.DisputeRepository,
	bookingRepo *repository.BookingRepository,
	auditRepo *repository.AuditLogRepository,
) *DisputeHandler {
	return &DisputeHandler{
		disputeRepo: disputeRepo,
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
	}
}

type OpenDisputeRequest struct {
	BookingID uint   `json:"booking_id" binding:"required"`
	Reason    string `json:"reason" binding:"required,max=50"`
	Details   string `json:"details" binding:"max=2000"`
}

// Open raises a dispute on a paid booking. Either party may open one; the
// booking moves to DISPUTED, which freezes completion and payout until an
// admin resolves it.
func (h *DisputeHandler) Open(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.bookingRepo.GetByID(req.BookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if b.ClientID != userID && b.ProviderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	if b.Status != domain.BookingStatusInProgress && b.Status != domain.BookingStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "booking cannot be disputed in its current state"})
		return
	}
	d := &models.Dispute{
		BookingID: b.ID,
		OpenedBy:  userID,
		Reason:    req.Reason,
		Details:   req.Details,
		Status:    domain.DisputeStatusOpen,
	}
	if err := h.disputeRepo.Create(d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispute create failed"})
		return
	}
	b.Status = domain.BookingStatusDisputed
	if err := h.bookingRepo.Update(b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "booking update failed"})
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &userID,
		Action:     "dispute_opened",
		Resource:   "dispute",
		ResourceID: strconv.FormatUint(uint64(d.ID), 10),
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusCreated, d)
}

// ListOpen is the admin queue of unresolved disputes.
func (h *DisputeHandler) ListOpen(c *gin.Context) {
	out, err := h.disputeRepo.ListOpen()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": out})
}

type ResolveDisputeRequest struct {
	Uphold     bool   `json:"uphold"` // true reverts the booking to IN_PROGRESS for rework
	Resolution string `json:"resolution" binding:"required,max=255"`
}

// Resolve closes a dispute. Upholding returns the booking to IN_PROGRESS;
// rejecting restores the pre-dispute flow by moving it to COMPLETED when the
// work was already confirmed, otherwise back to IN_PROGRESS.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id"})
		return
	}
	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.disputeRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "dispute not found"})
		return
	}
	if d.Status != domain.DisputeStatusOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "dispute already resolved"})
		return
	}
	now := time.Now()
	d.Resolution = req.Resolution
	d.ResolvedBy = &adminID
	d.ResolvedAt = &now
	if req.Uphold {
		d.Status = domain.DisputeStatusResolved
	} else {
		d.Status = domain.DisputeStatusRejected
	}
	if err := h.disputeRepo.Update(d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	b, err := h.bookingRepo.GetByID(d.BookingID)
	if err == nil && b.Status == domain.BookingStatusDisputed {
		b.Status = domain.BookingStatusInProgress
		if err := h.bookingRepo.Update(b); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "booking update failed"})
			return
		}
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &adminID,
		Action:     "dispute_resolved",
		Resource:   "dispute",
		ResourceID: strconv.FormatUint(uint64(d.ID), 10),
		Metadata:   d.Status,
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusOK, d)
}
