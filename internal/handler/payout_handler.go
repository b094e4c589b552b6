package handler

import (
	"errors"
	"net/http"
	"strconv"

	"jikonnect/internal/domain"
	"jikonnect/internal/middleware"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"
	"jikonnect/internal/service"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	svc          *service.PayoutService
	bookingRepo  *repository.BookingRepository
	userRepo     *repository.UserRepository
	payoutRepo   *repository.PayoutRepository
	earningsRepo *repository.EarningsRepository
	auditRepo    *repository.AuditLogRepository
}

func NewPayoutHandler(
	svc *service.PayoutService,
	bookingRepo *repository.BookingRepository,
	userRepo *repository.UserRepository,
	payoutRepo *repository.PayoutRepository,
	earningsRepo *repository.EarningsRepository,
	auditRepo *repository.AuditLogRepository,
) *PayoutHandler {
	return &PayoutHandler{
		svc:          svc,
		bookingRepo:  bookingRepo,
		userRepo:     userRepo,
		payoutRepo:   payoutRepo,
		earningsRepo: earningsRepo,
		auditRepo:    auditRepo,
	}
}

type CreatePayoutRequest struct {
	BookingID uint `json:"booking_id" binding:"required"`
}

// Create disburses a completed booking's commission-adjusted earnings to the
// provider over B2C. Admin only.
func (h *PayoutHandler) Create(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	booking, err := h.bookingRepo.GetByID(req.BookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if booking.Status != domain.BookingStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "booking is not completed"})
		return
	}
	open, err := h.payoutRepo.HasOpenOrCompleted(booking.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payout lookup failed"})
		return
	}
	if open {
		c.JSON(http.StatusConflict, gin.H{"error": "booking already has a pending or completed payout"})
		return
	}
	provider, err := h.userRepo.GetByID(booking.ProviderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provider load failed"})
		return
	}
	if provider.Phone == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "provider has no payout phone number"})
		return
	}
	attempts, err := h.payoutRepo.CountByBooking(booking.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payout lookup failed"})
		return
	}

	payout, err := h.svc.Disburse(c.Request.Context(), booking, provider.Phone, int(attempts)+1)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientEarnings):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient earnings balance"})
		case errors.Is(err, service.ErrPayoutRejected):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payout submission failed"})
		default:
			// Includes the unique originator index when two admins race the
			// same attempt number.
			c.JSON(http.StatusConflict, gin.H{"error": "payout failed"})
		}
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &adminID,
		Action:     "payout_initiated",
		Resource:   "payout",
		ResourceID: payout.OriginatorConversationID,
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusAccepted, payout)
}

// Get returns one payout; the owning provider or an admin may read it.
func (h *PayoutHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return
	}
	p, err := h.payoutRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payout not found"})
		return
	}
	if p.ProviderID != middleware.GetUserID(c) && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your payout"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListMine returns the calling provider's payout history.
func (h *PayoutHandler) ListMine(c *gin.Context) {
	out, err := h.payoutRepo.ListByProvider(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": out})
}

// Earnings returns the calling provider's available balance.
func (h *PayoutHandler) Earnings(c *gin.Context) {
	acct, err := h.earningsRepo.GetOrCreate(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "earnings lookup failed"})
		return
	}
	c.JSON(http.StatusOK, acct)
}
