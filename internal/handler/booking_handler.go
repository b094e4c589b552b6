package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"jikonnect/config"
	"jikonnect/internal/domain"
	"jikonnect/internal/middleware"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	cfg          *config.Config
	bookingRepo  *repository.BookingRepository
	userRepo     *repository.UserRepository
	earningsRepo *repository.EarningsRepository
	auditRepo    *repository.AuditLogRepository
}

func NewBookingHandler(
	cfg *config.Config,
	bookingRepo *repository.BookingRepository,
	userRepo *repository.UserRepository,
	earningsRepo *repository.EarningsRepository,
	auditRepo *repository.AuditLogRepository,
) *BookingHandler {
	return &BookingHandler{
		cfg:          cfg,
		bookingRepo:  bookingRepo,
		userRepo:     userRepo,
		earningsRepo: earningsRepo,
		auditRepo:    auditRepo,
	}
}

type CreateBookingRequest struct {
	ProviderID  uint   `json:"provider_id" binding:"required"`
	ServiceName string `json:"service_name" binding:"required,max=128"`
	AmountKES   int64  `json:"amount_kes" binding:"required,min=1"`
	ScheduledAt string `json:"scheduled_at"` // RFC3339, optional
}

// Create opens a PENDING booking against a verified provider. Commission is
// fixed here so later rate changes never reprice an existing booking.
func (h *BookingHandler) Create(c *gin.Context) {
	clientID := middleware.GetUserID(c)
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	provider, err := h.userRepo.GetByID(req.ProviderID)
	if err != nil || !provider.IsProvider() {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
		return
	}
	if !provider.Verified {
		c.JSON(http.StatusConflict, gin.H{"error": "provider is not verified yet"})
		return
	}
	amountCents := req.AmountKES * 100
	commissionCents := amountCents * h.cfg.Booking.CommissionPercent / 100
	b := &models.Booking{
		Reference:       fmt.Sprintf("JK-%s", uuid.New().String()[:8]),
		ClientID:        clientID,
		ProviderID:      req.ProviderID,
		ServiceName:     req.ServiceName,
		AmountCents:     amountCents,
		CommissionCents: commissionCents,
		PayoutCents:     amountCents - commissionCents,
		Currency:        "KES",
		Status:          domain.BookingStatusPending,
	}
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_at (use RFC3339)"})
			return
		}
		b.ScheduledAt = &t
	}
	if err := h.bookingRepo.Create(b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "booking create failed"})
		return
	}
	c.JSON(http.StatusCreated, b)
}

// Accept moves PENDING -> CONFIRMED; only the booked provider may accept.
// A CONFIRMED booking is the only state a charge can be initiated from.
func (h *BookingHandler) Accept(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}
	if b.ProviderID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	if b.Status != domain.BookingStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "booking is not pending"})
		return
	}
	b.Status = domain.BookingStatusConfirmed
	if err := h.bookingRepo.Update(b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// Complete moves IN_PROGRESS -> COMPLETED and credits the provider's
// commission-adjusted earnings. Client-only: completion is the client
// confirming the service was delivered.
func (h *BookingHandler) Complete(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if b.ClientID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	if b.Status != domain.BookingStatusInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "booking is not in progress"})
		return
	}
	now := time.Now()
	b.Status = domain.BookingStatusCompleted
	b.CompletedAt = &now
	if err := h.bookingRepo.Update(b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.earningsRepo.Credit(b.ProviderID, b.PayoutCents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "earnings credit failed"})
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &userID,
		Action:     "booking_completed",
		Resource:   "booking",
		ResourceID: strconv.FormatUint(uint64(b.ID), 10),
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusOK, b)
}

// Cancel is allowed for either party while the booking is unpaid.
func (h *BookingHandler) Cancel(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if b.ClientID != userID && b.ProviderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "booking can no longer be cancelled"})
		return
	}
	b.Status = domain.BookingStatusCancelled
	if err := h.bookingRepo.Update(b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, ok := h.loadBooking(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if b.ClientID != userID && b.ProviderID != userID && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var (
		out []models.Booking
		err error
	)
	if middleware.GetRole(c) == domain.RoleProvider {
		out, err = h.bookingRepo.ListByProvider(userID)
	} else {
		out, err = h.bookingRepo.ListByClient(userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) loadBooking(c *gin.Context) (*models.Booking, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return nil, false
	}
	b, err := h.bookingRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return nil, false
	}
	return b, true
}
