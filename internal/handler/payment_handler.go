package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"jikonnect/config"
	"jikonnect/internal/domain"
	"jikonnect/internal/middleware"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"
	"jikonnect/internal/service"
	"jikonnect/pkg/mpesa"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	cfg         *config.Config
	mpesaClient *mpesa.Client
	bookingRepo *repository.BookingRepository
	paymentRepo *repository.PaymentRepository
	auditRepo   *repository.AuditLogRepository
	reconciler  *service.Reconciler
}

func NewPaymentHandler(
	cfg *config.Config,
	mpesaClient *mpesa.Client,
	bookingRepo *repository.BookingRepository,
	paymentRepo *repository.PaymentRepository,
	auditRepo *repository.AuditLogRepository,
	reconciler *service.Reconciler,
) *PaymentHandler {
	return &PaymentHandler{
		cfg:         cfg,
		mpesaClient: mpesaClient,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		reconciler:  reconciler,
	}
}

type InitiateChargeRequest struct {
	BookingID   uint   `json:"booking_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// Initiate pushes an STK prompt to the client's phone for a confirmed
// booking and records the PENDING payment keyed by the provider's
// CheckoutRequestID. The charge resolves asynchronously: the webhook (or a
// manual reconcile) flips the payment, and /ws/payments streams the flip.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	clientID := middleware.GetUserID(c)
	var req InitiateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	booking, err := h.bookingRepo.GetByID(req.BookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if booking.ClientID != clientID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	if booking.Status != domain.BookingStatusConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "booking is not payable (must be CONFIRMED)"})
		return
	}

	phone := mpesa.NormalizePhone(req.PhoneNumber)
	resp, err := h.mpesaClient.InitiateSTKPush(c.Request.Context(), mpesa.ChargeRequest{
		PhoneNumber:      phone,
		AmountCents:      booking.AmountCents,
		AccountReference: booking.Reference,
		TransactionDesc:  "JiKonnect " + booking.ServiceName,
	})
	if err != nil {
		log.Printf("[MPESA] initiate failed booking=%d: %v", booking.ID, err)
		var authErr *mpesa.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment service unavailable"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "charge initiation failed"})
		return
	}

	// Provider acknowledged over HTTP but declined the push: keep the
	// attempt in SUBMITTED so the poller can triage it, and tell the caller.
	status := domain.PaymentStatusPending
	if !resp.Accepted() {
		status = domain.PaymentStatusSubmitted
	}
	pay := &models.Payment{
		BookingID:         booking.ID,
		AmountCents:       booking.AmountCents,
		Currency:          booking.Currency,
		Status:            status,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       phone,
	}
	if err := h.paymentRepo.Create(pay); err != nil {
		if errors.Is(err, repository.ErrActivePayment) {
			c.JSON(http.StatusConflict, gin.H{"error": "booking already has an active payment"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment create failed"})
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &clientID,
		Action:     "mpesa_charge_initiated",
		Resource:   "payment",
		ResourceID: resp.CheckoutRequestID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	log.Printf("[MPESA] STK sent booking=%d checkout_request_id=%s status=%s", booking.ID, resp.CheckoutRequestID, status)
	if !resp.Accepted() {
		c.JSON(http.StatusAccepted, gin.H{
			"checkout_request_id": resp.CheckoutRequestID,
			"payment_status":      status,
			"response_code":       resp.ResponseCode,
			"message":             resp.ResponseDescription,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"checkout_request_id": resp.CheckoutRequestID,
		"merchant_request_id": resp.MerchantRequestID,
		"payment_status":      status,
		"message":             resp.CustomerMessage,
	})
}

// Status returns the locally recorded state of a charge.
func (h *PaymentHandler) Status(c *gin.Context) {
	p, booking, ok := h.loadOwnedPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout_request_id": p.CheckoutRequestID,
		"payment_status":      p.Status,
		"receipt":             p.Receipt,
		"paid_at":             p.PaidAt,
		"failure_reason":      p.FailureReason,
		"booking_status":      booking.Status,
	})
}

// Reconcile queries the provider for the charge's current state and feeds
// the answer through the same transition logic as the webhook. Owners may
// use it once the callback SLA has lapsed; admins any time.
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	p, _, ok := h.loadOwnedPayment(c)
	if !ok {
		return
	}
	if middleware.GetRole(c) != domain.RoleAdmin {
		if time.Since(p.CreatedAt) < h.cfg.Booking.PaymentSLA {
			c.JSON(http.StatusTooEarly, gin.H{"error": "callback window still open, try again shortly"})
			return
		}
	}
	q, err := h.mpesaClient.QuerySTKStatus(c.Request.Context(), p.CheckoutRequestID)
	if err != nil {
		// Daraja answers an error while the prompt is still open.
		log.Printf("[MPESA] status query failed checkout_request_id=%s: %v", p.CheckoutRequestID, err)
		c.JSON(http.StatusConflict, gin.H{"error": "charge not resolved yet"})
		return
	}
	if !q.Resolved() {
		c.JSON(http.StatusConflict, gin.H{"error": "charge not resolved yet"})
		return
	}
	if err := h.reconciler.ReconcileCharge(mpesa.ResultFromQuery(q), nil); err != nil {
		log.Printf("[MPESA] manual reconcile failed checkout_request_id=%s: %v", p.CheckoutRequestID, err)
	}
	p2, err := h.paymentRepo.GetByCheckoutID(p.CheckoutRequestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout_request_id": p2.CheckoutRequestID,
		"payment_status":      p2.Status,
		"receipt":             p2.Receipt,
		"result_code":         q.ResultCode,
		"result_desc":         q.ResultDesc,
	})
}

// ListForBooking returns the payment history of one booking, newest first.
func (h *PaymentHandler) ListForBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	booking, err := h.bookingRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	userID := middleware.GetUserID(c)
	if booking.ClientID != userID && booking.ProviderID != userID && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return
	}
	payments, err := h.paymentRepo.ListByBooking(booking.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *PaymentHandler) loadOwnedPayment(c *gin.Context) (*models.Payment, *models.Booking, bool) {
	checkoutID := c.Param("checkout_id")
	p, err := h.paymentRepo.GetByCheckoutID(checkoutID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return nil, nil, false
	}
	booking, err := h.bookingRepo.GetByID(p.BookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "booking load failed"})
		return nil, nil, false
	}
	userID := middleware.GetUserID(c)
	if booking.ClientID != userID && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your payment"})
		return nil, nil, false
	}
	return p, booking, true
}
