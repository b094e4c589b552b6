package handler

import (
	"io"
	"log"
	"net/http"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"
	"jikonnect/internal/service"
	"jikonnect/pkg/mpesa"

	"github.com/gin-gonic/gin"
)

// MpesaWebhookHandler terminates Daraja's asynchronous callbacks. Callbacks
// are acknowledged with 200 in every case the provider could retry into a
// duplicate; only a body that fails to decode at all gets a 400, after being
// dead-lettered for review.
type MpesaWebhookHandler struct {
	reconciler *service.Reconciler
	store      service.ReconcileStore
}

func NewMpesaWebhookHandler(reconciler *service.Reconciler, store service.ReconcileStore) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{reconciler: reconciler, store: store}
}

// darajaAck is the acknowledgement body Daraja expects on every callback.
var darajaAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

// STKCallback handles POST /api/payments/mpesa/callback.
func (h *MpesaWebhookHandler) STKCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	res, err := mpesa.ParseSTKCallback(body)
	if err != nil {
		log.Printf("[Webhook] malformed stk callback: %v", err)
		h.deadLetter(body, "stk callback did not decode")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := h.reconciler.ReconcileCharge(res, body); err != nil {
		// ACK anyway; the row stays open for the status poller.
		log.Printf("[Webhook] stk reconcile error checkout_request_id=%s: %v", res.CheckoutRequestID, err)
	}
	c.JSON(http.StatusOK, darajaAck)
}

// B2CResult handles POST /api/payments/mpesa/b2c/result.
func (h *MpesaWebhookHandler) B2CResult(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	res, err := mpesa.ParseB2CResult(body)
	if err != nil {
		log.Printf("[Webhook] malformed b2c result: %v", err)
		h.deadLetter(body, "b2c result did not decode")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}
	if err := h.reconciler.ReconcilePayout(res, body); err != nil {
		log.Printf("[Webhook] b2c reconcile error originator_conversation_id=%s: %v", res.OriginatorConversationID, err)
	}
	c.JSON(http.StatusOK, darajaAck)
}

// B2CTimeout handles POST /api/payments/mpesa/b2c/timeout. Daraja sends the
// original request envelope here when the transfer queue timed out; the
// payout is failed so the earnings re-credit runs and the attempt becomes
// retryable.
func (h *MpesaWebhookHandler) B2CTimeout(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	res, err := mpesa.ParseB2CResult(body)
	if err != nil || res.OriginatorConversationID == "" {
		log.Printf("[Webhook] b2c timeout without originator id, dead-lettering")
		h.deadLetter(body, "b2c timeout did not decode")
		c.JSON(http.StatusOK, darajaAck)
		return
	}
	res.Success = false
	if res.ResultDesc == "" {
		res.ResultDesc = "queue timeout"
	}
	if err := h.reconciler.ReconcilePayout(res, body); err != nil {
		log.Printf("[Webhook] b2c timeout reconcile error originator_conversation_id=%s: %v", res.OriginatorConversationID, err)
	}
	c.JSON(http.StatusOK, darajaAck)
}

func (h *MpesaWebhookHandler) deadLetter(body []byte, note string) {
	if err := h.store.SaveCallbackEvent(&models.CallbackEvent{
		Kind:    domain.CallbackKindMalformed,
		RawBody: string(body),
		Note:    note,
	}); err != nil {
		log.Printf("[Webhook] dead-letter write failed: %v", err)
	}
}
