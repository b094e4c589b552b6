package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"
	"jikonnect/internal/service"

	"github.com/gin-gonic/gin"
)

type memStore struct {
	payments map[string]*models.Payment
	events   []*models.CallbackEvent
}

func newMemStore() *memStore {
	return &memStore{payments: make(map[string]*models.Payment)}
}

func (s *memStore) FindPaymentByCheckoutID(checkoutID string) (*models.Payment, error) {
	return s.payments[checkoutID], nil
}

func (s *memStore) CompletePayment(paymentID uint, receipt string, paidAt time.Time) error {
	for _, p := range s.payments {
		if p.ID == paymentID {
			p.Status = domain.PaymentStatusPaid
			p.Receipt = receipt
			p.PaidAt = &paidAt
		}
	}
	return nil
}

func (s *memStore) FailPayment(paymentID uint, reason string) error {
	for _, p := range s.payments {
		if p.ID == paymentID {
			p.Status = domain.PaymentStatusFailed
			p.FailureReason = reason
		}
	}
	return nil
}

func (s *memStore) FlagLateSuccess(paymentID uint, at time.Time) error { return nil }

func (s *memStore) SaveCallbackEvent(ev *models.CallbackEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) FindPayoutByOriginatorID(originatorID string) (*models.PayoutRequest, error) {
	return nil, nil
}

func (s *memStore) CompletePayout(payoutID uint, receipt string, at time.Time) error { return nil }
func (s *memStore) FailPayout(payoutID uint, resultDesc string) error                { return nil }

func webhookRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMpesaWebhookHandler(service.NewReconciler(store, nil), store)
	r := gin.New()
	r.POST("/api/payments/mpesa/callback", h.STKCallback)
	r.POST("/api/payments/mpesa/b2c/result", h.B2CResult)
	r.POST("/api/payments/mpesa/b2c/timeout", h.B2CTimeout)
	return r
}

const stkSuccessBody = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "mr-1",
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"ResultDesc": "ok",
			"CallbackMetadata": {
				"Item": [
					{"Name": "MpesaReceiptNumber", "Value": "QGH12ABC3D"},
					{"Name": "Amount", "Value": 2000}
				]
			}
		}
	}
}`

func TestSTKCallbackAppliesAndAcks(t *testing.T) {
	store := newMemStore()
	store.payments["ws_CO_1"] = &models.Payment{ID: 1, BookingID: 1, Status: domain.PaymentStatusPending, CheckoutRequestID: "ws_CO_1"}
	r := webhookRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader(stkSuccessBody))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ResultCode":0`) {
		t.Fatalf("missing provider ack: %s", w.Body.String())
	}
	if store.payments["ws_CO_1"].Status != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s", store.payments["ws_CO_1"].Status)
	}
}

func TestSTKCallbackUnmatchedStillAcks(t *testing.T) {
	store := newMemStore()
	r := webhookRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader(stkSuccessBody))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unmatched delivery must still ack 200, got %d", w.Code)
	}
	if len(store.events) != 1 || store.events[0].Kind != domain.CallbackKindUnmatched {
		t.Fatalf("events = %+v", store.events)
	}
}

func TestSTKCallbackMalformedIsRejectedAndDeadLettered(t *testing.T) {
	store := newMemStore()
	r := webhookRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader("not json"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.events) != 1 || store.events[0].Kind != domain.CallbackKindMalformed {
		t.Fatalf("events = %+v", store.events)
	}
}

func TestB2CTimeoutAcksAndDeadLettersWithoutOriginator(t *testing.T) {
	store := newMemStore()
	r := webhookRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/b2c/timeout", strings.NewReader(`{"Result":{}}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("timeout must ack 200, got %d", w.Code)
	}
	if len(store.events) != 1 || store.events[0].Kind != domain.CallbackKindMalformed {
		t.Fatalf("events = %+v", store.events)
	}
}
