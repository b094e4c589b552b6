package service

import (
	"errors"
	"log"
	"time"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"
	"jikonnect/pkg/mpesa"
)

// ReconcileStore is the persistence collaborator the reconciler drives. The
// gorm implementation (repository.ReconcileStore) applies each transition
// under a row lock; transitions on terminal rows return
// repository.ErrAlreadyApplied / ErrPaymentTerminal.
type ReconcileStore interface {
	FindPaymentByCheckoutID(checkoutID string) (*models.Payment, error)
	CompletePayment(paymentID uint, receipt string, paidAt time.Time) error
	FailPayment(paymentID uint, reason string) error
	FlagLateSuccess(paymentID uint, at time.Time) error
	SaveCallbackEvent(ev *models.CallbackEvent) error
	FindPayoutByOriginatorID(originatorID string) (*models.PayoutRequest, error)
	CompletePayout(payoutID uint, receipt string, at time.Time) error
	FailPayout(payoutID uint, resultDesc string) error
}

// StatusNotifier pushes payment status flips to connected clients.
type StatusNotifier interface {
	NotifyPayment(checkoutRequestID, status, receipt string)
}

// Reconciler applies provider outcomes (webhook callbacks and status-query
// results) to payments and payouts. Every transition is idempotent:
// duplicate deliveries of a terminal outcome are no-ops, unmatched
// references are dead-lettered, and a success arriving after a local FAILED
// is recorded as a conflict rather than rewriting the terminal row.
type Reconciler struct {
	store    ReconcileStore
	notifier StatusNotifier // may be nil
}

func NewReconciler(store ReconcileStore, notifier StatusNotifier) *Reconciler {
	return &Reconciler{store: store, notifier: notifier}
}

const writeAttempts = 3

// ReconcileCharge matches an STK outcome to its payment and applies the
// PENDING/SUBMITTED -> PAID|FAILED transition. A nil return means the
// delivery was handled (including no-op and dead-letter outcomes); a non-nil
// return means a storage fault that survived retries and needs alerting, but
// the webhook must still ACK 200.
func (r *Reconciler) ReconcileCharge(res *mpesa.ChargeResult, rawBody []byte) error {
	if res.CheckoutRequestID == "" {
		log.Printf("[Reconcile] charge callback without checkout request id, dead-lettering")
		return r.store.SaveCallbackEvent(&models.CallbackEvent{
			Kind:    domain.CallbackKindMalformed,
			RawBody: string(rawBody),
			Note:    "missing CheckoutRequestID",
		})
	}
	p, err := r.store.FindPaymentByCheckoutID(res.CheckoutRequestID)
	if err != nil {
		return err
	}
	if p == nil {
		log.Printf("[Reconcile] no payment for checkout_request_id=%s, dead-lettering", res.CheckoutRequestID)
		return r.store.SaveCallbackEvent(&models.CallbackEvent{
			Kind:      domain.CallbackKindUnmatched,
			Reference: res.CheckoutRequestID,
			RawBody:   string(rawBody),
		})
	}

	switch p.Status {
	case domain.PaymentStatusPaid:
		log.Printf("[Reconcile] payment %d already PAID, duplicate delivery ignored", p.ID)
		return nil
	case domain.PaymentStatusFailed:
		if res.Success {
			return r.recordLateSuccess(p, res, rawBody)
		}
		log.Printf("[Reconcile] payment %d already FAILED, duplicate delivery ignored", p.ID)
		return nil
	}

	if res.Success {
		err = r.withRetry(func() error {
			return r.store.CompletePayment(p.ID, res.Receipt, res.PaidAt)
		})
		if errors.Is(err, repository.ErrAlreadyApplied) {
			return nil
		}
		if errors.Is(err, repository.ErrPaymentTerminal) {
			// Lost the race against a concurrent FAILED transition.
			return r.recordLateSuccess(p, res, rawBody)
		}
		if err != nil {
			return err
		}
		log.Printf("[Reconcile] payment %d PAID receipt=%s", p.ID, res.Receipt)
		r.notify(p.CheckoutRequestID, domain.PaymentStatusPaid, res.Receipt)
		return nil
	}

	err = r.withRetry(func() error {
		return r.store.FailPayment(p.ID, res.ResultDesc)
	})
	if errors.Is(err, repository.ErrAlreadyApplied) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Reconcile] payment %d FAILED code=%s desc=%s", p.ID, res.ResultCode, res.ResultDesc)
	r.notify(p.CheckoutRequestID, domain.PaymentStatusFailed, "")
	return nil
}

// ReconcilePayout applies a B2C result to its payout request. Failure
// re-credits the provider's earnings (inside the store transaction) so the
// booking stays payable.
func (r *Reconciler) ReconcilePayout(res *mpesa.PayoutResult, rawBody []byte) error {
	if res.OriginatorConversationID == "" {
		return r.store.SaveCallbackEvent(&models.CallbackEvent{
			Kind:    domain.CallbackKindMalformed,
			RawBody: string(rawBody),
			Note:    "missing OriginatorConversationID",
		})
	}
	p, err := r.store.FindPayoutByOriginatorID(res.OriginatorConversationID)
	if err != nil {
		return err
	}
	if p == nil {
		log.Printf("[Reconcile] no payout for originator_conversation_id=%s, dead-lettering", res.OriginatorConversationID)
		return r.store.SaveCallbackEvent(&models.CallbackEvent{
			Kind:      domain.CallbackKindUnmatched,
			Reference: res.OriginatorConversationID,
			RawBody:   string(rawBody),
		})
	}
	if p.Status != domain.PayoutStatusPending {
		log.Printf("[Reconcile] payout %d already %s, duplicate delivery ignored", p.ID, p.Status)
		return nil
	}
	if res.Success {
		err = r.withRetry(func() error {
			return r.store.CompletePayout(p.ID, res.Receipt, time.Now())
		})
	} else {
		err = r.withRetry(func() error {
			return r.store.FailPayout(p.ID, res.ResultDesc)
		})
	}
	if errors.Is(err, repository.ErrAlreadyApplied) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Reconcile] payout %d success=%v receipt=%s", p.ID, res.Success, res.Receipt)
	return nil
}

func (r *Reconciler) recordLateSuccess(p *models.Payment, res *mpesa.ChargeResult, rawBody []byte) error {
	log.Printf("[Reconcile] success for payment %d after local FAILED, recording conflict", p.ID)
	if err := r.store.FlagLateSuccess(p.ID, res.PaidAt); err != nil {
		return err
	}
	return r.store.SaveCallbackEvent(&models.CallbackEvent{
		Kind:      domain.CallbackKindLateSuccess,
		Reference: res.CheckoutRequestID,
		RawBody:   string(rawBody),
		Note:      "receipt " + res.Receipt,
	})
}

// withRetry retries storage writes a few times with short backoff. Webhook
// deliveries are acknowledged regardless, so this is the only recovery the
// transition gets before the dead-letter review queue.
func (r *Reconciler) withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		err = fn()
		if err == nil ||
			errors.Is(err, repository.ErrAlreadyApplied) ||
			errors.Is(err, repository.ErrPaymentTerminal) {
			return err
		}
		if attempt < writeAttempts {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
	}
	return err
}

func (r *Reconciler) notify(checkoutID, status, receipt string) {
	if r.notifier != nil {
		r.notifier.NotifyPayment(checkoutID, status, receipt)
	}
}
