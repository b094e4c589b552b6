package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"
	"jikonnect/pkg/mpesa"
)

// ErrPayoutRejected means the provider refused the B2C submission; the
// payout row is FAILED and the earnings have been re-credited.
var ErrPayoutRejected = errors.New("payout submission rejected")

// PayoutStore persists disbursement attempts. CreatePayoutWithDebit must
// reserve the earnings and write the PENDING row atomically; FailPayout must
// re-credit them in the same transaction that flips the row.
type PayoutStore interface {
	CreatePayoutWithDebit(p *models.PayoutRequest) error
	SetPayoutConversationID(payoutID uint, conversationID string) error
	FailPayout(payoutID uint, resultDesc string) error
}

// B2CInitiator submits a disbursement to the provider.
type B2CInitiator interface {
	InitiateB2C(ctx context.Context, req mpesa.PayoutRequest) (*mpesa.PayoutResponse, error)
}

// PayoutService disburses a completed booking's earnings over B2C. The
// PENDING row carries a deterministic originator conversation id and is
// committed before the outbound call; if the process dies in between, the
// row resumes as a pending payout instead of a double payment.
type PayoutService struct {
	store     PayoutStore
	initiator B2CInitiator
	shortCode string
}

func NewPayoutService(store PayoutStore, initiator B2CInitiator, shortCode string) *PayoutService {
	return &PayoutService{store: store, initiator: initiator, shortCode: shortCode}
}

// OriginatorID is the durable B2C idempotency key for one disbursement
// attempt; Daraja deduplicates on it.
func (s *PayoutService) OriginatorID(bookingID uint, attempt int) string {
	return fmt.Sprintf("%s_Payout_%d_%d", s.shortCode, bookingID, attempt)
}

func (s *PayoutService) Disburse(ctx context.Context, booking *models.Booking, providerPhone string, attempt int) (*models.PayoutRequest, error) {
	payout := &models.PayoutRequest{
		BookingID:                booking.ID,
		ProviderID:               booking.ProviderID,
		ProviderPhone:            providerPhone,
		AmountCents:              booking.PayoutCents,
		Attempt:                  attempt,
		OriginatorConversationID: s.OriginatorID(booking.ID, attempt),
		Remarks:                  "Payout for " + booking.Reference,
		Status:                   domain.PayoutStatusPending,
	}
	if err := s.store.CreatePayoutWithDebit(payout); err != nil {
		return nil, err
	}

	resp, err := s.initiator.InitiateB2C(ctx, mpesa.PayoutRequest{
		OriginatorConversationID: payout.OriginatorConversationID,
		PhoneNumber:              providerPhone,
		AmountCents:              booking.PayoutCents,
		Remarks:                  payout.Remarks,
		Occasion:                 booking.Reference,
	})
	if err != nil || !resp.Accepted() {
		desc := "b2c submission rejected"
		if err != nil {
			desc = err.Error()
		} else if resp.ResponseDescription != "" {
			desc = resp.ResponseDescription
		}
		log.Printf("[Payout] b2c initiation failed originator_conversation_id=%s: %s", payout.OriginatorConversationID, desc)
		// FailPayout re-credits the earnings inside the same transaction.
		if ferr := s.store.FailPayout(payout.ID, desc); ferr != nil {
			log.Printf("[Payout] fail transition error payout=%d: %v", payout.ID, ferr)
			return payout, ferr
		}
		return payout, fmt.Errorf("%w: %s", ErrPayoutRejected, desc)
	}

	payout.ConversationID = resp.ConversationID
	if err := s.store.SetPayoutConversationID(payout.ID, resp.ConversationID); err != nil {
		log.Printf("[Payout] conversation id save failed payout=%d: %v", payout.ID, err)
	}
	log.Printf("[Payout] b2c submitted originator_conversation_id=%s conversation_id=%s", payout.OriginatorConversationID, resp.ConversationID)
	return payout, nil
}
