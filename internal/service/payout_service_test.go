package service

import (
	"context"
	"errors"
	"testing"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"
	"jikonnect/pkg/mpesa"
)

type fakePayoutStore struct {
	created   *models.PayoutRequest
	createErr error
	failedID  uint
	failDesc  string
	convID    string
	ops       []string
}

func (s *fakePayoutStore) CreatePayoutWithDebit(p *models.PayoutRequest) error {
	s.ops = append(s.ops, "create")
	if s.createErr != nil {
		return s.createErr
	}
	p.ID = 7
	s.created = p
	return nil
}

func (s *fakePayoutStore) SetPayoutConversationID(payoutID uint, conversationID string) error {
	s.ops = append(s.ops, "set_conversation")
	s.convID = conversationID
	return nil
}

func (s *fakePayoutStore) FailPayout(payoutID uint, resultDesc string) error {
	s.ops = append(s.ops, "fail")
	s.failedID = payoutID
	s.failDesc = resultDesc
	return nil
}

type fakeInitiator struct {
	req  *mpesa.PayoutRequest
	resp *mpesa.PayoutResponse
	err  error
	ops  *[]string
}

func (f *fakeInitiator) InitiateB2C(ctx context.Context, req mpesa.PayoutRequest) (*mpesa.PayoutResponse, error) {
	if f.ops != nil {
		*f.ops = append(*f.ops, "initiate")
	}
	f.req = &req
	return f.resp, f.err
}

func payoutBooking() *models.Booking {
	return &models.Booking{
		ID:          42,
		Reference:   "JK-abc12345",
		ProviderID:  2,
		AmountCents: 200000,
		PayoutCents: 180000,
		Status:      domain.BookingStatusCompleted,
	}
}

func TestDisburseWritesRowBeforeSubmitting(t *testing.T) {
	store := &fakePayoutStore{}
	init := &fakeInitiator{
		resp: &mpesa.PayoutResponse{ConversationID: "AG_1", ResponseCode: "0"},
		ops:  &store.ops,
	}
	svc := NewPayoutService(store, init, "174379")

	payout, err := svc.Disburse(context.Background(), payoutBooking(), "254712345678", 1)
	if err != nil {
		t.Fatalf("Disburse: %v", err)
	}
	if len(store.ops) < 2 || store.ops[0] != "create" || store.ops[1] != "initiate" {
		t.Fatalf("ops = %v, the pending row must be durable before the outbound call", store.ops)
	}
	if payout.OriginatorConversationID != "174379_Payout_42_1" {
		t.Fatalf("originator id = %q", payout.OriginatorConversationID)
	}
	if init.req.OriginatorConversationID != payout.OriginatorConversationID {
		t.Fatalf("submitted originator id = %q", init.req.OriginatorConversationID)
	}
	if payout.Status != domain.PayoutStatusPending {
		t.Fatalf("status = %s", payout.Status)
	}
	if payout.AmountCents != 180000 {
		t.Fatalf("amount = %d, want the commission-adjusted payout", payout.AmountCents)
	}
	if store.convID != "AG_1" || payout.ConversationID != "AG_1" {
		t.Fatalf("conversation id not recorded: store=%q payout=%q", store.convID, payout.ConversationID)
	}
}

func TestDisburseRejectedSubmissionFailsPayout(t *testing.T) {
	store := &fakePayoutStore{}
	init := &fakeInitiator{
		resp: &mpesa.PayoutResponse{ResponseCode: "1", ResponseDescription: "Invalid initiator"},
	}
	svc := NewPayoutService(store, init, "174379")

	_, err := svc.Disburse(context.Background(), payoutBooking(), "254712345678", 1)
	if !errors.Is(err, ErrPayoutRejected) {
		t.Fatalf("err = %v, want ErrPayoutRejected", err)
	}
	if store.failedID != 7 {
		t.Fatalf("failedID = %d, FailPayout must run so the earnings are re-credited", store.failedID)
	}
	if store.failDesc != "Invalid initiator" {
		t.Fatalf("failDesc = %q", store.failDesc)
	}
}

func TestDisburseTransportErrorFailsPayout(t *testing.T) {
	store := &fakePayoutStore{}
	init := &fakeInitiator{err: &mpesa.PayoutError{Err: errors.New("connection refused")}}
	svc := NewPayoutService(store, init, "174379")

	_, err := svc.Disburse(context.Background(), payoutBooking(), "254712345678", 2)
	if !errors.Is(err, ErrPayoutRejected) {
		t.Fatalf("err = %v, want ErrPayoutRejected", err)
	}
	if store.failedID != 7 {
		t.Fatal("FailPayout must run on transport failure")
	}
	if store.created.OriginatorConversationID != "174379_Payout_42_2" {
		t.Fatalf("originator id = %q, attempt number must advance", store.created.OriginatorConversationID)
	}
}

func TestDisburseInsufficientEarningsNeverSubmits(t *testing.T) {
	store := &fakePayoutStore{createErr: repository.ErrInsufficientEarnings}
	init := &fakeInitiator{ops: &store.ops}
	svc := NewPayoutService(store, init, "174379")

	_, err := svc.Disburse(context.Background(), payoutBooking(), "254712345678", 1)
	if !errors.Is(err, repository.ErrInsufficientEarnings) {
		t.Fatalf("err = %v", err)
	}
	for _, op := range store.ops {
		if op == "initiate" {
			t.Fatal("must not submit B2C when the debit failed")
		}
	}
}
