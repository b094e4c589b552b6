package repository

import (
	"errors"
	"time"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrAlreadyApplied means the row was terminal with the same outcome;
	// the caller treats it as an idempotent no-op.
	ErrAlreadyApplied = errors.New("transition already applied")
	// ErrPaymentTerminal means the payment is FAILED and a conflicting
	// success arrived; the caller records the conflict instead.
	ErrPaymentTerminal = errors.New("payment is terminal")
)

// ReconcileStore applies payment and payout state transitions under row
// locks so a racing duplicate callback or poll observes the terminal state
// instead of double-applying.
type ReconcileStore struct {
	db *gorm.DB
}

func NewReconcileStore(db *gorm.DB) *ReconcileStore {
	return &ReconcileStore{db: db}
}

func (s *ReconcileStore) FindPaymentByCheckoutID(checkoutID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.Where("checkout_request_id = ?", checkoutID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletePayment flips an open payment to PAID and advances the owning
// booking CONFIRMED -> IN_PROGRESS in the same transaction.
func (s *ReconcileStore) CompletePayment(paymentID uint, receipt string, paidAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, paymentID).Error; err != nil {
			return err
		}
		switch p.Status {
		case domain.PaymentStatusPaid:
			return ErrAlreadyApplied
		case domain.PaymentStatusFailed:
			return ErrPaymentTerminal
		}
		p.Status = domain.PaymentStatusPaid
		p.Receipt = receipt
		p.PaidAt = &paidAt
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		var b models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, p.BookingID).Error; err != nil {
			return err
		}
		if next, ok := domain.NextBookingStatusOnPayment(b.Status); ok {
			b.Status = next
			if err := tx.Save(&b).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FailPayment flips an open payment to FAILED. The booking keeps its
// pre-payment status so the client can retry the charge.
func (s *ReconcileStore) FailPayment(paymentID uint, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, paymentID).Error; err != nil {
			return err
		}
		if domain.IsTerminalPaymentStatus(p.Status) {
			return ErrAlreadyApplied
		}
		p.Status = domain.PaymentStatusFailed
		p.FailureReason = reason
		return tx.Save(&p).Error
	})
}

// FlagLateSuccess records that a success callback landed on a payment the
// system had already marked FAILED. The terminal fields stay untouched.
func (s *ReconcileStore) FlagLateSuccess(paymentID uint, at time.Time) error {
	return s.db.Model(&models.Payment{}).
		Where("id = ? AND late_success_at IS NULL", paymentID).
		Update("late_success_at", at).Error
}

func (s *ReconcileStore) SaveCallbackEvent(ev *models.CallbackEvent) error {
	return s.db.Create(ev).Error
}

// CreatePayoutWithDebit reserves the provider's earnings and records the
// PENDING payout in one transaction, so a crash can never leave a debit
// without its payout row or the reverse.
func (s *ReconcileStore) CreatePayoutWithDebit(p *models.PayoutRequest) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var acct models.EarningsAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_id = ?", p.ProviderID).First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficientEarnings
		}
		if err != nil {
			return err
		}
		if acct.AvailableCents < p.AmountCents {
			return ErrInsufficientEarnings
		}
		acct.AvailableCents -= p.AmountCents
		if err := tx.Save(&acct).Error; err != nil {
			return err
		}
		return tx.Create(p).Error
	})
}

// SetPayoutConversationID records the provider-assigned conversation id from
// an accepted B2C submission.
func (s *ReconcileStore) SetPayoutConversationID(payoutID uint, conversationID string) error {
	return s.db.Model(&models.PayoutRequest{}).
		Where("id = ?", payoutID).
		Update("conversation_id", conversationID).Error
}

func (s *ReconcileStore) FindPayoutByOriginatorID(originatorID string) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := s.db.Where("originator_conversation_id = ?", originatorID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ReconcileStore) CompletePayout(payoutID uint, receipt string, at time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var p models.PayoutRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, payoutID).Error; err != nil {
			return err
		}
		if p.Status != domain.PayoutStatusPending {
			return ErrAlreadyApplied
		}
		p.Status = domain.PayoutStatusCompleted
		p.Receipt = receipt
		p.CompletedAt = &at
		return tx.Save(&p).Error
	})
}

// FailPayout marks the payout FAILED and re-credits the provider's earnings
// in the same transaction, leaving the booking payable again.
func (s *ReconcileStore) FailPayout(payoutID uint, resultDesc string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var p models.PayoutRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, payoutID).Error; err != nil {
			return err
		}
		if p.Status != domain.PayoutStatusPending {
			return ErrAlreadyApplied
		}
		p.Status = domain.PayoutStatusFailed
		p.ResultDesc = resultDesc
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		var acct models.EarningsAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_id = ?", p.ProviderID).First(&acct).Error; err != nil {
			return err
		}
		acct.AvailableCents += p.AmountCents
		return tx.Save(&acct).Error
	})
}
