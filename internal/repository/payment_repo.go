package repository

import (
	"errors"

	"jikonnect/internal/domain"
	"jikonnect/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrActivePayment means the booking already has a non-FAILED payment;
// starting another would risk a double charge.
var ErrActivePayment = errors.New("booking already has an active payment")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment after verifying, under a lock on the booking row,
// that no other non-FAILED payment exists for it.
func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, p.BookingID).Error; err != nil {
			return err
		}
		var existing []models.Payment
		if err := tx.Where("booking_id = ?", p.BookingID).Find(&existing).Error; err != nil {
			return err
		}
		for i := range existing {
			if domain.PaymentBlocksNew(existing[i].Status) {
				return ErrActivePayment
			}
		}
		return tx.Create(p).Error
	})
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByCheckoutID(checkoutID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("checkout_request_id = ?", checkoutID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByBooking(bookingID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("booking_id = ?", bookingID).Order("created_at DESC").Find(&out).Error
	return out, err
}
