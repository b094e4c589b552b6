package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is one STK push attempt for a booking, keyed by the provider's
// CheckoutRequestID. PENDING/SUBMITTED payments are open; PAID and FAILED
// are terminal and never mutated again (a success callback landing on a
// FAILED row only sets LateSuccessAt, it does not flip the status).
type Payment struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	BookingID         uint           `gorm:"not null;index" json:"booking_id"`
	AmountCents       int64          `gorm:"not null" json:"amount_cents"`
	Currency          string         `gorm:"size:3;default:'KES'" json:"currency"`
	Status            string         `gorm:"size:20;not null;index" json:"status"` // PENDING, SUBMITTED, PAID, FAILED
	CheckoutRequestID string         `gorm:"size:128;uniqueIndex;not null" json:"checkout_request_id"`
	MerchantRequestID string         `gorm:"size:128" json:"merchant_request_id"`
	PhoneNumber       string         `gorm:"size:20" json:"phone_number"`
	Receipt           string         `gorm:"size:64" json:"receipt"` // M-Pesa receipt, set only on success
	FailureReason     string         `gorm:"size:255" json:"failure_reason"`
	PaidAt            *time.Time     `json:"paid_at"`
	LateSuccessAt     *time.Time     `json:"late_success_at"` // success callback seen after local FAILED
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Booking Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
