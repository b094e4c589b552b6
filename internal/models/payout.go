package models

import (
	"time"

	"gorm.io/gorm"
)

// PayoutRequest is one B2C disbursement attempt of a provider's earnings for
// a completed booking. OriginatorConversationID is deterministic
// ({shortcode}_Payout_{bookingID}_{attempt}) and written before the outbound
// call, so a crash-retry resumes the pending row instead of double-paying.
type PayoutRequest struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`
	BookingID                uint           `gorm:"not null;index" json:"booking_id"`
	ProviderID               uint           `gorm:"not null;index" json:"provider_id"`
	ProviderPhone            string         `gorm:"size:20;not null" json:"provider_phone"`
	AmountCents              int64          `gorm:"not null" json:"amount_cents"`
	Attempt                  int            `gorm:"not null;default:1" json:"attempt"`
	OriginatorConversationID string         `gorm:"size:128;uniqueIndex;not null" json:"originator_conversation_id"`
	ConversationID           string         `gorm:"size:128" json:"conversation_id"` // provider-assigned, from the B2C response
	Receipt                  string         `gorm:"size:64" json:"receipt"`
	Remarks                  string         `gorm:"size:255" json:"remarks"`
	Status                   string         `gorm:"size:20;not null;index" json:"status"` // PENDING, COMPLETED, FAILED
	ResultDesc               string         `gorm:"size:255" json:"result_desc"`
	CompletedAt              *time.Time     `json:"completed_at"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"-"`

	Booking  Booking `gorm:"foreignKey:BookingID" json:"-"`
	Provider User    `gorm:"foreignKey:ProviderID" json:"-"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}
