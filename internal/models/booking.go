package models

import (
	"time"

	"gorm.io/gorm"
)

// Booking is one service engagement between a client and a provider.
// CommissionCents is fixed at creation; PayoutCents = AmountCents - CommissionCents.
type Booking struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Reference       string         `gorm:"size:64;uniqueIndex;not null" json:"reference"` // used as STK AccountReference
	ClientID        uint           `gorm:"not null;index" json:"client_id"`
	ProviderID      uint           `gorm:"not null;index" json:"provider_id"`
	ServiceName     string         `gorm:"size:128;not null" json:"service_name"`
	AmountCents     int64          `gorm:"not null" json:"amount_cents"`
	CommissionCents int64          `gorm:"not null" json:"commission_cents"`
	PayoutCents     int64          `gorm:"not null" json:"payout_cents"`
	Currency        string         `gorm:"size:3;default:'KES'" json:"currency"`
	Status          string         `gorm:"size:20;not null;index" json:"status"` // PENDING, CONFIRMED, IN_PROGRESS, COMPLETED, CANCELLED, DISPUTED, FAILED
	ScheduledAt     *time.Time     `json:"scheduled_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	Client   User `gorm:"foreignKey:ClientID" json:"-"`
	Provider User `gorm:"foreignKey:ProviderID" json:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}
