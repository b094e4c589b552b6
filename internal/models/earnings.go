package models

import (
	"time"

	"gorm.io/gorm"
)

// EarningsAccount tracks a provider's commission-adjusted balance. Credited
// when a booking completes, debited when a payout is initiated, re-credited
// if the payout fails.
type EarningsAccount struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ProviderID     uint           `gorm:"uniqueIndex;not null" json:"provider_id"`
	AvailableCents int64          `gorm:"not null;default:0" json:"available_cents"`
	Currency       string         `gorm:"size:3;default:'KES'" json:"currency"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Provider User `gorm:"foreignKey:ProviderID" json:"-"`
}

func (EarningsAccount) TableName() string {
	return "earnings_accounts"
}
