package models

import (
	"time"

	"gorm.io/gorm"
)

// Verification is a provider's identity document submission, reviewed by an
// admin before the provider can receive bookings.
type Verification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProviderID  uint           `gorm:"not null;index" json:"provider_id"`
	DocumentURL string         `gorm:"size:512;not null" json:"document_url"`
	Status      string         `gorm:"size:20;not null;default:'PENDING';index" json:"status"` // PENDING, APPROVED, REJECTED
	Notes       string         `gorm:"size:255" json:"notes"`
	ReviewedBy  *uint          `json:"reviewed_by"`
	ReviewedAt  *time.Time     `json:"reviewed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Provider User `gorm:"foreignKey:ProviderID" json:"-"`
}

func (Verification) TableName() string {
	return "verifications"
}

type Dispute struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	BookingID  uint           `gorm:"not null;index" json:"booking_id"`
	OpenedBy   uint           `gorm:"not null;index" json:"opened_by"`
	Reason     string         `gorm:"size:50" json:"reason"`
	Details    string         `gorm:"type:text" json:"details"`
	Status     string         `gorm:"size:20;default:'OPEN';index" json:"status"` // OPEN, RESOLVED, REJECTED
	Resolution string         `gorm:"size:255" json:"resolution"`
	ResolvedBy *uint          `json:"resolved_by"`
	ResolvedAt *time.Time     `json:"resolved_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Booking Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (Dispute) TableName() string {
	return "disputes"
}

type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	Action     string    `gorm:"size:100;not null;index" json:"action"`
	Resource   string    `gorm:"size:100;index" json:"resource"`
	ResourceID string    `gorm:"size:100;index" json:"resource_id"`
	IP         string    `gorm:"size:45" json:"ip"`
	UserAgent  string    `gorm:"size:512" json:"user_agent"`
	Metadata   string    `gorm:"type:text" json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
