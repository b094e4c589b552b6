package models

import (
	"time"

	"jikonnect/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:128;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // CLIENT | PROVIDER | ADMIN
	Phone        string         `gorm:"size:20" json:"phone"`               // MSISDN, used for B2C payouts
	Verified     bool           `gorm:"default:false" json:"verified"`      // provider identity verified by admin
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsProvider() bool { return u.Role == domain.RoleProvider }
func (u *User) IsClient() bool   { return u.Role == domain.RoleClient }
func (u *User) IsAdmin() bool    { return u.Role == domain.RoleAdmin }
