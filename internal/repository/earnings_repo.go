package repository

import (
	"errors"

	"jikonnect/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientEarnings = errors.New("insufficient earnings balance")

type EarningsRepository struct {
	db *gorm.DB
}

func NewEarningsRepository(db *gorm.DB) *EarningsRepository {
	return &EarningsRepository{db: db}
}

func (r *EarningsRepository) GetOrCreate(providerID uint) (*models.EarningsAccount, error) {
	var acct models.EarningsAccount
	err := r.db.Where("provider_id = ?", providerID).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	acct = models.EarningsAccount{ProviderID: providerID, Currency: "KES"}
	if err := r.db.Create(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

// Credit adds the commission-adjusted payout for a completed booking.
func (r *EarningsRepository) Credit(providerID uint, amountCents int64) error {
	if _, err := r.GetOrCreate(providerID); err != nil {
		return err
	}
	return r.db.Model(&models.EarningsAccount{}).
		Where("provider_id = ?", providerID).
		Update("available_cents", gorm.Expr("available_cents + ?", amountCents)).Error
}

// Debit reserves balance for a payout, failing under lock if the available
// balance does not cover it.
func (r *EarningsRepository) Debit(providerID uint, amountCents int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var acct models.EarningsAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_id = ?", providerID).First(&acct).Error; err != nil {
			return err
		}
		if acct.AvailableCents < amountCents {
			return ErrInsufficientEarnings
		}
		acct.AvailableCents -= amountCents
		return tx.Save(&acct).Error
	})
}
