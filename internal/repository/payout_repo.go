package repository

import (
	"jikonnect/internal/domain"
	"jikonnect/internal/models"

	"gorm.io/gorm"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(p *models.PayoutRequest) error {
	return r.db.Create(p).Error
}

func (r *PayoutRepository) Update(p *models.PayoutRequest) error {
	return r.db.Save(p).Error
}

func (r *PayoutRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountByBooking includes failed attempts; used to derive the next attempt
// number for the deterministic idempotency key.
func (r *PayoutRepository) CountByBooking(bookingID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.PayoutRequest{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n, err
}

// HasOpenOrCompleted reports whether the booking already has a payout that
// is pending or succeeded; only FAILED payouts are retryable.
func (r *PayoutRepository) HasOpenOrCompleted(bookingID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.PayoutRequest{}).
		Where("booking_id = ? AND status <> ?", bookingID, domain.PayoutStatusFailed).
		Count(&n).Error
	return n > 0, err
}

func (r *PayoutRepository) ListByProvider(providerID uint) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	err := r.db.Where("provider_id = ?", providerID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *PayoutRepository) ListByStatus(status string) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	err := r.db.Where("status = ?", status).Order("created_at DESC").Find(&out).Error
	return out, err
}
