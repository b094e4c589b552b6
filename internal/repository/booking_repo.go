package repository

import (
	"jikonnect/internal/models"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(b *models.Booking) error {
	return r.db.Create(b).Error
}

func (r *BookingRepository) GetByID(id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) GetByReference(ref string) (*models.Booking, error) {
	var b models.Booking
	err := r.db.Where("reference = ?", ref).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) Update(b *models.Booking) error {
	return r.db.Save(b).Error
}

func (r *BookingRepository) ListByClient(clientID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := r.db.Where("client_id = ?", clientID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *BookingRepository) ListByProvider(providerID uint) ([]models.Booking, error) {
	var out []models.Booking
	err := r.db.Where("provider_id = ?", providerID).Order("created_at DESC").Find(&out).Error
	return out, err
}
