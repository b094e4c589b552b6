package repository

import (
	"jikonnect/internal/domain"
	"jikonnect/internal/models"

	"gorm.io/gorm"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(v *models.Verification) error {
	return r.db.Create(v).Error
}

func (r *VerificationRepository) GetByID(id uint) (*models.Verification, error) {
	var v models.Verification
	err := r.db.First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) LatestByProvider(providerID uint) (*models.Verification, error) {
	var v models.Verification
	err := r.db.Where("provider_id = ?", providerID).Order("created_at DESC").First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) ListPending() ([]models.Verification, error) {
	var out []models.Verification
	err := r.db.Where("status = ?", domain.VerificationStatusPending).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *VerificationRepository) Update(v *models.Verification) error {
	return r.db.Save(v).Error
}
