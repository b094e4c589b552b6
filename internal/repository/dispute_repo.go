package repository

import (
	"jikonnect/internal/domain"
	"jikonnect/internal/models"

	"gorm.io/gorm"
)

type DisputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(d *models.Dispute) error {
	return r.db.Create(d).Error
}

func (r *DisputeRepository) GetByID(id uint) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepository) ListOpen() ([]models.Dispute, error) {
	var out []models.Dispute
	err := r.db.Where("status = ?", domain.DisputeStatusOpen).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *DisputeRepository) Update(d *models.Dispute) error {
	return r.db.Save(d).Error
}
