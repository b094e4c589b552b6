package repository

import (
	"jikonnect/internal/models"

	"gorm.io/gorm"
)

// CallbackEventRepository serves the admin dead-letter review queue; the
// reconciler writes events through its own store.
type CallbackEventRepository struct {
	db *gorm.DB
}

func NewCallbackEventRepository(db *gorm.DB) *CallbackEventRepository {
	return &CallbackEventRepository{db: db}
}

func (r *CallbackEventRepository) ListUnreviewed() ([]models.CallbackEvent, error) {
	var out []models.CallbackEvent
	err := r.db.Where("reviewed = ?", false).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *CallbackEventRepository) MarkReviewed(id uint) error {
	return r.db.Model(&models.CallbackEvent{}).Where("id = ?", id).Update("reviewed", true).Error
}
