package repository

import (
	"ascend/internal/models"

	"gorm.io/gorm"
)

type RankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) *RankRepository {
	return &RankRepository{db: db}
}

func (r *RankRepository) WithTx(tx *gorm.DB) *RankRepository {
	return &RankRepository{db: tx}
}

// ListDescending returns every rank, highest level first.
func (r *RankRepository) ListDescending() ([]models.Rank, error) {
	var list []models.Rank
	err := r.db.Order("level DESC").Find(&list).Error
	return list, err
}

func (r *RankRepository) GetByID(id uint) (*models.Rank, error) {
	var rk models.Rank
	if err := r.db.First(&rk, id).Error; err != nil {
		return nil, err
	}
	return &rk, nil
}

func (r *RankRepository) CreateHistory(h *models.RankHistory) error {
	return r.db.Create(h).Error
}

func (r *RankRepository) ListHistory(userID uint, limit int) ([]models.RankHistory, error) {
	var list []models.RankHistory
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}
