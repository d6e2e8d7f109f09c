package repository

import (
	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func (r *WithdrawalRepository) Create(w *models.Withdrawal) error {
	return r.db.Create(w).Error
}

func (r *WithdrawalRepository) GetByID(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) Lock(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByReference(ref string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.Where("reference = ?", ref).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// HasInFlight reports whether the user has a pending or processing request.
func (r *WithdrawalRepository) HasInFlight(userID uint) (bool, error) {
	var c int64
	err := r.db.Model(&models.Withdrawal{}).
		Where("user_id = ? AND status IN ?", userID, []string{domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing}).
		Count(&c).Error
	return c > 0, err
}

func (r *WithdrawalRepository) Update(w *models.Withdrawal) error {
	return r.db.Save(w).Error
}

func (r *WithdrawalRepository) ListByUser(userID uint, page, limit int) ([]models.Withdrawal, int64, error) {
	q := r.db.Model(&models.Withdrawal{}).Where("user_id = ?", userID)
	var total int64
	q.Count(&total)
	var list []models.Withdrawal
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// List returns withdrawals with optional status filter.
func (r *WithdrawalRepository) List(status string, page, limit int) ([]models.Withdrawal, int64, error) {
	q := r.db.Model(&models.Withdrawal{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	var list []models.Withdrawal
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
