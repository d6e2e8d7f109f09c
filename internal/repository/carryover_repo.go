package repository

import (
	"errors"
	"time"

	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CarryoverRepository struct {
	db *gorm.DB
}

func NewCarryoverRepository(db *gorm.DB) *CarryoverRepository {
	return &CarryoverRepository{db: db}
}

func (r *CarryoverRepository) WithTx(tx *gorm.DB) *CarryoverRepository {
	return &CarryoverRepository{db: tx}
}

func (r *CarryoverRepository) GetByUserID(userID uint) (*models.CarryoverLedger, error) {
	var l models.CarryoverLedger
	err := r.db.Where("user_id = ?", userID).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LockOrCreate returns the user's ledger locked FOR UPDATE, creating an empty
// one on first use.
func (r *CarryoverRepository) LockOrCreate(userID uint) (*models.CarryoverLedger, error) {
	var l models.CarryoverLedger
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&l).Error
	if err == nil {
		return &l, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	l = models.CarryoverLedger{UserID: userID}
	if err := r.db.Create(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *CarryoverRepository) Save(l *models.CarryoverLedger) error {
	return r.db.Model(l).Select(
		"left_carryover", "right_carryover", "left_cycles", "right_cycles",
		"left_settled", "right_settled", "last_period_start", "last_period_end", "updated_at",
	).Updates(l).Error
}

type BinaryRunRepository struct {
	db *gorm.DB
}

func NewBinaryRunRepository(db *gorm.DB) *BinaryRunRepository {
	return &BinaryRunRepository{db: db}
}

func (r *BinaryRunRepository) WithTx(tx *gorm.DB) *BinaryRunRepository {
	return &BinaryRunRepository{db: tx}
}

func (r *BinaryRunRepository) Exists(userID uint, periodStart time.Time) (bool, error) {
	var c int64
	err := r.db.Model(&models.BinaryRun{}).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		Count(&c).Error
	return c > 0, err
}

func (r *BinaryRunRepository) Create(run *models.BinaryRun) error {
	return r.db.Create(run).Error
}

func (r *BinaryRunRepository) ListByUser(userID uint, limit, offset int) ([]models.BinaryRun, error) {
	var list []models.BinaryRun
	err := r.db.Where("user_id = ?", userID).Order("period_start DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
