package repository

import (
	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

func (r *CommissionRepository) Create(c *models.Commission) error {
	return r.db.Create(c).Error
}

// ExistsByKey reports whether a commission with the dedupe key was recorded.
func (r *CommissionRepository) ExistsByKey(key string) (bool, error) {
	var c int64
	err := r.db.Model(&models.Commission{}).Where("dedupe_key = ?", key).Count(&c).Error
	return c > 0, err
}

func (r *CommissionRepository) GetByID(id uint) (*models.Commission, error) {
	var c models.Commission
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) Lock(id uint) (*models.Commission, error) {
	var c models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// SetStatus moves a commission from one status to another; it returns
// domain.ErrInvalidTransition when the row was not in the expected status.
func (r *CommissionRepository) SetStatus(id uint, from, to string) error {
	res := r.db.Model(&models.Commission{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ApprovePending flips every pending commission of a beneficiary to approved.
func (r *CommissionRepository) ApprovePending(beneficiaryID uint) (int64, error) {
	res := r.db.Model(&models.Commission{}).
		Where("beneficiary_id = ? AND status = ?", beneficiaryID, domain.CommissionStatusPending).
		Update("status", domain.CommissionStatusApproved)
	return res.RowsAffected, res.Error
}

type CommissionFilter struct {
	BeneficiaryID uint
	Type          string
	Status        string
	OrderID       string
}

func (r *CommissionRepository) List(f CommissionFilter, page, limit int) ([]models.Commission, int64, error) {
	q := r.db.Model(&models.Commission{})
	if f.BeneficiaryID != 0 {
		q = q.Where("beneficiary_id = ?", f.BeneficiaryID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	var total int64
	q.Count(&total)
	var list []models.Commission
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// TypeTotal is the sum of commissions of one type and status.
type TypeTotal struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Cents  int64  `json:"cents"`
}

// Totals groups a beneficiary's commissions by type and status. A zero
// beneficiaryID covers everyone.
func (r *CommissionRepository) Totals(beneficiaryID uint) ([]TypeTotal, error) {
	q := r.db.Model(&models.Commission{})
	if beneficiaryID != 0 {
		q = q.Where("beneficiary_id = ?", beneficiaryID)
	}
	var out []TypeTotal
	err := q.Select("type, status, COUNT(*) as count, COALESCE(SUM(amount_cents), 0) as cents").
		Group("type, status").Order("type, status").Scan(&out).Error
	return out, err
}

// SumLive returns the total of a beneficiary's non-cancelled commissions.
func (r *CommissionRepository) SumLive(beneficiaryID uint) (int64, error) {
	var row struct{ Total int64 }
	err := r.db.Model(&models.Commission{}).
		Select("COALESCE(SUM(amount_cents), 0) as total").
		Where("beneficiary_id = ? AND status <> ?", beneficiaryID, domain.CommissionStatusCancelled).
		Scan(&row).Error
	return row.Total, err
}

type OrderEventRepository struct {
	db *gorm.DB
}

func NewOrderEventRepository(db *gorm.DB) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

func (r *OrderEventRepository) WithTx(tx *gorm.DB) *OrderEventRepository {
	return &OrderEventRepository{db: tx}
}

func (r *OrderEventRepository) Exists(orderID string) (bool, error) {
	var c int64
	err := r.db.Model(&models.OrderEvent{}).Where("order_id = ?", orderID).Count(&c).Error
	return c > 0, err
}

func (r *OrderEventRepository) Create(e *models.OrderEvent) error {
	return r.db.Create(e).Error
}
