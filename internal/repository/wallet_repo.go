package repository

import (
	"errors"

	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LockOrCreate returns the user's wallet locked FOR UPDATE, creating an empty
// one on first use.
func (r *WalletRepository) LockOrCreate(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = models.Wallet{UserID: userID, Currency: "EUR"}
	if err := r.db.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Save writes every balance column of w. Callers hold the row lock.
func (r *WalletRepository) Save(w *models.Wallet) error {
	return r.db.Model(w).Select(
		"available_cents", "pending_cents", "total_earned_cents", "total_withdrawn_cents",
		"direct_earned_cents", "binary_earned_cents", "multilevel_earned_cents", "rank_bonus_earned_cents",
		"updated_at",
	).Updates(w).Error
}

func (r *WalletRepository) CreateTransaction(t *models.WalletTransaction) error {
	return r.db.Create(t).Error
}

// CompletePendingCommissions flips the user's pending commission entries to completed.
func (r *WalletRepository) CompletePendingCommissions(userID uint) (int64, error) {
	res := r.db.Model(&models.WalletTransaction{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, domain.WalletTxCommission, domain.WalletTxStatusPending).
		Update("status", domain.WalletTxStatusCompleted)
	return res.RowsAffected, res.Error
}

// CancelCommissionEntry marks the original credit of a cancelled commission.
func (r *WalletRepository) CancelCommissionEntry(commissionID uint) error {
	return r.db.Model(&models.WalletTransaction{}).
		Where("commission_id = ? AND type = ?", commissionID, domain.WalletTxCommission).
		Update("status", domain.WalletTxStatusCancelled).Error
}

func (r *WalletRepository) ListTransactions(userID uint, txType string, page, limit int) ([]models.WalletTransaction, int64, error) {
	q := r.db.Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var total int64
	q.Count(&total)
	var list []models.WalletTransaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// PageWallets returns wallets with user_id > afterID in ascending order.
func (r *WalletRepository) PageWallets(afterID uint, limit int) ([]models.Wallet, error) {
	var list []models.Wallet
	err := r.db.Where("user_id > ?", afterID).Order("user_id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// SetWithdrawalEntryStatus updates the reservation entry of a withdrawal.
func (r *WalletRepository) SetWithdrawalEntryStatus(withdrawalID uint, status string) error {
	return r.db.Model(&models.WalletTransaction{}).
		Where("withdrawal_id = ? AND type = ?", withdrawalID, domain.WalletTxWithdrawal).
		Update("status", status).Error
}
