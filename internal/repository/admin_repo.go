package repository

import (
	"time"

	"ascend/internal/domain"
	"ascend/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers             int64 `json:"total_users"`
	ActiveUsers            int64 `json:"active_users"`
	PlacedUsers            int64 `json:"placed_users"`
	KYCApproved            int64 `json:"kyc_approved"`
	RankedUsers            int64 `json:"ranked_users"`
	TotalCommissionCents   int64 `json:"total_commission_cents"`
	PendingCommissionCents int64 `json:"pending_commission_cents"`
	AvailableCents         int64 `json:"available_cents"`
	PendingWalletCents     int64 `json:"pending_wallet_cents"`
	TotalWithdrawnCents    int64 `json:"total_withdrawn_cents"`
	OpenWithdrawals        int64 `json:"open_withdrawals"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type AmountPoint struct {
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats() (*DashboardStats, error) {
	var s DashboardStats
	r.db.Model(&models.User{}).Count(&s.TotalUsers)
	r.db.Model(&models.User{}).Where("is_active = ?", true).Count(&s.ActiveUsers)
	r.db.Model(&models.PlacementNode{}).Count(&s.PlacedUsers)
	r.db.Model(&models.User{}).Where("kyc = ?", true).Count(&s.KYCApproved)
	r.db.Model(&models.User{}).Where("rank_level > ?", 0).Count(&s.RankedUsers)

	var com struct{ Total int64 }
	r.db.Model(&models.Commission{}).Select("COALESCE(SUM(amount_cents), 0) as total").
		Where("status <> ?", domain.CommissionStatusCancelled).Scan(&com)
	s.TotalCommissionCents = com.Total

	var pend struct{ Total int64 }
	r.db.Model(&models.Commission{}).Select("COALESCE(SUM(amount_cents), 0) as total").
		Where("status = ?", domain.CommissionStatusPending).Scan(&pend)
	s.PendingCommissionCents = pend.Total

	var wal struct{ Available, Pending, Withdrawn int64 }
	err := r.db.Model(&models.Wallet{}).
		Select("COALESCE(SUM(available_cents), 0) as available, COALESCE(SUM(pending_cents), 0) as pending, COALESCE(SUM(total_withdrawn_cents), 0) as withdrawn").
		Scan(&wal).Error
	s.AvailableCents, s.PendingWalletCents, s.TotalWithdrawnCents = wal.Available, wal.Pending, wal.Withdrawn

	r.db.Model(&models.Withdrawal{}).
		Where("status IN ?", []string{domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing}).
		Count(&s.OpenWithdrawals)

	return &s, err
}

// ListUsers returns users with search and pagination.
func (r *AdminRepository) ListUsers(search string, page, limit int) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})
	if search != "" {
		q = q.Where("username LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	var total int64
	q.Count(&total)
	var users []models.User
	err := q.Preload("Rank").Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}

// ListTransactions returns wallet transactions with optional type filter.
func (r *AdminRepository) ListTransactions(txType string, page, limit int) ([]models.WalletTransaction, int64, error) {
	q := r.db.Model(&models.WalletTransaction{})
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var total int64
	q.Count(&total)
	var list []models.WalletTransaction
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// ActivationsByDay returns daily activation counts for the last N days.
func (r *AdminRepository) ActivationsByDay(days int) ([]TimeSeriesPoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var points []TimeSeriesPoint
	err := r.db.Model(&models.User{}).
		Select("DATE(activated_at) as date, COUNT(*) as count").
		Where("activated_at >= ?", since).
		Group("DATE(activated_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}

// CommissionsByDay returns daily non-cancelled commission totals for the last N days.
func (r *AdminRepository) CommissionsByDay(days int) ([]AmountPoint, error) {
	since := time.Now().AddDate(0, 0, -days)
	var points []AmountPoint
	err := r.db.Model(&models.Commission{}).
		Select("DATE(created_at) as date, COALESCE(SUM(amount_cents), 0) as amount_cents").
		Where("status <> ? AND created_at >= ?", domain.CommissionStatusCancelled, since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
