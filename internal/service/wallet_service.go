package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/metrics"
	"ascend/internal/models"
	"ascend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletService is the ledger every commission flows into. Balances change
// only inside a transaction holding the wallet row lock, and each change
// appends a WalletTransaction.
type WalletService struct {
	db          *gorm.DB
	wallets     *repository.WalletRepository
	withdrawals *repository.WithdrawalRepository
	commissions *repository.CommissionRepository
	users       *repository.UserRepository
	plans       *PlanProvider
	retries     int
}

func NewWalletService(
	db *gorm.DB,
	wallets *repository.WalletRepository,
	withdrawals *repository.WithdrawalRepository,
	commissions *repository.CommissionRepository,
	users *repository.UserRepository,
	plans *PlanProvider,
	retries int,
) *WalletService {
	return &WalletService{
		db:          db,
		wallets:     wallets,
		withdrawals: withdrawals,
		commissions: commissions,
		users:       users,
		plans:       plans,
		retries:     retries,
	}
}

// CreditInput describes one commission credit.
type CreditInput struct {
	UserID       uint
	AmountCents  int64
	Category     string
	Reference    string
	CommissionID *uint
}

// Credit books amount into the user's wallet inside tx. The KYC flag is read
// after the wallet lock is taken, so a concurrent approval is never missed:
// approved users are credited to available, others to pending. It reports
// whether the funds went to available.
func (s *WalletService) Credit(tx *gorm.DB, in CreditInput) (bool, error) {
	if in.AmountCents <= 0 {
		return false, domain.ErrInvalidAmount
	}
	wallets := s.wallets.WithTx(tx)
	w, err := wallets.LockOrCreate(in.UserID)
	if err != nil {
		return false, err
	}
	user, err := s.users.WithTx(tx).Lock(in.UserID)
	if err != nil {
		return false, notFound(err, domain.ErrUserNotFound, "user %d", in.UserID)
	}

	w.TotalEarnedCents += in.AmountCents
	addSubtotal(w, in.Category, in.AmountCents)
	status := domain.WalletTxStatusPending
	if user.KYC {
		w.AvailableCents += in.AmountCents
		status = domain.WalletTxStatusCompleted
	} else {
		w.PendingCents += in.AmountCents
	}
	if err := wallets.Save(w); err != nil {
		return false, err
	}
	err = wallets.CreateTransaction(&models.WalletTransaction{
		WalletID:          w.ID,
		UserID:            in.UserID,
		Type:              domain.WalletTxCommission,
		Category:          in.Category,
		AmountCents:       in.AmountCents,
		BalanceAfterCents: w.Balance(),
		Status:            status,
		CommissionID:      in.CommissionID,
		Reference:         in.Reference,
	})
	return user.KYC, err
}

func addSubtotal(w *models.Wallet, category string, delta int64) {
	switch category {
	case domain.CommissionTypeDirect:
		w.DirectEarnedCents += delta
	case domain.CommissionTypeBinary:
		w.BinaryEarnedCents += delta
	case domain.CommissionTypeMultilevel:
		w.MultilevelEarnedCents += delta
	case domain.CommissionTypeRankBonus:
		w.RankBonusEarnedCents += delta
	}
}

// reverse removes a cancelled commission's amount from the bucket it sits
// in and appends an offsetting entry.
func (s *WalletService) reverse(tx *gorm.DB, c *models.Commission) error {
	wallets := s.wallets.WithTx(tx)
	w, err := wallets.LockOrCreate(c.BeneficiaryID)
	if err != nil {
		return err
	}
	switch c.Status {
	case domain.CommissionStatusPending:
		if w.PendingCents < c.AmountCents {
			return fmt.Errorf("%w: pending %d < %d", domain.ErrNegativeBalance, w.PendingCents, c.AmountCents)
		}
		w.PendingCents -= c.AmountCents
		if err := wallets.CancelCommissionEntry(c.ID); err != nil {
			return err
		}
	case domain.CommissionStatusApproved:
		if w.AvailableCents < c.AmountCents {
			return fmt.Errorf("%w: available %d < %d", domain.ErrNegativeBalance, w.AvailableCents, c.AmountCents)
		}
		w.AvailableCents -= c.AmountCents
	default:
		return domain.ErrInvalidTransition
	}
	w.TotalEarnedCents -= c.AmountCents
	addSubtotal(w, c.Type, -c.AmountCents)
	if err := wallets.Save(w); err != nil {
		return err
	}
	id := c.ID
	return wallets.CreateTransaction(&models.WalletTransaction{
		WalletID:          w.ID,
		UserID:            c.BeneficiaryID,
		Type:              domain.WalletTxCommissionReversal,
		Category:          c.Type,
		AmountCents:       -c.AmountCents,
		BalanceAfterCents: w.Balance(),
		Status:            domain.WalletTxStatusCompleted,
		CommissionID:      &id,
		Reference:         c.DedupeKey,
	})
}

// OnKycApproved marks the user approved and moves the whole pending balance
// to available, completing pending entries and approving pending
// commissions. It returns the amount released.
func (s *WalletService) OnKycApproved(ctx context.Context, userID uint) (int64, error) {
	var released int64
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			wallets := s.wallets.WithTx(tx)
			users := s.users.WithTx(tx)
			w, err := wallets.LockOrCreate(userID)
			if err != nil {
				return err
			}
			if _, err := users.Lock(userID); err != nil {
				return notFound(err, domain.ErrUserNotFound, "user %d", userID)
			}
			now := time.Now()
			if err := users.SetKYC(userID, true, &now); err != nil {
				return err
			}
			released = w.PendingCents
			if released > 0 {
				w.AvailableCents += w.PendingCents
				w.PendingCents = 0
				if err := wallets.Save(w); err != nil {
					return err
				}
			}
			if _, err := wallets.CompletePendingCommissions(userID); err != nil {
				return err
			}
			_, err = s.commissions.WithTx(tx).ApprovePending(userID)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	logger.Info("[wallet] KYC approved for user %d, released %d", userID, released)
	return released, nil
}

// OnKycRejected clears the KYC flag. Pending funds stay pending.
func (s *WalletService) OnKycRejected(ctx context.Context, userID uint) error {
	users := s.users.WithTx(s.db.WithContext(ctx))
	if _, err := users.GetByID(userID); err != nil {
		return notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	if err := users.SetKYC(userID, false, nil); err != nil {
		return err
	}
	logger.Info("[wallet] KYC rejected for user %d, pending funds held", userID)
	return nil
}

// WithdrawalInput is a member's payout request.
type WithdrawalInput struct {
	UserID      uint
	AmountCents int64
	Method      string
	Destination string
}

// RequestWithdrawal reserves amount from available and opens a pending
// request. The reserved amount counts as withdrawn until the request is
// rejected.
func (s *WalletService) RequestWithdrawal(ctx context.Context, in WithdrawalInput) (*models.Withdrawal, error) {
	if in.AmountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if in.Method == "" {
		return nil, domain.ErrInvalidMethod
	}
	rules := s.plans.Current().Withdrawal
	fee := rules.Fee(in.AmountCents)

	var wd *models.Withdrawal
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			wallets := s.wallets.WithTx(tx)
			withdrawals := s.withdrawals.WithTx(tx)
			w, err := wallets.LockOrCreate(in.UserID)
			if err != nil {
				return err
			}
			user, err := s.users.WithTx(tx).GetByID(in.UserID)
			if err != nil {
				return notFound(err, domain.ErrUserNotFound, "user %d", in.UserID)
			}
			if !user.KYC {
				return domain.ErrKycNotApproved
			}
			if in.AmountCents < rules.MinCents || in.AmountCents-fee <= 0 {
				return domain.ErrBelowMinimum
			}
			busy, err := withdrawals.HasInFlight(in.UserID)
			if err != nil {
				return err
			}
			if busy {
				return domain.ErrWithdrawalInFlight
			}
			if in.AmountCents > w.AvailableCents {
				return domain.ErrInsufficientBalance
			}

			w.AvailableCents -= in.AmountCents
			w.TotalWithdrawnCents += in.AmountCents
			if err := wallets.Save(w); err != nil {
				return err
			}
			wd = &models.Withdrawal{
				UserID:      in.UserID,
				Reference:   uuid.NewString(),
				AmountCents: in.AmountCents,
				FeeCents:    fee,
				NetCents:    in.AmountCents - fee,
				Method:      in.Method,
				Destination: in.Destination,
				Status:      domain.WithdrawalStatusPending,
			}
			if err := withdrawals.Create(wd); err != nil {
				return err
			}
			id := wd.ID
			return wallets.CreateTransaction(&models.WalletTransaction{
				WalletID:          w.ID,
				UserID:            in.UserID,
				Type:              domain.WalletTxWithdrawal,
				AmountCents:       -in.AmountCents,
				BalanceAfterCents: w.Balance(),
				Status:            domain.WalletTxStatusPending,
				WithdrawalID:      &id,
				Reference:         wd.Reference,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues(wd.Status).Inc()
	logger.Info("[withdrawal] user %d requested %d (fee %d) ref=%s", in.UserID, in.AmountCents, fee, wd.Reference)
	return wd, nil
}

// ApproveWithdrawal moves a pending request to processing.
func (s *WalletService) ApproveWithdrawal(ctx context.Context, id uint, actor Actor) (*models.Withdrawal, error) {
	return s.transition(ctx, id, actor, "withdrawal.approve", func(tx *gorm.DB, wd *models.Withdrawal) error {
		if wd.Status != domain.WithdrawalStatusPending {
			return domain.ErrInvalidTransition
		}
		now := time.Now()
		wd.Status = domain.WithdrawalStatusProcessing
		wd.ProcessedAt = &now
		return nil
	})
}

// CompleteWithdrawal marks a processing request as paid out.
func (s *WalletService) CompleteWithdrawal(ctx context.Context, id uint, actor Actor) (*models.Withdrawal, error) {
	return s.transition(ctx, id, actor, "withdrawal.complete", func(tx *gorm.DB, wd *models.Withdrawal) error {
		if wd.Status != domain.WithdrawalStatusProcessing {
			return domain.ErrInvalidTransition
		}
		now := time.Now()
		wd.Status = domain.WithdrawalStatusCompleted
		wd.CompletedAt = &now
		return s.wallets.WithTx(tx).SetWithdrawalEntryStatus(wd.ID, domain.WalletTxStatusCompleted)
	})
}

// RejectWithdrawal closes a pending or processing request and returns the
// reserved amount to available with a cancelling entry.
func (s *WalletService) RejectWithdrawal(ctx context.Context, id uint, reason string, actor Actor) (*models.Withdrawal, error) {
	return s.transition(ctx, id, actor, "withdrawal.reject", func(tx *gorm.DB, wd *models.Withdrawal) error {
		if !wd.InFlight() {
			return domain.ErrInvalidTransition
		}
		wallets := s.wallets.WithTx(tx)
		w, err := wallets.LockOrCreate(wd.UserID)
		if err != nil {
			return err
		}
		if w.TotalWithdrawnCents < wd.AmountCents {
			return fmt.Errorf("%w: withdrawn %d < %d", domain.ErrNegativeBalance, w.TotalWithdrawnCents, wd.AmountCents)
		}
		w.AvailableCents += wd.AmountCents
		w.TotalWithdrawnCents -= wd.AmountCents
		if err := wallets.Save(w); err != nil {
			return err
		}
		if err := wallets.SetWithdrawalEntryStatus(wd.ID, domain.WalletTxStatusCancelled); err != nil {
			return err
		}
		wid := wd.ID
		if err := wallets.CreateTransaction(&models.WalletTransaction{
			WalletID:          w.ID,
			UserID:            wd.UserID,
			Type:              domain.WalletTxWithdrawalCancel,
			AmountCents:       wd.AmountCents,
			BalanceAfterCents: w.Balance(),
			Status:            domain.WalletTxStatusCompleted,
			WithdrawalID:      &wid,
			Reference:         wd.Reference,
		}); err != nil {
			return err
		}
		wd.Status = domain.WithdrawalStatusRejected
		wd.RejectionReason = reason
		return nil
	})
}

// SettlePayout applies a payout provider's final report to the request
// with the given reference: paid completes it, anything else rejects it and
// refunds the reserved amount.
func (s *WalletService) SettlePayout(ctx context.Context, reference string, paid bool, reason string) (*models.Withdrawal, error) {
	wd, err := s.withdrawals.WithTx(s.db.WithContext(ctx)).GetByReference(reference)
	if err != nil {
		return nil, err
	}
	actor := Actor{UserAgent: "payout-callback"}
	if paid {
		return s.CompleteWithdrawal(ctx, wd.ID, actor)
	}
	if reason == "" {
		reason = "payout failed"
	}
	return s.RejectWithdrawal(ctx, wd.ID, reason, actor)
}

func (s *WalletService) transition(ctx context.Context, id uint, actor Actor, action string, apply func(tx *gorm.DB, wd *models.Withdrawal) error) (*models.Withdrawal, error) {
	var wd *models.Withdrawal
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			withdrawals := s.withdrawals.WithTx(tx)
			var err error
			wd, err = withdrawals.Lock(id)
			if err != nil {
				return err
			}
			from := wd.Status
			if err := apply(tx, wd); err != nil {
				return err
			}
			if err := withdrawals.Update(wd); err != nil {
				return err
			}
			return audit(tx, actor, action, "withdrawal", wd.ID, map[string]string{"from": from, "to": wd.Status})
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues(wd.Status).Inc()
	logger.Info("[withdrawal] %s ref=%s now %s", action, wd.Reference, wd.Status)
	return wd, nil
}

// Balance returns the user's wallet, or an empty one when nothing was credited yet.
func (s *WalletService) Balance(ctx context.Context, userID uint) (*models.Wallet, error) {
	w, err := s.wallets.WithTx(s.db.WithContext(ctx)).GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Wallet{UserID: userID, Currency: "EUR"}, nil
	}
	return w, err
}

func (s *WalletService) Transactions(ctx context.Context, userID uint, txType string, page, limit int) ([]models.WalletTransaction, int64, error) {
	page, limit = pageArgs(page, limit)
	return s.wallets.WithTx(s.db.WithContext(ctx)).ListTransactions(userID, txType, page, limit)
}

func (s *WalletService) Withdrawals(ctx context.Context, userID uint, page, limit int) ([]models.Withdrawal, int64, error) {
	page, limit = pageArgs(page, limit)
	return s.withdrawals.WithTx(s.db.WithContext(ctx)).ListByUser(userID, page, limit)
}

func (s *WalletService) ListWithdrawals(ctx context.Context, status string, page, limit int) ([]models.Withdrawal, int64, error) {
	page, limit = pageArgs(page, limit)
	return s.withdrawals.WithTx(s.db.WithContext(ctx)).List(status, page, limit)
}

// Reconciliation compares a wallet against the commissions that fed it.
type Reconciliation struct {
	UserID          uint  `json:"user_id"`
	AvailableCents  int64 `json:"available_cents"`
	PendingCents    int64 `json:"pending_cents"`
	WithdrawnCents  int64 `json:"withdrawn_cents"`
	CommissionCents int64 `json:"commission_cents"`
	Balanced        bool  `json:"balanced"`
}

// Reconcile checks available + pending + withdrawn against the sum of the
// user's non-cancelled commissions.
func (s *WalletService) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	db := s.db.WithContext(ctx)
	w, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.commissions.WithTx(db).SumLive(userID)
	if err != nil {
		return nil, err
	}
	r := &Reconciliation{
		UserID:          userID,
		AvailableCents:  w.AvailableCents,
		PendingCents:    w.PendingCents,
		WithdrawnCents:  w.TotalWithdrawnCents,
		CommissionCents: sum,
	}
	r.Balanced = r.AvailableCents+r.PendingCents+r.WithdrawnCents == sum
	if !r.Balanced {
		logger.Error("[wallet] user %d out of balance: wallet=%d commissions=%d",
			userID, r.AvailableCents+r.PendingCents+r.WithdrawnCents, sum)
	}
	return r, nil
}
