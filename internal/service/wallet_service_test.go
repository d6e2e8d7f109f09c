package service

import (
	"context"
	"errors"
	"testing"

	"ascend/internal/domain"
	"ascend/internal/models"
	"ascend/internal/repository"
)

// earner gives user 1 30000 cents of commissions from one first order of
// user 2 (20% direct plus 10% level one).
func earner(t *testing.T, e *engine) {
	t.Helper()
	e.activate(t, 1, 0, "")
	e.activate(t, 2, 1, domain.LegAuto)
	completeOrder(t, e, OrderCompleted{OrderID: "seed", BuyerID: 2, AmountCents: 100000, IsFirstOrder: true})
}

func TestKycApprovalReleasesPending(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	earner(t, e)

	if w := e.balance(t, 1); w.PendingCents != 30000 || w.AvailableCents != 0 {
		t.Fatalf("Expected 30000 pending before KYC, got pending=%d available=%d", w.PendingCents, w.AvailableCents)
	}

	released, err := e.wallet.OnKycApproved(ctx, 1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if released != 30000 {
		t.Errorf("Expected 30000 released, got %d", released)
	}
	w := e.balance(t, 1)
	if w.PendingCents != 0 || w.AvailableCents != 30000 {
		t.Errorf("Expected everything available, got pending=%d available=%d", w.PendingCents, w.AvailableCents)
	}
	for _, c := range e.commissionsOf(t, 1) {
		if c.Status != domain.CommissionStatusApproved {
			t.Errorf("Expected commission %d approved, got %s", c.ID, c.Status)
		}
	}
	var pendingEntries int64
	e.db.Model(&models.WalletTransaction{}).Where("user_id = ? AND status = ?", 1, domain.WalletTxStatusPending).Count(&pendingEntries)
	if pendingEntries != 0 {
		t.Errorf("Expected no pending ledger entries, got %d", pendingEntries)
	}

	// Later credits go straight to available.
	e.activate(t, 3, 1, domain.LegAuto)
	completeOrder(t, e, OrderCompleted{OrderID: "next", BuyerID: 3, AmountCents: 10000, IsFirstOrder: true})
	if w := e.balance(t, 1); w.AvailableCents != 33000 || w.PendingCents != 0 {
		t.Errorf("Expected available 33000, got available=%d pending=%d", w.AvailableCents, w.PendingCents)
	}

	if released, _ := e.wallet.OnKycApproved(ctx, 1); released != 0 {
		t.Errorf("Expected repeated approval to release nothing, got %d", released)
	}
	e.assertBalanced(t, 1)
}

func TestKycRejectionHoldsFunds(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	earner(t, e)
	e.approveKYC(t, 1)
	if err := e.wallet.OnKycRejected(ctx, 1); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if e.user(t, 1).KYC {
		t.Fatal("Expected KYC flag cleared")
	}

	e.activate(t, 3, 1, domain.LegAuto)
	completeOrder(t, e, OrderCompleted{OrderID: "next", BuyerID: 3, AmountCents: 10000, IsFirstOrder: true})
	w := e.balance(t, 1)
	if w.AvailableCents != 30000 || w.PendingCents != 3000 {
		t.Errorf("Expected available 30000 pending 3000, got %d / %d", w.AvailableCents, w.PendingCents)
	}
	if err := e.wallet.OnKycRejected(ctx, 404); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestWithdrawalChecks(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	earner(t, e)

	req := func(amount int64, method string) error {
		_, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: amount, Method: method, Destination: "DE89370400440532013000"})
		return err
	}
	if err := req(10000, "bank_transfer"); !errors.Is(err, domain.ErrKycNotApproved) {
		t.Errorf("Expected ErrKycNotApproved, got %v", err)
	}
	e.approveKYC(t, 1)

	tests := []struct {
		name      string
		amount    int64
		method    string
		expectErr error
	}{
		{"zero amount", 0, "bank_transfer", domain.ErrInvalidAmount},
		{"no method", 10000, "", domain.ErrInvalidMethod},
		{"below minimum", 4999, "bank_transfer", domain.ErrBelowMinimum},
		{"more than available", 30001, "bank_transfer", domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := req(tt.amount, tt.method); !errors.Is(err, tt.expectErr) {
				t.Errorf("Expected %v, got %v", tt.expectErr, err)
			}
		})
	}

	wd, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 10000, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if wd.FeeCents != 200 || wd.NetCents != 9800 || wd.Status != domain.WithdrawalStatusPending || wd.Reference == "" {
		t.Errorf("Unexpected withdrawal %+v", wd)
	}
	if err := req(5000, "bank_transfer"); !errors.Is(err, domain.ErrWithdrawalInFlight) {
		t.Errorf("Expected ErrWithdrawalInFlight, got %v", err)
	}
	w := e.balance(t, 1)
	if w.AvailableCents != 20000 || w.TotalWithdrawnCents != 10000 {
		t.Errorf("Expected available 20000 withdrawn 10000, got %d / %d", w.AvailableCents, w.TotalWithdrawnCents)
	}
	e.assertBalanced(t, 1)
}

func TestWithdrawalLifecycle(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	admin := Actor{UserID: 900, IP: "10.0.0.1"}
	earner(t, e)
	e.approveKYC(t, 1)

	first, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 12000, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	rejected, err := e.wallet.RejectWithdrawal(ctx, first.ID, "name mismatch", admin)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected || rejected.RejectionReason != "name mismatch" {
		t.Errorf("Unexpected rejected withdrawal %+v", rejected)
	}
	if w := e.balance(t, 1); w.AvailableCents != 30000 || w.TotalWithdrawnCents != 0 {
		t.Errorf("Expected reservation returned, got available=%d withdrawn=%d", w.AvailableCents, w.TotalWithdrawnCents)
	}
	e.assertBalanced(t, 1)

	second, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 25000, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := e.wallet.CompleteWithdrawal(ctx, second.ID, admin); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected pending -> completed to be refused, got %v", err)
	}
	if wd, err := e.wallet.ApproveWithdrawal(ctx, second.ID, admin); err != nil || wd.Status != domain.WithdrawalStatusProcessing {
		t.Fatalf("Expected processing, got %v %v", wd, err)
	}
	done, err := e.wallet.CompleteWithdrawal(ctx, second.ID, admin)
	if err != nil || done.Status != domain.WithdrawalStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("Expected completed, got %v %v", done, err)
	}
	if _, err := e.wallet.RejectWithdrawal(ctx, second.ID, "late", admin); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected completed withdrawal to be final, got %v", err)
	}

	w := e.balance(t, 1)
	if w.AvailableCents != 5000 || w.TotalWithdrawnCents != 25000 {
		t.Errorf("Expected available 5000 withdrawn 25000, got %d / %d", w.AvailableCents, w.TotalWithdrawnCents)
	}
	e.assertBalanced(t, 1)

	entries, total, err := e.wallet.Transactions(ctx, 1, domain.WalletTxWithdrawal, 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("Expected 2 withdrawal entries, got %d (%v)", total, err)
	}
	statuses := map[uint]string{}
	for _, en := range entries {
		statuses[*en.WithdrawalID] = en.Status
	}
	if statuses[first.ID] != domain.WalletTxStatusCancelled || statuses[second.ID] != domain.WalletTxStatusCompleted {
		t.Errorf("Unexpected reservation entry statuses %v", statuses)
	}

	list, n, err := e.wallet.ListWithdrawals(ctx, domain.WithdrawalStatusCompleted, 1, 10)
	if err != nil || n != 1 || len(list) != 1 {
		t.Errorf("Expected one completed withdrawal, got %d (%v)", n, err)
	}
	var audits int64
	e.db.Model(&models.AuditLog{}).Where("resource = ?", "withdrawal").Count(&audits)
	if audits != 3 {
		t.Errorf("Expected 3 withdrawal audit entries, got %d", audits)
	}
}

func TestWithdrawalRulesFollowSettings(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	earner(t, e)
	e.approveKYC(t, 1)
	settings := repository.NewSettingRepository(e.db)

	if err := settings.Set(domain.SettingWithdrawalMinCents, "8000", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 6000, Method: "bank_transfer"})
	if !errors.Is(err, domain.ErrBelowMinimum) {
		t.Errorf("Expected the raised minimum to apply, got %v", err)
	}

	// An out-of-range override is ignored as a whole.
	if err := settings.Set(domain.SettingWithdrawalFeePercent, "150", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	wd, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 6000, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if wd.FeeCents != 120 {
		t.Errorf("Expected configured 2%% fee, got %d", wd.FeeCents)
	}
}

func TestSettlePayout(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	earner(t, e)
	e.approveKYC(t, 1)

	wd, err := e.wallet.RequestWithdrawal(ctx, WithdrawalInput{UserID: 1, AmountCents: 10000, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := e.wallet.SettlePayout(ctx, wd.Reference, true, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected unapproved payout to be refused, got %v", err)
	}
	if _, err := e.wallet.ApproveWithdrawal(ctx, wd.ID, Actor{UserID: 900}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	failed, err := e.wallet.SettlePayout(ctx, wd.Reference, false, "")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if failed.Status != domain.WithdrawalStatusRejected || failed.RejectionReason != "payout failed" {
		t.Errorf("Expected rejected with default reason, got %s %q", failed.Status, failed.RejectionReason)
	}
	if w := e.balance(t, 1); w.AvailableCents != 30000 {
		t.Errorf("Expected refund to available, got %d", w.AvailableCents)
	}
	e.assertBalanced(t, 1)

	if _, err := e.wallet.SettlePayout(ctx, "no-such-ref", true, ""); err == nil {
		t.Error("Expected unknown reference to fail")
	}
}
