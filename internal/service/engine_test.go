package service

import (
	"context"
	"testing"
	"time"

	"ascend/internal/lock"
	"ascend/internal/models"
	"ascend/internal/plan"
	"ascend/internal/repository"
	"ascend/internal/testutil"

	"gorm.io/gorm"
)

// engine wires every service over one in-memory database.
type engine struct {
	db          *gorm.DB
	plan        plan.Plan
	plans       *PlanProvider
	genealogy   *GenealogyService
	placement   *PlacementService
	volume      *VolumeService
	wallet      *WalletService
	commissions *CommissionService
	binary      *BinaryService
	rank        *RankService
	activation  *ActivationService
	orders      *OrderService
	sweeps      *SweepService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := testutil.NewDB(t)
	p := testutil.Plan()
	testutil.SeedRanks(t, db, p)

	users := repository.NewUserRepository(db)
	genealogyRepo := repository.NewGenealogyRepository(db)
	placements := repository.NewPlacementRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	plans := NewPlanProvider(p, repository.NewSettingRepository(db))
	const retries = 3

	e := &engine{db: db, plan: p, plans: plans}
	e.genealogy = NewGenealogyService(db, genealogyRepo, users)
	e.volume = NewVolumeService(db, users, placements)
	e.placement = NewPlacementService(db, placements, users, e.volume, retries)
	e.wallet = NewWalletService(db, repository.NewWalletRepository(db), repository.NewWithdrawalRepository(db), commissionRepo, users, plans, retries)
	e.commissions = NewCommissionService(db, commissionRepo, genealogyRepo, users, e.wallet, retries)
	e.binary = NewBinaryService(db, users, placements, repository.NewCarryoverRepository(db), repository.NewBinaryRunRepository(db), e.commissions, retries)
	e.rank = NewRankService(db, users, placements, repository.NewRankRepository(db), e.commissions, retries)
	e.activation = NewActivationService(db, users, e.genealogy, e.placement, placements, retries)
	e.orders = NewOrderService(db, repository.NewOrderEventRepository(db), users, e.volume, e.commissions, e.placement, e.rank, plans, retries)
	e.sweeps = NewSweepService(users, e.binary, e.rank, plans, lock.NewLocalLocker(), 4, time.Minute)
	return e
}

// activate places userID under sponsorID (0 = root) on leg.
func (e *engine) activate(t *testing.T, userID, sponsorID uint, leg string) *models.PlacementNode {
	t.Helper()
	res, err := e.activation.Activate(context.Background(), UserActivated{UserID: userID, SponsorID: sponsorID, PreferredLeg: leg})
	if err != nil {
		t.Fatalf("activate %d under %d: %v", userID, sponsorID, err)
	}
	return res.Node
}

func (e *engine) node(t *testing.T, userID uint) *models.PlacementNode {
	t.Helper()
	n, err := e.placement.Node(context.Background(), userID)
	if err != nil {
		t.Fatalf("node of %d: %v", userID, err)
	}
	return n
}

func (e *engine) user(t *testing.T, id uint) *models.User {
	t.Helper()
	var u models.User
	if err := e.db.First(&u, id).Error; err != nil {
		t.Fatalf("user %d: %v", id, err)
	}
	return &u
}

func (e *engine) balance(t *testing.T, userID uint) *models.Wallet {
	t.Helper()
	w, err := e.wallet.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("wallet %d: %v", userID, err)
	}
	return w
}

func (e *engine) commissionsOf(t *testing.T, userID uint) []models.Commission {
	t.Helper()
	var list []models.Commission
	if err := e.db.Where("beneficiary_id = ?", userID).Order("id").Find(&list).Error; err != nil {
		t.Fatalf("commissions of %d: %v", userID, err)
	}
	return list
}

func (e *engine) approveKYC(t *testing.T, userID uint) {
	t.Helper()
	if _, err := e.wallet.OnKycApproved(context.Background(), userID); err != nil {
		t.Fatalf("kyc approve %d: %v", userID, err)
	}
}

func (e *engine) assertBalanced(t *testing.T, userID uint) {
	t.Helper()
	r, err := e.wallet.Reconcile(context.Background(), userID)
	if err != nil {
		t.Fatalf("reconcile %d: %v", userID, err)
	}
	if !r.Balanced {
		t.Errorf("user %d out of balance: available=%d pending=%d withdrawn=%d commissions=%d",
			userID, r.AvailableCents, r.PendingCents, r.WithdrawnCents, r.CommissionCents)
	}
}
