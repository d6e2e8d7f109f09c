// Package testutil provides an in-memory database and fixtures for
// store-backed tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/models"
	"ascend/internal/plan"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema. A
// single connection serializes access, so code under test must not use the
// root handle while a transaction is open.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Plan is a small deterministic plan: 20% direct, 10% binary with a 100.00
// minimum PV and a 5000.00 cap, three multilevel levels and two ranks.
func Plan() plan.Plan {
	return plan.Plan{
		DirectPercent: decimal.NewFromInt(20),
		Binary: plan.Binary{
			Percent:        decimal.NewFromInt(10),
			MinPV:          10000,
			CapCents:       500000,
			MaxCarryCycles: 2,
			Period:         domain.PeriodWeekly,
		},
		Levels: []plan.Level{
			{Percent: decimal.NewFromInt(10), MinPV: 0},
			{Percent: decimal.NewFromInt(5), MinPV: 5000},
			{Percent: decimal.NewFromInt(3), MinPV: 10000},
		},
		Rank: plan.Rank{
			ActiveDirectMinPV:   5000,
			EvaluateUplineDepth: 5,
			RecurringPeriod:     domain.PeriodMonthly,
			Tiers: []plan.Tier{
				{Name: "Bronze", Level: 1, MinPV: 10000, MinGroupVolume: 20000, MinActiveDirects: 1, OnetimeBonusCents: 5000, RecurringCents: 1000},
				{Name: "Silver", Level: 2, MinPV: 10000, MinLeftVolume: 50000, MinRightVolume: 50000, MinGroupVolume: 100000, MinActiveDirects: 2, OnetimeBonusCents: 20000, RecurringCents: 5000},
			},
		},
		Withdrawal: plan.Withdrawal{
			MinCents:      5000,
			FeePercent:    decimal.NewFromInt(2),
			FeeFloorCents: 100,
		},
	}
}

// UserOption customizes a fixture user.
type UserOption func(*models.User)

func Active(u *models.User) {
	now := time.Now()
	u.IsActive = true
	u.ActivatedAt = &now
}

func KYC(u *models.User) { u.KYC = true }

func PV(cents int64) UserOption {
	return func(u *models.User) { u.PersonalVolume = cents }
}

// CreateUser inserts a user with the given ID.
func CreateUser(t *testing.T, db *gorm.DB, id uint, opts ...UserOption) *models.User {
	t.Helper()
	u := &models.User{ID: id, Username: fmt.Sprintf("user%d", id), Role: domain.RoleMember}
	for _, o := range opts {
		o(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %d: %v", id, err)
	}
	return u
}

// SeedRanks loads the plan's rank tiers.
func SeedRanks(t *testing.T, db *gorm.DB, p plan.Plan) {
	t.Helper()
	if err := database.SeedRanks(db, p.Rank.Tiers); err != nil {
		t.Fatalf("seed ranks: %v", err)
	}
}

// MustWallet loads a user's wallet, failing the test when it does not exist.
func MustWallet(t *testing.T, db *gorm.DB, userID uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("wallet of user %d: %v", userID, err)
	}
	return &w
}
