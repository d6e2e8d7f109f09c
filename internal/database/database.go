package database

import (
	"fmt"

	"ascend/config"
	"ascend/internal/models"
	"ascend/internal/plan"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql", "":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Rank{},
		&models.User{},
		&models.SponsorRelation{},
		&models.SponsorClosure{},
		&models.PlacementNode{},
		&models.CarryoverLedger{},
		&models.BinaryRun{},
		&models.OrderEvent{},
		&models.Commission{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Withdrawal{},
		&models.RankHistory{},
		&models.SystemSetting{},
		&models.AuditLog{},
	)
}

// SeedRanks upserts the configured rank tiers by level so the ranks table
// follows configuration changes on restart.
func SeedRanks(db *gorm.DB, tiers []plan.Tier) error {
	if len(tiers) == 0 {
		return nil
	}
	rows := make([]models.Rank, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, models.Rank{
			Name:                t.Name,
			Level:               t.Level,
			MinPV:               t.MinPV,
			MinLeftVolume:       t.MinLeftVolume,
			MinRightVolume:      t.MinRightVolume,
			MinGroupVolume:      t.MinGroupVolume,
			MinActiveDirects:    t.MinActiveDirects,
			OnetimeBonusCents:   t.OnetimeBonusCents,
			RecurringBonusCents: t.RecurringCents,
		})
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "min_pv", "min_left_volume", "min_right_volume", "min_group_volume",
			"min_active_directs", "onetime_bonus_cents", "recurring_bonus_cents", "updated_at",
		}),
	}).Create(&rows).Error
}
