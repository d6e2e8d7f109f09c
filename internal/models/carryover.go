package models

import "time"

// CarryoverLedger holds a user's unmatched binary volume between periods.
// LeftSettled/RightSettled are the cumulative subtree volumes already
// consumed by earlier binary runs. LastPeriodEnd orders the runs: a period
// starting before it is refused.
type CarryoverLedger struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	LeftCarryover   int64      `gorm:"not null;default:0" json:"left_carryover"`
	RightCarryover  int64      `gorm:"not null;default:0" json:"right_carryover"`
	LeftCycles      int        `gorm:"not null;default:0" json:"left_cycles"`
	RightCycles     int        `gorm:"not null;default:0" json:"right_cycles"`
	LeftSettled     int64      `gorm:"not null;default:0" json:"left_settled"`
	RightSettled    int64      `gorm:"not null;default:0" json:"right_settled"`
	LastPeriodStart *time.Time `json:"last_period_start"`
	LastPeriodEnd   *time.Time `json:"last_period_end"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (CarryoverLedger) TableName() string { return "carryover_ledgers" }

// BinaryRun records one binary calculation for (user, period), including
// zero-payout runs, and anchors the at-most-once guarantee.
type BinaryRun struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_binary_run_period" json:"user_id"`
	PeriodStart    time.Time `gorm:"not null;uniqueIndex:idx_binary_run_period" json:"period_start"`
	PeriodEnd      time.Time `gorm:"not null" json:"period_end"`
	LeftVolume     int64     `gorm:"not null" json:"left_volume"`
	RightVolume    int64     `gorm:"not null" json:"right_volume"`
	MatchedVolume  int64     `gorm:"not null" json:"matched_volume"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	LeftCarryover  int64     `gorm:"not null" json:"left_carryover"`
	RightCarryover int64     `gorm:"not null" json:"right_carryover"`
	Status         string    `gorm:"size:20;not null" json:"status"`
	CommissionID   *uint     `json:"commission_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (BinaryRun) TableName() string { return "binary_runs" }
