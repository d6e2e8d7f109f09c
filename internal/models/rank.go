package models

import "time"

// Rank is a qualification tier. Level 0 is reserved for unranked users and
// has no row.
type Rank struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Level               int       `gorm:"uniqueIndex;not null" json:"level"`
	MinPV               int64     `gorm:"not null;default:0" json:"min_pv"`
	MinLeftVolume       int64     `gorm:"not null;default:0" json:"min_left_volume"`
	MinRightVolume      int64     `gorm:"not null;default:0" json:"min_right_volume"`
	MinGroupVolume      int64     `gorm:"not null;default:0" json:"min_group_volume"`
	MinActiveDirects    int       `gorm:"not null;default:0" json:"min_active_directs"`
	OnetimeBonusCents   int64     `gorm:"not null;default:0" json:"onetime_bonus_cents"`
	RecurringBonusCents int64     `gorm:"not null;default:0" json:"recurring_bonus_cents"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Rank) TableName() string { return "ranks" }

// RankHistory records every rank change with the metrics that caused it.
type RankHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	FromRankID    *uint     `json:"from_rank_id"`
	ToRankID      *uint     `json:"to_rank_id"`
	FromLevel     int       `gorm:"not null" json:"from_level"`
	ToLevel       int       `gorm:"not null" json:"to_level"`
	PersonalPV    int64     `json:"personal_pv"`
	LeftVolume    int64     `json:"left_volume"`
	RightVolume   int64     `json:"right_volume"`
	GroupVolume   int64     `json:"group_volume"`
	ActiveDirects int       `json:"active_directs"`
	Reason        string    `gorm:"size:50" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

func (RankHistory) TableName() string { return "rank_histories" }
