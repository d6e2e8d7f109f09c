package models

import "time"

// Wallet aggregates a user's commission balances. Invariant:
// Available + Pending + TotalWithdrawn == sum of non-cancelled commissions.
type Wallet struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	UserID                uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AvailableCents        int64     `gorm:"not null;default:0" json:"available_cents"`
	PendingCents          int64     `gorm:"not null;default:0" json:"pending_cents"`
	TotalEarnedCents      int64     `gorm:"not null;default:0" json:"total_earned_cents"`
	TotalWithdrawnCents   int64     `gorm:"not null;default:0" json:"total_withdrawn_cents"`
	DirectEarnedCents     int64     `gorm:"not null;default:0" json:"direct_earned_cents"`
	BinaryEarnedCents     int64     `gorm:"not null;default:0" json:"binary_earned_cents"`
	MultilevelEarnedCents int64     `gorm:"not null;default:0" json:"multilevel_earned_cents"`
	RankBonusEarnedCents  int64     `gorm:"not null;default:0" json:"rank_bonus_earned_cents"`
	Currency              string    `gorm:"size:3;default:'EUR'" json:"currency"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Balance is what the wallet holds right now, withdrawable or not.
func (w *Wallet) Balance() int64 { return w.AvailableCents + w.PendingCents }
