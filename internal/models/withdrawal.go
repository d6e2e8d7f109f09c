package models

import (
	"time"

	"ascend/internal/domain"
)

type Withdrawal struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	Reference       string     `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	AmountCents     int64      `gorm:"not null" json:"amount_cents"`
	FeeCents        int64      `gorm:"not null" json:"fee_cents"`
	NetCents        int64      `gorm:"not null" json:"net_cents"`
	Method          string     `gorm:"size:30;not null" json:"method"`
	Destination     string     `gorm:"size:128" json:"destination"`
	Status          string     `gorm:"size:20;not null;index" json:"status"` // pending, processing, completed, rejected
	RejectionReason string     `gorm:"size:255" json:"rejection_reason,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// InFlight reports whether the request still holds reserved funds.
func (w *Withdrawal) InFlight() bool {
	return w.Status == domain.WithdrawalStatusPending || w.Status == domain.WithdrawalStatusProcessing
}
