package models

import "time"

// WalletTransaction is an append-only ledger entry. Only Status moves
// (pending -> completed on KYC approval); corrections are new entries.
type WalletTransaction struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	WalletID          uint      `gorm:"not null;index" json:"wallet_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	Type              string    `gorm:"size:30;not null;index" json:"type"`     // COMMISSION, COMMISSION_REVERSAL, WITHDRAWAL, WITHDRAWAL_CANCEL
	Category          string    `gorm:"size:20;index" json:"category"`          // commission type, empty for withdrawals
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`           // positive = credit, negative = debit
	BalanceAfterCents int64     `gorm:"not null" json:"balance_after_cents"`    // available + pending after this entry
	Status            string    `gorm:"size:20;not null;index" json:"status"`   // pending, completed, cancelled
	CommissionID      *uint     `gorm:"index" json:"commission_id,omitempty"`
	WithdrawalID      *uint     `gorm:"index" json:"withdrawal_id,omitempty"`
	Reference         string    `gorm:"size:128" json:"reference"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
