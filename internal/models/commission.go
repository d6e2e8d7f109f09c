package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission is one payout obligation. Only Status changes after creation.
// DedupeKey makes each triggering event pay at most once.
type Commission struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BeneficiaryID uint            `gorm:"not null;index" json:"beneficiary_id"`
	SourceUserID  *uint           `gorm:"index" json:"source_user_id"`
	Type          string          `gorm:"size:20;not null;index" json:"type"`
	BaseAmount    int64           `gorm:"not null" json:"base_amount"`
	Percentage    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"percentage"`
	AmountCents   int64           `gorm:"not null" json:"amount_cents"`
	Level         int             `gorm:"not null;default:0" json:"level"`
	OrderID       string          `gorm:"size:64;index" json:"order_id,omitempty"`
	PeriodStart   *time.Time      `json:"period_start,omitempty"`
	PeriodEnd     *time.Time      `json:"period_end,omitempty"`
	Status        string          `gorm:"size:20;not null;index" json:"status"`
	DedupeKey     string          `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Note          string          `gorm:"size:255" json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Beneficiary User `gorm:"foreignKey:BeneficiaryID" json:"-"`
}

func (Commission) TableName() string { return "commissions" }

// OrderEvent marks an OrderCompleted event as consumed.
type OrderEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      string    `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	BuyerID      uint      `gorm:"not null;index" json:"buyer_id"`
	AmountCents  int64     `gorm:"not null" json:"amount_cents"`
	IsFirstOrder bool      `gorm:"not null" json:"is_first_order"`
	CreatedAt    time.Time `json:"created_at"`
}

func (OrderEvent) TableName() string { return "order_events" }
