package models

import (
	"time"

	"ascend/internal/domain"

	"gorm.io/gorm"
)

// User mirrors a participant owned by the external auth system; the ID is
// assigned upstream and reused here.
type User struct {
	ID             uint           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username       string         `gorm:"size:64;index" json:"username"`
	Email          string         `gorm:"size:255;index" json:"email"`
	Role           string         `gorm:"size:20;not null;default:'MEMBER'" json:"role"`
	IsActive       bool           `gorm:"not null;default:false;index" json:"is_active"`
	ActivatedAt    *time.Time     `json:"activated_at"`
	PersonalVolume int64          `gorm:"not null;default:0" json:"personal_volume"`
	RankID         *uint          `gorm:"index" json:"rank_id"`
	RankLevel      int            `gorm:"not null;default:0;index" json:"rank_level"`
	KYC            bool           `gorm:"not null;default:false" json:"kyc"`
	KYCApprovedAt  *time.Time     `json:"kyc_approved_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Rank *Rank `gorm:"foreignKey:RankID" json:"rank,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
