package models

import "time"

// SponsorRelation is the direct recruiter link. A user has at most one sponsor.
type SponsorRelation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	SponsorID uint      `gorm:"not null;index" json:"sponsor_id"`
	CreatedAt time.Time `json:"created_at"`

	User    User `gorm:"foreignKey:UserID" json:"-"`
	Sponsor User `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"`
}

func (SponsorRelation) TableName() string { return "sponsor_relations" }

// SponsorClosure is the materialized ancestor/descendant relation of the
// sponsor tree. Depth is >= 1; a user is never its own ancestor.
type SponsorClosure struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AncestorID   uint      `gorm:"not null;uniqueIndex:idx_closure_pair;index:idx_closure_ancestor_depth,priority:1" json:"ancestor_id"`
	DescendantID uint      `gorm:"not null;uniqueIndex:idx_closure_pair;index:idx_closure_descendant_depth,priority:1" json:"descendant_id"`
	Depth        int       `gorm:"not null;index:idx_closure_ancestor_depth,priority:2;index:idx_closure_descendant_depth,priority:2" json:"depth"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SponsorClosure) TableName() string { return "sponsor_closures" }
