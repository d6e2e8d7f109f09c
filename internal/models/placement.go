package models

import (
	"time"

	"ascend/internal/domain"
)

// PlacementNode is one node of the binary volume tree. It is independent of
// the sponsor tree. Only the child pointers and volume counters change after
// creation. Path is the slash-delimited chain of node IDs from the root,
// ending with this node's ID and a trailing slash ("/1/4/9/").
type PlacementNode struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	ParentID       *uint     `gorm:"uniqueIndex:idx_placement_slot" json:"parent_id"`
	Leg            string    `gorm:"size:5;not null;default:'';uniqueIndex:idx_placement_slot" json:"leg"`
	LeftChildID    *uint     `json:"left_child_id"`
	RightChildID   *uint     `json:"right_child_id"`
	Depth          int       `gorm:"not null;default:0" json:"depth"`
	Path           string    `gorm:"size:768;index" json:"path"`
	LeftVolume     int64     `gorm:"not null;default:0" json:"left_volume"`
	RightVolume    int64     `gorm:"not null;default:0" json:"right_volume"`
	PersonalVolume int64     `gorm:"not null;default:0" json:"personal_volume"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (PlacementNode) TableName() string { return "placement_nodes" }

func (n *PlacementNode) IsRoot() bool { return n.ParentID == nil }

// Child returns the child ID on the given leg, or nil.
func (n *PlacementNode) Child(leg string) *uint {
	if leg == domain.LegRight {
		return n.RightChildID
	}
	return n.LeftChildID
}

// LegVolume returns the subtree volume on the given leg.
func (n *PlacementNode) LegVolume(leg string) int64 {
	if leg == domain.LegRight {
		return n.RightVolume
	}
	return n.LeftVolume
}
