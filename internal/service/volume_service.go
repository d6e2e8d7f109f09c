package service

import (
	"context"
	"errors"

	"ascend/internal/domain"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// VolumeService attributes purchase volume to a user and every placement
// ancestor's leg counter.
type VolumeService struct {
	db         *gorm.DB
	users      *repository.UserRepository
	placements *repository.PlacementRepository
}

func NewVolumeService(db *gorm.DB, users *repository.UserRepository, placements *repository.PlacementRepository) *VolumeService {
	return &VolumeService{db: db, users: users, placements: placements}
}

func (s *VolumeService) RecordVolume(ctx context.Context, userID uint, amount int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recordVolume(tx, userID, amount)
	})
}

// recordVolume adds amount to the user's PV and, once the user is placed, to
// the node's PV and each ancestor's leg volume. A user without a node only
// accrues PV; placement rolls it up later.
func (s *VolumeService) recordVolume(tx *gorm.DB, userID uint, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	users := s.users.WithTx(tx)
	placements := s.placements.WithTx(tx)
	if _, err := users.GetByID(userID); err != nil {
		return notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	if err := users.AddPersonalVolume(userID, amount); err != nil {
		return err
	}
	node, err := placements.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := placements.AddPersonalVolume(node.ID, amount); err != nil {
		return err
	}
	return s.rollup(placements, node, amount)
}

// rollup walks from node to the root adding amount to the leg each step
// arrives through. Increments are atomic column updates applied bottom-up,
// so concurrent walks serialize on shared ancestors in the same order.
func (s *VolumeService) rollup(placements *repository.PlacementRepository, node *models.PlacementNode, amount int64) error {
	ids, err := PathIDs(node.Path)
	if err != nil {
		return err
	}
	if ids[len(ids)-1] != node.ID {
		return domain.Integrity("node %d path %q does not end at itself", node.ID, node.Path)
	}
	if len(ids) == 1 {
		return nil
	}
	list, err := placements.GetByIDs(ids[:len(ids)-1])
	if err != nil {
		return err
	}
	byID := make(map[uint]*models.PlacementNode, len(list))
	for i := range list {
		byID[list[i].ID] = &list[i]
	}
	child := node
	for i := len(ids) - 2; i >= 0; i-- {
		parent, ok := byID[ids[i]]
		if !ok {
			return domain.Integrity("ancestor %d of node %d missing", ids[i], node.ID)
		}
		if child.ParentID == nil || *child.ParentID != parent.ID {
			return domain.Integrity("node %d is not a child of %d", child.ID, parent.ID)
		}
		if c := parent.Child(child.Leg); c == nil || *c != child.ID {
			return domain.Integrity("node %d %s slot does not point at %d", parent.ID, child.Leg, child.ID)
		}
		if err := placements.AddLegVolume(parent.ID, child.Leg, amount); err != nil {
			return err
		}
		child = parent
	}
	return nil
}
