package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/metrics"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// PlacementService owns the binary placement tree.
type PlacementService struct {
	db         *gorm.DB
	placements *repository.PlacementRepository
	users      *repository.UserRepository
	volume     *VolumeService
	retries    int
}

func NewPlacementService(db *gorm.DB, placements *repository.PlacementRepository, users *repository.UserRepository, volume *VolumeService, retries int) *PlacementService {
	return &PlacementService{db: db, placements: placements, users: users, volume: volume, retries: retries}
}

// Slot is a free child position under a parent node.
type Slot struct {
	ParentID uint
	Leg      string
}

// NodeLoader fetches placement nodes by ID.
type NodeLoader func(ids []uint) (map[uint]*models.PlacementNode, error)

// ResolveLeg turns a preferred leg into left or right. auto picks the leg
// with the smaller subtree volume; ties go left.
func ResolveLeg(sponsor *models.PlacementNode, preferred string) (string, error) {
	switch preferred {
	case domain.LegLeft, domain.LegRight:
		return preferred, nil
	case domain.LegAuto, "":
		if sponsor.RightVolume < sponsor.LeftVolume {
			return domain.LegRight, nil
		}
		return domain.LegLeft, nil
	default:
		return "", domain.ErrInvalidLeg
	}
}

// FindSlot returns the sponsor's direct slot on leg when it is empty.
// Otherwise it searches breadth-first from the sponsor's child on that leg,
// visiting left before right, and returns the first free slot (left before
// right) it meets. The search loads one tree level at a time.
func FindSlot(sponsor *models.PlacementNode, leg string, load NodeLoader) (Slot, error) {
	start := sponsor.Child(leg)
	if start == nil {
		return Slot{ParentID: sponsor.ID, Leg: leg}, nil
	}
	level := []uint{*start}
	for len(level) > 0 {
		nodes, err := load(level)
		if err != nil {
			return Slot{}, err
		}
		next := make([]uint, 0, 2*len(level))
		for _, id := range level {
			n, ok := nodes[id]
			if !ok {
				return Slot{}, domain.Integrity("child %d referenced but missing", id)
			}
			if n.LeftChildID == nil {
				return Slot{ParentID: n.ID, Leg: domain.LegLeft}, nil
			}
			if n.RightChildID == nil {
				return Slot{ParentID: n.ID, Leg: domain.LegRight}, nil
			}
			next = append(next, *n.LeftChildID, *n.RightChildID)
		}
		level = next
	}
	return Slot{}, domain.Integrity("no free slot below node %d", sponsor.ID)
}

func repoLoader(repo *repository.PlacementRepository) NodeLoader {
	return func(ids []uint) (map[uint]*models.PlacementNode, error) {
		list, err := repo.GetByIDs(ids)
		if err != nil {
			return nil, err
		}
		out := make(map[uint]*models.PlacementNode, len(list))
		for i := range list {
			out[list[i].ID] = &list[i]
		}
		return out, nil
	}
}

// PlaceUser places userID under sponsorID's subtree, retrying lost slot races.
func (s *PlacementService) PlaceUser(ctx context.Context, userID, sponsorID uint, preferred string) (*models.PlacementNode, error) {
	if _, err := ResolveLeg(&models.PlacementNode{}, preferred); err != nil {
		return nil, err
	}
	var node *models.PlacementNode
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			n, err := s.place(tx, userID, sponsorID, preferred)
			node = n
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.PlacementsTotal.WithLabelValues(node.Leg).Inc()
	return node, nil
}

func (s *PlacementService) place(tx *gorm.DB, userID, sponsorID uint, preferred string) (*models.PlacementNode, error) {
	placements := s.placements.WithTx(tx)
	user, err := s.users.WithTx(tx).GetByID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	if _, err := placements.GetByUserID(userID); err == nil {
		return nil, domain.ErrAlreadyPlaced
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	sponsor, err := placements.LockByUserID(sponsorID)
	if err != nil {
		return nil, notFound(err, domain.ErrSponsorNotFound, "sponsor %d", sponsorID)
	}
	leg, err := ResolveLeg(sponsor, preferred)
	if err != nil {
		return nil, err
	}
	slot, err := FindSlot(sponsor, leg, repoLoader(placements))
	if err != nil {
		return nil, err
	}
	parent := sponsor
	if slot.ParentID != sponsor.ID {
		if parent, err = placements.GetByID(slot.ParentID); err != nil {
			return nil, err
		}
	}

	parentID := parent.ID
	node := &models.PlacementNode{
		UserID:         userID,
		ParentID:       &parentID,
		Leg:            slot.Leg,
		Depth:          parent.Depth + 1,
		PersonalVolume: user.PersonalVolume,
	}
	if err := placements.Create(node); err != nil {
		return nil, err
	}
	if err := placements.ClaimSlot(parent.ID, slot.Leg, node.ID); err != nil {
		return nil, err
	}
	node.Path = parent.Path + strconv.FormatUint(uint64(node.ID), 10) + "/"
	if err := placements.SetPath(node.ID, node.Path); err != nil {
		return nil, err
	}
	// Volume bought before placement joins the tree with the node.
	if node.PersonalVolume > 0 {
		if err := s.volume.rollup(placements, node, node.PersonalVolume); err != nil {
			return nil, err
		}
	}
	logger.Info("[placement] user %d placed under node %d (%s), sponsor %d", userID, parent.ID, slot.Leg, sponsorID)
	return node, nil
}

// CreateRoot places the first user of the system.
func (s *PlacementService) CreateRoot(ctx context.Context, userID uint) (*models.PlacementNode, error) {
	var node *models.PlacementNode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.createRoot(tx, userID)
		node = n
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.PlacementsTotal.WithLabelValues("root").Inc()
	return node, nil
}

func (s *PlacementService) createRoot(tx *gorm.DB, userID uint) (*models.PlacementNode, error) {
	placements := s.placements.WithTx(tx)
	user, err := s.users.WithTx(tx).GetByID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	if _, err := placements.GetByUserID(userID); err == nil {
		return nil, domain.ErrAlreadyPlaced
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := placements.Root(); err == nil {
		return nil, domain.ErrRootExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	node := &models.PlacementNode{UserID: userID, PersonalVolume: user.PersonalVolume}
	if err := placements.Create(node); err != nil {
		return nil, err
	}
	node.Path = fmt.Sprintf("/%d/", node.ID)
	if err := placements.SetPath(node.ID, node.Path); err != nil {
		return nil, err
	}
	logger.Info("[placement] user %d is the tree root (node %d)", userID, node.ID)
	return node, nil
}

func (s *PlacementService) Node(ctx context.Context, userID uint) (*models.PlacementNode, error) {
	n, err := s.placements.WithTx(s.db.WithContext(ctx)).GetByUserID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrNodeNotFound, "user %d", userID)
	}
	return n, nil
}

// Children returns the user's left and right child nodes; either may be nil.
func (s *PlacementService) Children(ctx context.Context, userID uint) (left, right *models.PlacementNode, err error) {
	placements := s.placements.WithTx(s.db.WithContext(ctx))
	n, err := placements.GetByUserID(userID)
	if err != nil {
		return nil, nil, notFound(err, domain.ErrNodeNotFound, "user %d", userID)
	}
	if n.LeftChildID != nil {
		if left, err = placements.GetByID(*n.LeftChildID); err != nil {
			return nil, nil, err
		}
	}
	if n.RightChildID != nil {
		if right, err = placements.GetByID(*n.RightChildID); err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}

// Subtree returns the user's node and its descendants up to depth levels
// below it, shallowest first.
func (s *PlacementService) Subtree(ctx context.Context, userID uint, depth int) ([]models.PlacementNode, error) {
	placements := s.placements.WithTx(s.db.WithContext(ctx))
	n, err := placements.GetByUserID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrNodeNotFound, "user %d", userID)
	}
	if depth < 1 {
		depth = 1
	}
	return placements.Subtree(n.Path, n.Depth+depth)
}

// AncestorUserIDs returns the user IDs above userID in the placement tree,
// nearest first, at most limit entries (limit <= 0 means all).
func (s *PlacementService) AncestorUserIDs(ctx context.Context, userID uint, limit int) ([]uint, error) {
	placements := s.placements.WithTx(s.db.WithContext(ctx))
	n, err := placements.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ids, err := PathIDs(n.Path)
	if err != nil {
		return nil, err
	}
	ids = ids[:len(ids)-1]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	nodes, err := placements.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]uint, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node.UserID
	}
	out := make([]uint, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if uid, ok := byID[ids[i]]; ok {
			out = append(out, uid)
		}
	}
	return out, nil
}

// PathIDs parses a materialized path ("/1/4/9/") into node IDs, root first.
func PathIDs(path string) ([]uint, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, domain.Integrity("empty placement path")
	}
	parts := strings.Split(trimmed, "/")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, domain.Integrity("bad placement path %q", path)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
