package service

import (
	"context"
	"errors"
	"time"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/metrics"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// UserActivated is the auth system's activation event. SponsorID 0 means the
// user joins without a sponsor and becomes the placement root.
type UserActivated struct {
	UserID       uint   `json:"user_id"`
	SponsorID    uint   `json:"sponsor_id"`
	PreferredLeg string `json:"preferred_leg"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

// ActivationResult is the node the user occupies. Replayed is true when the
// event had already been applied.
type ActivationResult struct {
	Node     *models.PlacementNode `json:"node"`
	Replayed bool                  `json:"replayed"`
}

type ActivationService struct {
	db         *gorm.DB
	users      *repository.UserRepository
	genealogy  *GenealogyService
	placement  *PlacementService
	placements *repository.PlacementRepository
	retries    int
}

func NewActivationService(
	db *gorm.DB,
	users *repository.UserRepository,
	genealogy *GenealogyService,
	placement *PlacementService,
	placements *repository.PlacementRepository,
	retries int,
) *ActivationService {
	return &ActivationService{
		db:         db,
		users:      users,
		genealogy:  genealogy,
		placement:  placement,
		placements: placements,
		retries:    retries,
	}
}

// Activate mirrors the user, marks it active, links its sponsor and places
// it in one transaction. Replaying the same event returns the existing node.
func (s *ActivationService) Activate(ctx context.Context, ev UserActivated) (*ActivationResult, error) {
	if ev.UserID == 0 {
		return nil, domain.ErrUserNotFound
	}
	if _, err := ResolveLeg(&models.PlacementNode{}, ev.PreferredLeg); err != nil {
		return nil, err
	}
	var res *ActivationResult
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			res, err = s.activate(tx, ev)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		leg := res.Node.Leg
		if res.Node.IsRoot() {
			leg = "root"
		}
		metrics.PlacementsTotal.WithLabelValues(leg).Inc()
	}
	return res, nil
}

func (s *ActivationService) activate(tx *gorm.DB, ev UserActivated) (*ActivationResult, error) {
	users := s.users.WithTx(tx)
	if err := users.Upsert(&models.User{ID: ev.UserID, Username: ev.Username, Email: ev.Email, Role: domain.RoleMember}); err != nil {
		return nil, err
	}
	user, err := users.GetByID(ev.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		if err := users.Activate(user.ID, time.Now()); err != nil {
			return nil, err
		}
	}

	if ev.SponsorID != 0 {
		rel, err := s.genealogy.genealogy.WithTx(tx).GetRelation(ev.UserID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.genealogy.registerSponsor(tx, ev.UserID, ev.SponsorID); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		case rel.SponsorID != ev.SponsorID:
			return nil, domain.ErrDuplicateSponsor
		}
	}

	if node, err := s.placements.WithTx(tx).GetByUserID(ev.UserID); err == nil {
		return &ActivationResult{Node: node, Replayed: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var node *models.PlacementNode
	if ev.SponsorID == 0 {
		node, err = s.placement.createRoot(tx, ev.UserID)
	} else {
		node, err = s.placement.place(tx, ev.UserID, ev.SponsorID, ev.PreferredLeg)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("[activation] user %d active, sponsor %d, node %d", ev.UserID, ev.SponsorID, node.ID)
	return &ActivationResult{Node: node}, nil
}
