package service

import (
	"context"
	"errors"
	"fmt"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/models"
	"ascend/internal/plan"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// Metrics are the qualification inputs of one user.
type Metrics struct {
	PersonalPV    int64 `json:"personal_pv"`
	LeftVolume    int64 `json:"left_volume"`
	RightVolume   int64 `json:"right_volume"`
	GroupVolume   int64 `json:"group_volume"`
	ActiveDirects int   `json:"active_directs"`
}

// Qualifies reports whether m meets every threshold of r.
func Qualifies(r *models.Rank, m Metrics) bool {
	return m.PersonalPV >= r.MinPV &&
		m.LeftVolume >= r.MinLeftVolume &&
		m.RightVolume >= r.MinRightVolume &&
		m.GroupVolume >= r.MinGroupVolume &&
		m.ActiveDirects >= r.MinActiveDirects
}

// QualifyingRank returns the highest rank m fully qualifies for, or nil for
// unranked. ranks must be ordered by level descending.
func QualifyingRank(ranks []models.Rank, m Metrics) *models.Rank {
	for i := range ranks {
		if Qualifies(&ranks[i], m) {
			return &ranks[i]
		}
	}
	return nil
}

// RankResult reports one evaluation.
type RankResult struct {
	UserID    uint               `json:"user_id"`
	FromLevel int                `json:"from_level"`
	ToLevel   int                `json:"to_level"`
	Rank      *models.Rank       `json:"rank,omitempty"`
	Changed   bool               `json:"changed"`
	Metrics   Metrics            `json:"metrics"`
	Bonus     *models.Commission `json:"bonus,omitempty"`
}

type RankService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	placements  *repository.PlacementRepository
	ranks       *repository.RankRepository
	commissions *CommissionService
	retries     int
}

func NewRankService(
	db *gorm.DB,
	users *repository.UserRepository,
	placements *repository.PlacementRepository,
	ranks *repository.RankRepository,
	commissions *CommissionService,
	retries int,
) *RankService {
	return &RankService{
		db:          db,
		users:       users,
		placements:  placements,
		ranks:       ranks,
		commissions: commissions,
		retries:     retries,
	}
}

func (s *RankService) metrics(tx *gorm.DB, user *models.User, p plan.Plan) (Metrics, error) {
	m := Metrics{PersonalPV: user.PersonalVolume}
	node, err := s.placements.WithTx(tx).GetByUserID(user.ID)
	switch {
	case err == nil:
		m.LeftVolume, m.RightVolume = node.LeftVolume, node.RightVolume
		m.GroupVolume = node.LeftVolume + node.RightVolume
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return m, err
	}
	m.ActiveDirects, err = s.users.WithTx(tx).CountActiveDirects(user.ID, p.Rank.ActiveDirectMinPV)
	return m, err
}

// Metrics returns the user's current qualification inputs.
func (s *RankService) Metrics(ctx context.Context, userID uint, p plan.Plan) (Metrics, error) {
	tx := s.db.WithContext(ctx)
	user, err := s.users.WithTx(tx).GetByID(userID)
	if err != nil {
		return Metrics{}, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	return s.metrics(tx, user, p)
}

// Evaluate recomputes the user's rank. A change is written to history; a
// promotion pays the new rank's one-time bonus at most once per rank.
func (s *RankService) Evaluate(ctx context.Context, userID uint, p plan.Plan, reason string) (*RankResult, error) {
	var res *RankResult
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			res, err = s.evaluate(tx, userID, p, reason)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if res.Bonus != nil {
		observeCommissions(res.Bonus)
	}
	if res.Changed {
		logger.Info("[rank] user %d level %d -> %d (%s)", userID, res.FromLevel, res.ToLevel, reason)
	}
	return res, nil
}

func (s *RankService) evaluate(tx *gorm.DB, userID uint, p plan.Plan, reason string) (*RankResult, error) {
	users := s.users.WithTx(tx)
	ranks := s.ranks.WithTx(tx)
	user, err := users.GetByID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	m, err := s.metrics(tx, user, p)
	if err != nil {
		return nil, err
	}
	all, err := ranks.ListDescending()
	if err != nil {
		return nil, err
	}
	target := QualifyingRank(all, m)
	res := &RankResult{UserID: userID, FromLevel: user.RankLevel, Metrics: m, Rank: target}
	var toID *uint
	if target != nil {
		res.ToLevel = target.Level
		id := target.ID
		toID = &id
	}
	if res.ToLevel == res.FromLevel {
		return res, nil
	}

	res.Changed = true
	if err := users.SetRank(userID, res.FromLevel, toID, res.ToLevel); err != nil {
		return nil, err
	}
	if err := ranks.CreateHistory(&models.RankHistory{
		UserID:        userID,
		FromRankID:    user.RankID,
		ToRankID:      toID,
		FromLevel:     res.FromLevel,
		ToLevel:       res.ToLevel,
		PersonalPV:    m.PersonalPV,
		LeftVolume:    m.LeftVolume,
		RightVolume:   m.RightVolume,
		GroupVolume:   m.GroupVolume,
		ActiveDirects: m.ActiveDirects,
		Reason:        reason,
	}); err != nil {
		return nil, err
	}
	if res.ToLevel > res.FromLevel && target.OnetimeBonusCents > 0 {
		c, created, err := s.commissions.bonus(tx, userID, target.OnetimeBonusCents,
			fmt.Sprintf("rank:%d:%d", userID, target.ID), "promotion to "+target.Name)
		if err != nil {
			return nil, err
		}
		if created {
			res.Bonus = c
		}
	}
	return res, nil
}

// PayRecurring pays a ranked user's recurring bonus once for period.
func (s *RankService) PayRecurring(ctx context.Context, userID uint, period Period) (Outcome, error) {
	if err := period.Validate(); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			out = Outcome{BeneficiaryID: userID}
			user, err := s.users.WithTx(tx).GetByID(userID)
			if err != nil {
				return notFound(err, domain.ErrUserNotFound, "user %d", userID)
			}
			if user.RankLevel <= 0 || user.RankID == nil {
				out.Reason = ReasonUnranked
				return nil
			}
			rank, err := s.ranks.WithTx(tx).GetByID(*user.RankID)
			if err != nil {
				return notFound(err, domain.ErrTreeCorrupt, "rank %d of user %d", *user.RankID, userID)
			}
			if rank.RecurringBonusCents <= 0 {
				out.Reason = ReasonZeroAmount
				return nil
			}
			c, created, err := s.commissions.bonus(tx, userID, rank.RecurringBonusCents,
				fmt.Sprintf("rank_recurring:%d:%s", userID, period.Key()),
				fmt.Sprintf("%s recurring bonus %s", rank.Name, period.Key()))
			if err != nil {
				return err
			}
			if !created {
				out.Reason = ReasonDuplicate
				return nil
			}
			out.Applied, out.Commission = true, c
			return nil
		})
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Commission != nil {
		observeCommissions(out.Commission)
	}
	return out, nil
}

// History returns the user's rank changes, newest first.
func (s *RankService) History(ctx context.Context, userID uint, limit int) ([]models.RankHistory, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.ranks.WithTx(s.db.WithContext(ctx)).ListHistory(userID, limit)
}

// Standing returns the user with its current rank loaded.
func (s *RankService) Standing(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.users.WithTx(s.db.WithContext(ctx)).GetWithRank(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	return u, nil
}

func (s *RankService) Ranks(ctx context.Context) ([]models.Rank, error) {
	return s.ranks.WithTx(s.db.WithContext(ctx)).ListDescending()
}
