package service

import (
	"context"

	"ascend/internal/database"
	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/models"
	"ascend/internal/repository"

	"gorm.io/gorm"
)

// OrderResult reports what one OrderCompleted event produced.
type OrderResult struct {
	OrderID    string        `json:"order_id"`
	Duplicate  bool          `json:"duplicate"`
	Direct     Outcome       `json:"direct"`
	Multilevel []Outcome     `json:"multilevel"`
	Ranks      []*RankResult `json:"ranks,omitempty"`
}

type OrderService struct {
	db          *gorm.DB
	orders      *repository.OrderEventRepository
	users       *repository.UserRepository
	volume      *VolumeService
	commissions *CommissionService
	placement   *PlacementService
	rank        *RankService
	plans       *PlanProvider
	retries     int
}

func NewOrderService(
	db *gorm.DB,
	orders *repository.OrderEventRepository,
	users *repository.UserRepository,
	volume *VolumeService,
	commissions *CommissionService,
	placement *PlacementService,
	rank *RankService,
	plans *PlanProvider,
	retries int,
) *OrderService {
	return &OrderService{
		db:          db,
		orders:      orders,
		users:       users,
		volume:      volume,
		commissions: commissions,
		placement:   placement,
		rank:        rank,
		plans:       plans,
		retries:     retries,
	}
}

// Complete consumes an order once: volume rollup, direct and multilevel
// commissions commit together. Ranks of the buyer and its nearest placement
// ancestors are re-evaluated afterwards; their failures are logged and do
// not undo the order.
func (s *OrderService) Complete(ctx context.Context, ev OrderCompleted) (*OrderResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	p := s.plans.Current()
	var res *OrderResult
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res = &OrderResult{OrderID: ev.OrderID}
			orders := s.orders.WithTx(tx)
			seen, err := orders.Exists(ev.OrderID)
			if err != nil {
				return err
			}
			if seen {
				res.Duplicate = true
				return nil
			}
			if _, err := s.users.WithTx(tx).GetByID(ev.BuyerID); err != nil {
				return notFound(err, domain.ErrUserNotFound, "buyer %d", ev.BuyerID)
			}
			if err := orders.Create(&models.OrderEvent{
				OrderID:      ev.OrderID,
				BuyerID:      ev.BuyerID,
				AmountCents:  ev.AmountCents,
				IsFirstOrder: ev.IsFirstOrder,
			}); err != nil {
				return err
			}
			if err := s.volume.recordVolume(tx, ev.BuyerID, ev.AmountCents); err != nil {
				return err
			}
			if res.Direct, err = s.commissions.Direct(tx, p, ev); err != nil {
				return err
			}
			res.Multilevel, err = s.commissions.Multilevel(tx, p, ev)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		logger.Info("[order] %s already processed", ev.OrderID)
		return res, nil
	}
	observeCommissions(res.Direct.Commission)
	for _, o := range res.Multilevel {
		observeCommissions(o.Commission)
	}

	targets := []uint{ev.BuyerID}
	ancestors, err := s.placement.AncestorUserIDs(ctx, ev.BuyerID, p.Rank.EvaluateUplineDepth)
	if err != nil {
		logger.Error("[order] %s loading placement upline for rank evaluation: %v", ev.OrderID, err)
	}
	targets = append(targets, ancestors...)
	for _, uid := range targets {
		r, err := s.rank.Evaluate(ctx, uid, p, "order:"+ev.OrderID)
		if err != nil {
			logger.Error("[order] %s rank evaluation for user %d failed: %v", ev.OrderID, uid, err)
			continue
		}
		if r.Changed {
			res.Ranks = append(res.Ranks, r)
		}
	}
	return res, nil
}
