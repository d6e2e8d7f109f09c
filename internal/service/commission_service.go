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

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService computes order-driven commissions and records every
// commission, whatever its source, through one path into the wallet.
type CommissionService struct {
	db          *gorm.DB
	commissions *repository.CommissionRepository
	genealogy   *repository.GenealogyRepository
	users       *repository.UserRepository
	wallet      *WalletService
	retries     int
}

func NewCommissionService(
	db *gorm.DB,
	commissions *repository.CommissionRepository,
	genealogy *repository.GenealogyRepository,
	users *repository.UserRepository,
	wallet *WalletService,
	retries int,
) *CommissionService {
	return &CommissionService{
		db:          db,
		commissions: commissions,
		genealogy:   genealogy,
		users:       users,
		wallet:      wallet,
		retries:     retries,
	}
}

// OrderCompleted is the checkout system's completion event.
type OrderCompleted struct {
	OrderID      string `json:"order_id"`
	BuyerID      uint   `json:"buyer_id"`
	AmountCents  int64  `json:"commissionable_amount"`
	IsFirstOrder bool   `json:"is_first_order"`
}

func (e OrderCompleted) Validate() error {
	if e.OrderID == "" || e.BuyerID == 0 {
		return domain.ErrInvalidOrder
	}
	if e.AmountCents <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// Record stores c and credits its beneficiary inside tx. A commission whose
// dedupe key already exists is not recorded again and created is false.
func (s *CommissionService) Record(tx *gorm.DB, c *models.Commission) (created bool, err error) {
	if c.AmountCents <= 0 {
		return false, domain.ErrInvalidAmount
	}
	if c.DedupeKey == "" {
		return false, fmt.Errorf("commission for user %d has no dedupe key", c.BeneficiaryID)
	}
	commissions := s.commissions.WithTx(tx)
	exists, err := commissions.ExistsByKey(c.DedupeKey)
	if err != nil || exists {
		return false, err
	}
	c.Status = domain.CommissionStatusPending
	if err := commissions.Create(c); err != nil {
		return false, err
	}
	id := c.ID
	available, err := s.wallet.Credit(tx, CreditInput{
		UserID:       c.BeneficiaryID,
		AmountCents:  c.AmountCents,
		Category:     c.Type,
		Reference:    c.DedupeKey,
		CommissionID: &id,
	})
	if err != nil {
		return false, err
	}
	if available {
		if err := commissions.SetStatus(c.ID, domain.CommissionStatusPending, domain.CommissionStatusApproved); err != nil {
			return false, err
		}
		c.Status = domain.CommissionStatusApproved
	}
	return true, nil
}

// Direct pays the buyer's sponsor on the buyer's first order when the
// sponsor is active. The dedupe key is per buyer, so a second order that is
// also flagged first reports ReasonDuplicate instead of paying again.
func (s *CommissionService) Direct(tx *gorm.DB, p plan.Plan, order OrderCompleted) (Outcome, error) {
	if !order.IsFirstOrder {
		return skipped(ReasonNotFirstOrder), nil
	}
	rel, err := s.genealogy.WithTx(tx).GetRelation(order.BuyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skipped(ReasonNoSponsor), nil
		}
		return Outcome{}, err
	}
	sponsor, err := s.users.WithTx(tx).GetByID(rel.SponsorID)
	if err != nil {
		return Outcome{}, notFound(err, domain.ErrUserNotFound, "sponsor %d", rel.SponsorID)
	}
	out := Outcome{BeneficiaryID: sponsor.ID}
	if !sponsor.IsActive {
		out.Reason = ReasonSponsorInactive
		return out, nil
	}
	amount := plan.Percent(order.AmountCents, p.DirectPercent)
	if amount <= 0 {
		out.Reason = ReasonZeroAmount
		return out, nil
	}
	buyer := order.BuyerID
	c := &models.Commission{
		BeneficiaryID: sponsor.ID,
		SourceUserID:  &buyer,
		Type:          domain.CommissionTypeDirect,
		BaseAmount:    order.AmountCents,
		Percentage:    p.DirectPercent,
		AmountCents:   amount,
		OrderID:       order.OrderID,
		DedupeKey:     fmt.Sprintf("direct:buyer:%d", buyer),
	}
	created, err := s.Record(tx, c)
	if err != nil {
		return Outcome{}, err
	}
	if !created {
		out.Reason = ReasonDuplicate
		return out, nil
	}
	out.Applied, out.Commission = true, c
	return out, nil
}

// Multilevel walks the buyer's sponsor upline up to the configured number of
// levels. An inactive or under-PV ancestor forfeits its level; the walk
// continues and nothing is compressed upward.
func (s *CommissionService) Multilevel(tx *gorm.DB, p plan.Plan, order OrderCompleted) ([]Outcome, error) {
	if len(p.Levels) == 0 {
		return nil, nil
	}
	ancestors, err := s.genealogy.WithTx(tx).Ancestors(order.BuyerID, len(p.Levels))
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(ancestors))
	for _, a := range ancestors {
		ids = append(ids, a.AncestorID)
	}
	users, err := s.users.WithTx(tx).GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	buyer := order.BuyerID
	outcomes := make([]Outcome, 0, len(ancestors))
	for _, a := range ancestors {
		level := p.Levels[a.Depth-1]
		out := Outcome{BeneficiaryID: a.AncestorID, Level: a.Depth}
		u, ok := users[a.AncestorID]
		if !ok {
			return nil, fmt.Errorf("%w: upline user %d", domain.ErrUserNotFound, a.AncestorID)
		}
		switch {
		case !u.IsActive:
			out.Reason = ReasonInactive
		case u.PersonalVolume < level.MinPV:
			out.Reason = ReasonBelowPV
		}
		if out.Reason != "" {
			outcomes = append(outcomes, out)
			continue
		}
		amount := plan.Percent(order.AmountCents, level.Percent)
		if amount <= 0 {
			out.Reason = ReasonZeroAmount
			outcomes = append(outcomes, out)
			continue
		}
		c := &models.Commission{
			BeneficiaryID: u.ID,
			SourceUserID:  &buyer,
			Type:          domain.CommissionTypeMultilevel,
			BaseAmount:    order.AmountCents,
			Percentage:    level.Percent,
			AmountCents:   amount,
			Level:         a.Depth,
			OrderID:       order.OrderID,
			DedupeKey:     fmt.Sprintf("multilevel:%s:%d", order.OrderID, a.Depth),
		}
		created, err := s.Record(tx, c)
		if err != nil {
			return nil, err
		}
		if created {
			out.Applied, out.Commission = true, c
		} else {
			out.Reason = ReasonDuplicate
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// bonus records a flat rank bonus as a commission at 100% of its base.
func (s *CommissionService) bonus(tx *gorm.DB, userID uint, amount int64, key, note string) (*models.Commission, bool, error) {
	c := &models.Commission{
		BeneficiaryID: userID,
		Type:          domain.CommissionTypeRankBonus,
		BaseAmount:    amount,
		Percentage:    decimal.NewFromInt(100),
		AmountCents:   amount,
		DedupeKey:     key,
		Note:          note,
	}
	created, err := s.Record(tx, c)
	return c, created, err
}

// SetStatus applies an administrative status override. Cancelling a pending
// or approved commission reverses it in the wallet; approved can be marked
// paid. Approval itself happens only through KYC.
func (s *CommissionService) SetStatus(ctx context.Context, id uint, to, note string, actor Actor) (*models.Commission, error) {
	var c *models.Commission
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			commissions := s.commissions.WithTx(tx)
			var err error
			if c, err = commissions.Lock(id); err != nil {
				return err
			}
			from := c.Status
			switch {
			case to == domain.CommissionStatusCancelled &&
				(from == domain.CommissionStatusPending || from == domain.CommissionStatusApproved):
				if err := s.wallet.reverse(tx, c); err != nil {
					return err
				}
			case to == domain.CommissionStatusPaid && from == domain.CommissionStatusApproved:
			default:
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
			}
			if err := commissions.SetStatus(c.ID, from, to); err != nil {
				return err
			}
			c.Status = to
			return audit(tx, actor, "commission.status", "commission", c.ID,
				map[string]string{"from": from, "to": to, "note": note})
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[commission] %d set to %s by %d", c.ID, c.Status, actor.UserID)
	return c, nil
}

func (s *CommissionService) List(ctx context.Context, f repository.CommissionFilter, page, limit int) ([]models.Commission, int64, error) {
	page, limit = pageArgs(page, limit)
	return s.commissions.WithTx(s.db.WithContext(ctx)).List(f, page, limit)
}

func (s *CommissionService) Totals(ctx context.Context, beneficiaryID uint) ([]repository.TypeTotal, error) {
	return s.commissions.WithTx(s.db.WithContext(ctx)).Totals(beneficiaryID)
}
