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

// LegState is one leg's carryover and how many consecutive periods it has
// been carried.
type LegState struct {
	Amount int64
	Cycles int
}

// NextCarry advances a leg's carry state by one period. A zero carry resets
// the counter; a nonzero carry increments it, and a counter beyond maxCycles
// forfeits the carry. maxCycles <= 0 disables forfeiture.
func NextCarry(prev LegState, carry int64, maxCycles int) LegState {
	if carry <= 0 {
		return LegState{}
	}
	cycles := prev.Cycles + 1
	if maxCycles > 0 && cycles > maxCycles {
		return LegState{}
	}
	return LegState{Amount: carry, Cycles: cycles}
}

// BinaryResult is the pure outcome of matching two legs.
type BinaryResult struct {
	Left, Right int64
	Matched     int64
	Raw         int64
	Amount      int64
	Capped      bool
	LeftCarry   int64
	RightCarry  int64
}

// ComputeBinary matches the weaker leg against the stronger one. The weak
// leg is consumed entirely; the strong remainder carries forward.
func ComputeBinary(left, right int64, b plan.Binary) BinaryResult {
	weak := left
	if right < weak {
		weak = right
	}
	r := BinaryResult{Left: left, Right: right, Matched: weak}
	r.Raw = plan.Percent(weak, b.Percent)
	r.Amount = r.Raw
	if b.CapCents > 0 && r.Amount > b.CapCents {
		r.Amount = b.CapCents
		r.Capped = true
	}
	r.LeftCarry = left - weak
	r.RightCarry = right - weak
	return r
}

// BinaryService runs the per-period binary calculation for one user.
type BinaryService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	placements  *repository.PlacementRepository
	carryovers  *repository.CarryoverRepository
	runs        *repository.BinaryRunRepository
	commissions *CommissionService
	retries     int
}

func NewBinaryService(
	db *gorm.DB,
	users *repository.UserRepository,
	placements *repository.PlacementRepository,
	carryovers *repository.CarryoverRepository,
	runs *repository.BinaryRunRepository,
	commissions *CommissionService,
	retries int,
) *BinaryService {
	return &BinaryService{
		db:          db,
		users:       users,
		placements:  placements,
		carryovers:  carryovers,
		runs:        runs,
		commissions: commissions,
		retries:     retries,
	}
}

// BinaryOutcome reports one user's binary calculation.
type BinaryOutcome struct {
	Outcome
	Run *models.BinaryRun `json:"run,omitempty"`
}

// Calculate closes period for userID. Leg volume for the period is the
// subtree volume added since the last run plus carryover. Ineligible users
// (not placed, inactive, PV below minimum) get a not-applicable outcome and
// keep their state, so their volume stays available to later periods. Their
// carry cycles are frozen as well: a period that is not closed for a user
// does not age its carryover, so MaxCarryCycles bounds how long carry
// survives across processed periods only. A second run for the same period
// fails with ErrPeriodAlreadyProcessed; a period starting before the end of
// the last processed one fails with ErrPeriodOutOfOrder.
func (s *BinaryService) Calculate(ctx context.Context, userID uint, period Period, p plan.Plan) (*BinaryOutcome, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	var out *BinaryOutcome
	err := database.WithRetry(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = s.calculate(tx, userID, period, p)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if out.Commission != nil {
		observeCommissions(out.Commission)
	}
	return out, nil
}

func (s *BinaryService) calculate(tx *gorm.DB, userID uint, period Period, p plan.Plan) (*BinaryOutcome, error) {
	runs := s.runs.WithTx(tx)
	done, err := runs.Exists(userID, period.Start)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, domain.ErrPeriodAlreadyProcessed
	}
	user, err := s.users.WithTx(tx).GetByID(userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "user %d", userID)
	}
	node, err := s.placements.WithTx(tx).GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &BinaryOutcome{Outcome: skipped(ReasonNotPlaced)}, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return &BinaryOutcome{Outcome: skipped(ReasonInactive)}, nil
	}
	if user.PersonalVolume < p.Binary.MinPV {
		return &BinaryOutcome{Outcome: skipped(ReasonBelowPV)}, nil
	}

	carryovers := s.carryovers.WithTx(tx)
	ledger, err := carryovers.LockOrCreate(userID)
	if err != nil {
		return nil, err
	}
	if ledger.LastPeriodEnd != nil && period.Start.Before(*ledger.LastPeriodEnd) {
		return nil, domain.ErrPeriodOutOfOrder
	}
	newLeft := node.LeftVolume - ledger.LeftSettled
	newRight := node.RightVolume - ledger.RightSettled
	if newLeft < 0 || newRight < 0 {
		return nil, domain.Integrity("user %d settled volume exceeds subtree volume", userID)
	}
	res := ComputeBinary(newLeft+ledger.LeftCarryover, newRight+ledger.RightCarryover, p.Binary)
	left := NextCarry(LegState{Amount: ledger.LeftCarryover, Cycles: ledger.LeftCycles}, res.LeftCarry, p.Binary.MaxCarryCycles)
	right := NextCarry(LegState{Amount: ledger.RightCarryover, Cycles: ledger.RightCycles}, res.RightCarry, p.Binary.MaxCarryCycles)

	start, end := period.Start, period.End
	ledger.LeftCarryover, ledger.LeftCycles = left.Amount, left.Cycles
	ledger.RightCarryover, ledger.RightCycles = right.Amount, right.Cycles
	ledger.LeftSettled, ledger.RightSettled = node.LeftVolume, node.RightVolume
	ledger.LastPeriodStart, ledger.LastPeriodEnd = &start, &end
	if err := carryovers.Save(ledger); err != nil {
		return nil, err
	}

	run := &models.BinaryRun{
		UserID:         userID,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		LeftVolume:     res.Left,
		RightVolume:    res.Right,
		MatchedVolume:  res.Matched,
		AmountCents:    res.Amount,
		LeftCarryover:  left.Amount,
		RightCarryover: right.Amount,
		Status:         domain.BinaryRunPaid,
	}
	out := &BinaryOutcome{Outcome: Outcome{BeneficiaryID: userID}, Run: run}
	if res.Capped {
		run.Status = domain.BinaryRunCapped
	}
	if res.Amount > 0 {
		c := &models.Commission{
			BeneficiaryID: userID,
			Type:          domain.CommissionTypeBinary,
			BaseAmount:    res.Matched,
			Percentage:    p.Binary.Percent,
			AmountCents:   res.Amount,
			PeriodStart:   &start,
			PeriodEnd:     &end,
			DedupeKey:     fmt.Sprintf("binary:%d:%s", userID, period.Key()),
		}
		if res.Capped {
			c.Note = fmt.Sprintf("capped from %d", res.Raw)
		}
		created, err := s.commissions.Record(tx, c)
		if err != nil {
			return nil, err
		}
		if !created {
			return nil, domain.ErrPeriodAlreadyProcessed
		}
		run.CommissionID = &c.ID
		out.Applied, out.Commission = true, c
	} else {
		run.Status = domain.BinaryRunNoPayout
		out.Reason = ReasonZeroAmount
	}
	if err := runs.Create(run); err != nil {
		return nil, err
	}
	logger.Debug("[binary] user %d period %s L=%d R=%d matched=%d paid=%d carry=%d/%d",
		userID, period.Key(), res.Left, res.Right, res.Matched, res.Amount, left.Amount, right.Amount)
	return out, nil
}

// Runs returns the user's binary history, newest first.
func (s *BinaryService) Runs(ctx context.Context, userID uint, page, limit int) ([]models.BinaryRun, error) {
	page, limit = pageArgs(page, limit)
	return s.runs.WithTx(s.db.WithContext(ctx)).ListByUser(userID, limit, (page-1)*limit)
}

// Carryover returns the user's current carry ledger, zero-valued when none exists.
func (s *BinaryService) Carryover(ctx context.Context, userID uint) (*models.CarryoverLedger, error) {
	l, err := s.carryovers.WithTx(s.db.WithContext(ctx)).GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CarryoverLedger{UserID: userID}, nil
	}
	return l, err
}
