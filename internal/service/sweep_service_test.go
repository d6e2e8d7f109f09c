package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ascend/internal/domain"
	"ascend/internal/lock"
	"ascend/internal/repository"
)

func TestRunBinarySweep(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	binaryTree(t, e, 15000)
	buy(t, e, 2, 100000)
	buy(t, e, 3, 150000)

	res, err := e.sweeps.RunBinary(ctx, week(0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 3 || res.Paid != 1 || res.Skipped != 2 || res.Failed != 0 {
		t.Errorf("Expected processed=3 paid=1 skipped=2, got %+v", res)
	}

	again, err := e.sweeps.RunBinary(ctx, week(0))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Paid != 0 || again.Skipped != 3 {
		t.Errorf("Expected rerun to pay nothing, got %+v", again)
	}
	if w := e.balance(t, 1); w.BinaryEarnedCents != 10000 {
		t.Errorf("Expected a single 10000 binary payout, got %d", w.BinaryEarnedCents)
	}
}

func TestBinarySweepEvaluatesRanks(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	// Chain 1 <- 2 <- ... <- 8, all on the left leg.
	e.activate(t, 1, 0, "")
	for id := uint(2); id <= 8; id++ {
		e.activate(t, id, id-1, domain.LegLeft)
	}
	buy(t, e, 1, 10000)
	buy(t, e, 2, 5000)
	// User 1 is beyond the order's evaluation depth from buyer 8.
	completeOrder(t, e, OrderCompleted{OrderID: "deep", BuyerID: 8, AmountCents: 20000, IsFirstOrder: true})
	if u := e.user(t, 1); u.RankLevel != 0 {
		t.Fatalf("Expected user 1 unranked before period close, got level %d", u.RankLevel)
	}

	if _, err := e.sweeps.RunBinary(ctx, week(0)); err != nil {
		t.Fatalf("binary sweep: %v", err)
	}
	if u := e.user(t, 1); u.RankLevel != 1 {
		t.Fatalf("Expected period close to promote user 1 to level 1, got %d", u.RankLevel)
	}
	history, err := e.rank.History(ctx, 1, 10)
	if err != nil || len(history) != 1 || history[0].Reason != "period:"+week(0).Key() {
		t.Errorf("Expected one promotion recorded for the period, got %+v (%v)", history, err)
	}

	month := Period{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	res, err := e.sweeps.RunRecurring(ctx, month)
	if err != nil {
		t.Fatalf("recurring sweep: %v", err)
	}
	if res.Paid != 1 {
		t.Errorf("Expected the promoted user to be paid a recurring bonus, got %+v", res)
	}
}

func TestSweepRefusesConcurrentRun(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	locker := lock.NewLocalLocker()
	sweeps := NewSweepService(repository.NewUserRepository(e.db), e.binary, e.rank, e.plans, locker, 2, time.Minute)

	release, ok, err := locker.Acquire(ctx, "sweep:"+JobBinary+":"+week(0).Key(), time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: %v %v", ok, err)
	}
	if _, err := sweeps.RunBinary(ctx, week(0)); !errors.Is(err, domain.ErrSweepBusy) {
		t.Errorf("Expected ErrSweepBusy, got %v", err)
	}
	release()
	if _, err := sweeps.RunBinary(ctx, week(0)); err != nil {
		t.Errorf("Expected sweep to run after release, got %v", err)
	}
}

func TestRunRecurringSweepOnlyRankedUsers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	rankTree(t, e, 10000, 10000)
	if _, err := e.rank.Evaluate(ctx, 1, e.plan, "test"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	month := Period{Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	res, err := e.sweeps.RunRecurring(ctx, month)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 1 || res.Paid != 1 {
		t.Errorf("Expected one ranked user paid, got %+v", res)
	}
	res, err = e.sweeps.RunRecurring(ctx, month)
	if err != nil || res.Paid != 0 || res.Skipped != 1 {
		t.Errorf("Expected rerun to skip, got %+v %v", res, err)
	}
}

func TestLastClosedPeriod(t *testing.T) {
	// Wednesday 2026-10-21 13:45 UTC.
	now := time.Date(2026, 10, 21, 13, 45, 0, 0, time.UTC)
	tests := []struct {
		length string
		start  time.Time
		end    time.Time
	}{
		{domain.PeriodDaily, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)},
		{domain.PeriodWeekly, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)},
		{domain.PeriodMonthly, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.length, func(t *testing.T) {
			p, err := LastClosedPeriod(tt.length, now)
			if err != nil {
				t.Fatalf("period: %v", err)
			}
			if !p.Start.Equal(tt.start) || !p.End.Equal(tt.end) {
				t.Errorf("Expected [%s, %s), got [%s, %s)", tt.start, tt.end, p.Start, p.End)
			}
		})
	}

	// On a Monday the week that just ended is returned.
	monday := time.Date(2026, 10, 19, 0, 5, 0, 0, time.UTC)
	if p, _ := LastClosedPeriod(domain.PeriodWeekly, monday); !p.End.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected the week ending 2026-10-19, got %s", p.End)
	}
	if _, err := LastClosedPeriod("fortnightly", now); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}
