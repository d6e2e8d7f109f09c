package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ascend/internal/domain"
	"ascend/internal/lock"
	"ascend/internal/logger"
	"ascend/internal/metrics"
	"ascend/internal/repository"

	"github.com/panjf2000/ants/v2"
)

const (
	JobBinary    = "binary"
	JobRecurring = "rank_recurring"

	sweepPageSize = 500
)

// SweepResult counts one batch run.
type SweepResult struct {
	Job       string        `json:"job"`
	Period    Period        `json:"period"`
	Processed int64         `json:"processed"`
	Paid      int64         `json:"paid"`
	Skipped   int64         `json:"skipped"`
	Failed    int64         `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// SweepService fans per-user period work out over a goroutine pool. Each
// user's unit is its own transaction; the per-period uniqueness of
// BinaryRun rows and bonus dedupe keys keeps reruns from paying twice.
type SweepService struct {
	users   *repository.UserRepository
	binary  *BinaryService
	rank    *RankService
	plans   *PlanProvider
	locker  lock.Locker
	workers int
	lockTTL time.Duration
}

func NewSweepService(
	users *repository.UserRepository,
	binary *BinaryService,
	rank *RankService,
	plans *PlanProvider,
	locker lock.Locker,
	workers int,
	lockTTL time.Duration,
) *SweepService {
	if workers < 1 {
		workers = 1
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &SweepService{
		users:   users,
		binary:  binary,
		rank:    rank,
		plans:   plans,
		locker:  locker,
		workers: workers,
		lockTTL: lockTTL,
	}
}

// RunBinary closes period for every user and then re-evaluates the user's
// rank, so promotions that depend on volume far below a user are picked up
// at period close. Rank evaluation also runs when the binary step was
// already done, which lets a rerun finish evaluations a failed run missed.
func (s *SweepService) RunBinary(ctx context.Context, period Period) (*SweepResult, error) {
	p := s.plans.Current()
	reason := "period:" + period.Key()
	return s.run(ctx, JobBinary, period, false, func(ctx context.Context, userID uint) (bool, error) {
		out, err := s.binary.Calculate(ctx, userID, period, p)
		if err != nil && !periodDone(err) {
			return false, err
		}
		if _, rerr := s.rank.Evaluate(ctx, userID, p, reason); rerr != nil {
			return false, rerr
		}
		if err != nil {
			return false, err
		}
		return out.Applied, nil
	})
}

func periodDone(err error) bool {
	return errors.Is(err, domain.ErrPeriodAlreadyProcessed) || errors.Is(err, domain.ErrPeriodOutOfOrder)
}

// RunRecurring pays every ranked user's recurring bonus for period.
func (s *SweepService) RunRecurring(ctx context.Context, period Period) (*SweepResult, error) {
	return s.run(ctx, JobRecurring, period, true, func(ctx context.Context, userID uint) (bool, error) {
		out, err := s.rank.PayRecurring(ctx, userID, period)
		if err != nil {
			return false, err
		}
		return out.Applied, nil
	})
}

func (s *SweepService) run(ctx context.Context, job string, period Period, rankedOnly bool, unit func(context.Context, uint) (bool, error)) (*SweepResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	release, ok, err := s.locker.Acquire(ctx, "sweep:"+job+":"+period.Key(), s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSweepBusy
	}
	defer release()

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	started := time.Now()
	res := &SweepResult{Job: job, Period: period}
	var processed, paid, skipped, failed atomic.Int64
	var wg sync.WaitGroup

	var after uint
	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		ids, err := s.users.PageIDs(after, sweepPageSize, rankedOnly)
		if err != nil {
			wg.Wait()
			return nil, err
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]
		for _, id := range ids {
			userID := id
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				processed.Add(1)
				applied, err := unit(ctx, userID)
				switch {
				case periodDone(err):
					skipped.Add(1)
				case err != nil:
					failed.Add(1)
					logger.Error("[sweep] %s user %d period %s: %v", job, userID, period.Key(), err)
				case applied:
					paid.Add(1)
				default:
					skipped.Add(1)
				}
			})
			if submitErr != nil {
				wg.Done()
				failed.Add(1)
				logger.Error("[sweep] %s submit user %d: %v", job, userID, submitErr)
			}
		}
	}
	wg.Wait()

	res.Processed, res.Paid, res.Skipped, res.Failed = processed.Load(), paid.Load(), skipped.Load(), failed.Load()
	res.Duration = time.Since(started)
	metrics.SweepDuration.WithLabelValues(job).Observe(res.Duration.Seconds())
	metrics.SweepUsersTotal.WithLabelValues(job, "paid").Add(float64(res.Paid))
	metrics.SweepUsersTotal.WithLabelValues(job, "skipped").Add(float64(res.Skipped))
	metrics.SweepUsersTotal.WithLabelValues(job, "failed").Add(float64(res.Failed))
	logger.Info("[sweep] %s %s done in %s: processed=%d paid=%d skipped=%d failed=%d",
		job, period.Key(), res.Duration, res.Processed, res.Paid, res.Skipped, res.Failed)
	return res, nil
}
