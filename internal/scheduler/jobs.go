package scheduler

import (
	"context"
	"errors"
	"time"

	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/service"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper runs period sweeps.
type Sweeper interface {
	RunBinary(ctx context.Context, period service.Period) (*service.SweepResult, error)
	RunRecurring(ctx context.Context, period service.Period) (*service.SweepResult, error)
}

type sweepJob struct {
	name   string
	cron   string
	length string
	now    func() time.Time
	run    func(ctx context.Context, period service.Period) (*service.SweepResult, error)
}

// NewBinaryJob closes the last complete binary period on each tick.
func NewBinaryJob(cron, length string, sweeps Sweeper) Job {
	return &sweepJob{name: "binary_period_sweep", cron: cron, length: length, now: time.Now, run: sweeps.RunBinary}
}

// NewRecurringJob pays recurring rank bonuses for the last complete period.
func NewRecurringJob(cron, length string, sweeps Sweeper) Job {
	return &sweepJob{name: "rank_recurring_sweep", cron: cron, length: length, now: time.Now, run: sweeps.RunRecurring}
}

func (j *sweepJob) GetName() string { return j.name }

func (j *sweepJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *sweepJob) Execute() {
	period, err := service.LastClosedPeriod(j.length, j.now())
	if err != nil {
		logger.Error("[scheduler] %s: %v", j.name, err)
		return
	}
	logger.Info("[scheduler] %s starting for %s", j.name, period.Key())
	res, err := j.run(context.Background(), period)
	switch {
	case errors.Is(err, domain.ErrSweepBusy):
		logger.Info("[scheduler] %s %s already running elsewhere", j.name, period.Key())
	case err != nil:
		logger.Error("[scheduler] %s %s failed: %v", j.name, period.Key(), err)
	default:
		logger.Info("[scheduler] %s %s paid=%d skipped=%d failed=%d", j.name, period.Key(), res.Paid, res.Skipped, res.Failed)
	}
}
