package scheduler

import (
	"ascend/config"
	"ascend/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Job is a scheduled unit of work.
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager owns the gocron scheduler and its jobs.
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

func NewManager(jobs ...Job) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s, jobs: jobs}, nil
}

// Start registers every job in singleton mode and starts the scheduler.
func (m *Manager) Start() error {
	for _, job := range m.jobs {
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		logger.Info("[scheduler] registered %s", job.GetName())
	}
	m.scheduler.Start()
	logger.Info("[scheduler] started with %d jobs", len(m.jobs))
	return nil
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("[scheduler] shutdown: %v", err)
	}
	logger.Info("[scheduler] stopped")
}

// Jobs builds the period sweeps from configuration.
func Jobs(cfg config.ScheduleConfig, sweeps Sweeper, binaryPeriod, recurringPeriod string) []Job {
	return []Job{
		NewBinaryJob(cfg.BinaryCron, binaryPeriod, sweeps),
		NewRecurringJob(cfg.RecurringCron, recurringPeriod, sweeps),
	}
}
