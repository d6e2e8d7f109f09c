package scheduler

import "ascend/config"

func configFor(binary, recurring string) config.ScheduleConfig {
	return config.ScheduleConfig{Enabled: true, BinaryCron: binary, RecurringCron: recurring, SweepWorkers: 1}
}
