package service

import (
	"fmt"
	"time"

	"ascend/internal/domain"
)

// Period is a half-open commission window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Validate() error {
	if p.Start.IsZero() || !p.End.After(p.Start) {
		return domain.ErrInvalidPeriod
	}
	return nil
}

// Key identifies the period in dedupe keys and lock names.
func (p Period) Key() string {
	return p.Start.UTC().Format("20060102T150405Z")
}

// LastClosedPeriod returns the most recent complete period of the given
// length that ended at or before now. Boundaries are UTC midnights; weeks
// start on Monday.
func LastClosedPeriod(length string, now time.Time) (Period, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch length {
	case domain.PeriodDaily:
		return Period{Start: today.AddDate(0, 0, -1), End: today}, nil
	case domain.PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		end := today.AddDate(0, 0, -offset)
		return Period{Start: end.AddDate(0, 0, -7), End: end}, nil
	case domain.PeriodMonthly:
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: end.AddDate(0, -1, 0), End: end}, nil
	default:
		return Period{}, fmt.Errorf("%w: unknown period length %q", domain.ErrInvalidPeriod, length)
	}
}
