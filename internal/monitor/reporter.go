package monitor

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nomadops/nomadmon/internal/model"
)

// ReportScheduler computes when daily and weekly status reports are
// due. Daily fires every day at the configured HH:MM in the configured
// zone; weekly fires Mondays at the same time. Both are evaluated
// against the last firing instant, so a tick arriving late still fires
// a missed report exactly once.
type ReportScheduler struct {
	daily  cron.Schedule
	weekly cron.Schedule
	loc    *time.Location
}

// NewReportScheduler builds the schedules from a HH:MM local time
func NewReportScheduler(dailyTime string, loc *time.Location) (*ReportScheduler, error) {
	at, err := time.Parse("15:04", dailyTime)
	if err != nil {
		return nil, fmt.Errorf("invalid daily time %q: %w", dailyTime, err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	daily, err := parser.Parse(fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()))
	if err != nil {
		return nil, fmt.Errorf("failed to build daily schedule: %w", err)
	}
	weekly, err := parser.Parse(fmt.Sprintf("%d %d * * 1", at.Minute(), at.Hour()))
	if err != nil {
		return nil, fmt.Errorf("failed to build weekly schedule: %w", err)
	}

	return &ReportScheduler{daily: daily, weekly: weekly, loc: loc}, nil
}

// DueKinds returns which report kinds are due at now, given when each
// last fired. A kind is due when its next occurrence after the last
// firing has passed. The check is idempotent: callers advance the
// last-fired instant when they fire, which is what prevents a second
// firing within the same period.
func (s *ReportScheduler) DueKinds(now, lastDaily, lastWeekly time.Time) []model.ReportKind {
	var due []model.ReportKind
	if s.isDue(s.daily, now, lastDaily) {
		due = append(due, model.ReportDaily)
	}
	if s.isDue(s.weekly, now, lastWeekly) {
		due = append(due, model.ReportWeekly)
	}
	return due
}

func (s *ReportScheduler) isDue(schedule cron.Schedule, now, lastFired time.Time) bool {
	next := schedule.Next(lastFired.In(s.loc))
	return !now.Before(next)
}
