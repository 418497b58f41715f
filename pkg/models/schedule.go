package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType distinguishes one-shot from recurring schedules.
type ScheduleType string

const (
	ScheduleOnce      ScheduleType = "once"
	ScheduleRecurring ScheduleType = "recurring"
)

// Interval is the calendar unit of a recurring schedule.
type Interval string

const (
	IntervalHourly  Interval = "hourly"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrScheduleInPast is returned when a schedule's computed next fire
	// time is not strictly in the future.
	ErrScheduleInPast = errors.New("schedule time is in the past")
)

// Schedule describes when a workflow should run unattended. A one-shot
// schedule fires at the literal Datetime; a recurring schedule fires at
// the configured calendar boundary of its interval.
type Schedule struct {
	Type       ScheduleType `json:"type"                 validate:"required,oneof=once recurring"`
	Datetime   string       `json:"datetime,omitempty"`  // RFC 3339, one-shot only
	Interval   Interval     `json:"interval,omitempty"`
	Minute     int          `json:"minute"`
	Hour       *int         `json:"hour,omitempty"`       // daily, weekly, monthly
	DayOfWeek  *int         `json:"dayOfWeek,omitempty"`  // weekly only, 0=Sunday
	DayOfMonth *int         `json:"dayOfMonth,omitempty"` // monthly only, 1-31
}

// Validate checks that the fields required by the schedule's type and
// interval are present and in range, and that fields belonging to other
// intervals are absent.
func (s *Schedule) Validate() error {
	switch s.Type {
	case ScheduleOnce:
		if s.Datetime == "" {
			return fmt.Errorf("%w: one-shot schedule requires a datetime", ErrInvalidSchedule)
		}

		if _, err := time.Parse(time.RFC3339, s.Datetime); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}

		return nil
	case ScheduleRecurring:
		return s.validateRecurring()
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.Type)
	}
}

func (s *Schedule) validateRecurring() error {
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidSchedule, s.Minute)
	}

	needsHour := s.Interval == IntervalDaily || s.Interval == IntervalWeekly || s.Interval == IntervalMonthly

	switch s.Interval {
	case IntervalHourly, IntervalDaily, IntervalWeekly, IntervalMonthly:
	default:
		return fmt.Errorf("%w: unknown interval %q", ErrInvalidSchedule, s.Interval)
	}

	if needsHour {
		if s.Hour == nil {
			return fmt.Errorf("%w: %s schedule requires an hour", ErrInvalidSchedule, s.Interval)
		}

		if *s.Hour < 0 || *s.Hour > 23 {
			return fmt.Errorf("%w: hour %d out of range", ErrInvalidSchedule, *s.Hour)
		}
	} else if s.Hour != nil {
		return fmt.Errorf("%w: hour is not valid for %s schedules", ErrInvalidSchedule, s.Interval)
	}

	if s.Interval == IntervalWeekly {
		if s.DayOfWeek == nil {
			return fmt.Errorf("%w: weekly schedule requires a dayOfWeek", ErrInvalidSchedule)
		}

		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return fmt.Errorf("%w: dayOfWeek %d out of range", ErrInvalidSchedule, *s.DayOfWeek)
		}
	} else if s.DayOfWeek != nil {
		return fmt.Errorf("%w: dayOfWeek is only valid for weekly schedules", ErrInvalidSchedule)
	}

	if s.Interval == IntervalMonthly {
		if s.DayOfMonth == nil {
			return fmt.Errorf("%w: monthly schedule requires a dayOfMonth", ErrInvalidSchedule)
		}

		if *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return fmt.Errorf("%w: dayOfMonth %d out of range", ErrInvalidSchedule, *s.DayOfMonth)
		}
	} else if s.DayOfMonth != nil {
		return fmt.Errorf("%w: dayOfMonth is only valid for monthly schedules", ErrInvalidSchedule)
	}

	return nil
}

// CronExpression renders a recurring schedule as a standard 5-field cron
// expression (minute hour day month weekday).
func (s *Schedule) CronExpression() (string, error) {
	switch s.Interval {
	case IntervalHourly:
		return fmt.Sprintf("%d * * * *", s.Minute), nil
	case IntervalDaily:
		if s.Hour == nil {
			return "", fmt.Errorf("%w: daily schedule requires an hour", ErrInvalidSchedule)
		}

		return fmt.Sprintf("%d %d * * *", s.Minute, *s.Hour), nil
	case IntervalWeekly:
		if s.Hour == nil || s.DayOfWeek == nil {
			return "", fmt.Errorf("%w: weekly schedule requires an hour and a dayOfWeek", ErrInvalidSchedule)
		}

		return fmt.Sprintf("%d %d * * %d", s.Minute, *s.Hour, *s.DayOfWeek), nil
	case IntervalMonthly:
		if s.Hour == nil || s.DayOfMonth == nil {
			return "", fmt.Errorf("%w: monthly schedule requires an hour and a dayOfMonth", ErrInvalidSchedule)
		}

		return fmt.Sprintf("%d %d %d * *", s.Minute, *s.Hour, *s.DayOfMonth), nil
	default:
		return "", fmt.Errorf("%w: interval %q has no cron form", ErrInvalidSchedule, s.Interval)
	}
}

// NextRun computes the schedule's next fire time strictly after now.
// One-shot schedules use the literal datetime and fail with
// ErrScheduleInPast when it has already passed.
func (s *Schedule) NextRun(now time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}

	if s.Type == ScheduleOnce {
		at, err := time.Parse(time.RFC3339, s.Datetime)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}

		if !at.After(now) {
			return time.Time{}, ErrScheduleInPast
		}

		return at, nil
	}

	expr, err := s.CronExpression()
	if err != nil {
		return time.Time{}, err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	cronSchedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	// cron.Next is strictly after its argument, so a candidate landing
	// exactly on now rolls over to the next interval boundary.
	return cronSchedule.Next(now), nil
}
