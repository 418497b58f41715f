package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		wantErr  bool
	}{
		{
			name:     "valid one-shot",
			schedule: Schedule{Type: ScheduleOnce, Datetime: "2030-01-02T15:04:05Z"},
		},
		{
			name:     "one-shot without datetime",
			schedule: Schedule{Type: ScheduleOnce},
			wantErr:  true,
		},
		{
			name:     "one-shot with unparseable datetime",
			schedule: Schedule{Type: ScheduleOnce, Datetime: "tomorrow at noon"},
			wantErr:  true,
		},
		{
			name:     "valid hourly",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalHourly, Minute: 30},
		},
		{
			name:     "hourly rejects hour field",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalHourly, Minute: 30, Hour: intPtr(4)},
			wantErr:  true,
		},
		{
			name:     "valid daily",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0, Hour: intPtr(3)},
		},
		{
			name:     "daily without hour",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0},
			wantErr:  true,
		},
		{
			name:     "daily rejects dayOfWeek",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0, Hour: intPtr(3), DayOfWeek: intPtr(2)},
			wantErr:  true,
		},
		{
			name:     "valid weekly",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 15, Hour: intPtr(9), DayOfWeek: intPtr(1)},
		},
		{
			name:     "weekly without dayOfWeek",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 15, Hour: intPtr(9)},
			wantErr:  true,
		},
		{
			name:     "weekly dayOfWeek out of range",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 15, Hour: intPtr(9), DayOfWeek: intPtr(7)},
			wantErr:  true,
		},
		{
			name:     "valid monthly",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(0), DayOfMonth: intPtr(1)},
		},
		{
			name:     "monthly without dayOfMonth",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(0)},
			wantErr:  true,
		},
		{
			name:     "monthly dayOfMonth out of range",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(0), DayOfMonth: intPtr(32)},
			wantErr:  true,
		},
		{
			name:     "minute out of range",
			schedule: Schedule{Type: ScheduleRecurring, Interval: IntervalHourly, Minute: 60},
			wantErr:  true,
		},
		{
			name:     "unknown interval",
			schedule: Schedule{Type: ScheduleRecurring, Interval: "fortnightly", Minute: 0},
			wantErr:  true,
		},
		{
			name:     "unknown type",
			schedule: Schedule{Type: "sometimes"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSchedule_NextRun_DailyBoundary(t *testing.T) {
	// Computed exactly at the configured boundary, the next run must be
	// exactly one day later, not the same instant.
	schedule := Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0, Hour: intPtr(3)}
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)

	next, err := schedule.NextRun(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC), next)
}

func TestSchedule_NextRun_Hourly(t *testing.T) {
	schedule := Schedule{Type: ScheduleRecurring, Interval: IntervalHourly, Minute: 30}

	next, err := schedule.NextRun(time.Date(2025, 6, 10, 14, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC), next)

	next, err = schedule.NextRun(time.Date(2025, 6, 10, 14, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC), next)
}

func TestSchedule_NextRun_Weekly(t *testing.T) {
	// Monday 09:15; computed on a Wednesday.
	schedule := Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 15, Hour: intPtr(9), DayOfWeek: intPtr(1)}
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC) // Wednesday

	next, err := schedule.NextRun(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 16, 9, 15, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestSchedule_NextRun_Monthly(t *testing.T) {
	schedule := Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(8), DayOfMonth: intPtr(15)}
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	next, err := schedule.NextRun(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 15, 8, 0, 0, 0, time.UTC), next)
}

func TestSchedule_NextRun_OneShot(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	future := Schedule{Type: ScheduleOnce, Datetime: "2025-06-10T13:00:00Z"}
	next, err := future.NextRun(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 13, 0, 0, 0, time.UTC), next.UTC())

	past := Schedule{Type: ScheduleOnce, Datetime: "2025-06-10T11:00:00Z"}
	_, err = past.NextRun(now)
	assert.ErrorIs(t, err, ErrScheduleInPast)

	exact := Schedule{Type: ScheduleOnce, Datetime: "2025-06-10T12:00:00Z"}
	_, err = exact.NextRun(now)
	assert.ErrorIs(t, err, ErrScheduleInPast)
}

func TestSchedule_CronExpression(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		want     string
	}{
		{"hourly", Schedule{Type: ScheduleRecurring, Interval: IntervalHourly, Minute: 5}, "5 * * * *"},
		{"daily", Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0, Hour: intPtr(3)}, "0 3 * * *"},
		{"weekly", Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 30, Hour: intPtr(18), DayOfWeek: intPtr(5)}, "30 18 * * 5"},
		{"monthly", Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(6), DayOfMonth: intPtr(28)}, "0 6 28 * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := tt.schedule.CronExpression()
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr)
		})
	}
}

func TestSchedule_CronExpression_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
	}{
		{"daily without hour", Schedule{Type: ScheduleRecurring, Interval: IntervalDaily, Minute: 0}},
		{"weekly without dayOfWeek", Schedule{Type: ScheduleRecurring, Interval: IntervalWeekly, Minute: 0, Hour: intPtr(9)}},
		{"monthly without dayOfMonth", Schedule{Type: ScheduleRecurring, Interval: IntervalMonthly, Minute: 0, Hour: intPtr(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.schedule.CronExpression()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}
