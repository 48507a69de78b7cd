package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleNextRun_Interval(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := IntervalSchedule(30)
	next, err := s.NextRun(from)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, from.Add(30*time.Minute), *next)
}

func TestScheduleNextRun_IntervalRequiresPositiveMinutes(t *testing.T) {
	s := IntervalSchedule(0)
	_, err := s.NextRun(time.Now())
	assert.Error(t, err)
}

func TestScheduleNextRun_Once(t *testing.T) {
	next, err := OnceSchedule().NextRun(time.Now())
	require.NoError(t, err)
	assert.Nil(t, next, "one-shot schedules do not reschedule")
}

func TestScheduleNextRun_Cron(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 34, 56, 0, time.UTC)

	s := CronSchedule(CadenceHourly)
	next, err := s.NextRun(from)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), *next)
}

func TestScheduleNextRun_NamedCadence(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC)

	tests := []struct {
		name string
		want time.Time
	}{
		{"hourly", time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)},
		{"daily", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"every_5_minutes", time.Date(2026, 3, 1, 12, 35, 0, 0, time.UTC)},
		{"weekly", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)}, // 2026-03-08 is a Sunday
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := CronSchedule(tt.name).NextRun(from)
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.Equal(t, tt.want, *next)
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		wantErrs int
	}{
		{"once is always valid", OnceSchedule(), 0},
		{"valid interval", IntervalSchedule(15), 0},
		{"zero interval", IntervalSchedule(0), 1},
		{"negative interval", IntervalSchedule(-5), 1},
		{"valid cron", CronSchedule("*/5 * * * *"), 0},
		{"named cadence", CronSchedule("every_6_hours"), 0},
		{"empty cron expression", CronSchedule(""), 1},
		{"garbage cron expression", CronSchedule("not a cron"), 1},
		{"unknown kind", Schedule{Kind: "sometimes"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.schedule.Validate(), tt.wantErrs)
		})
	}
}

func TestCadenceExpression_PassesThroughRawExpressions(t *testing.T) {
	assert.Equal(t, "0 0 * * *", CadenceExpression("daily"))
	assert.Equal(t, "17 3 * * 2", CadenceExpression("17 3 * * 2"))
}
