package model

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind discriminates the three recurrence rules a job can carry.
type ScheduleKind string

const (
	// ScheduleCron is a named cadence expressed as a standard five-field
	// cron expression (or a named shortcut, see CadenceExpression).
	ScheduleCron ScheduleKind = "cron"

	// ScheduleInterval reruns the job a fixed number of minutes after each
	// successful run.
	ScheduleInterval ScheduleKind = "interval"

	// ScheduleOnce runs the job a single time; on success the job becomes
	// inactive and never reappears in the claimable view.
	ScheduleOnce ScheduleKind = "once"
)

// Named cadences used by the platform's recurring sync jobs.
const (
	CadenceEveryMinute    = "* * * * *"
	CadenceEvery5Minutes  = "*/5 * * * *"
	CadenceEvery15Minutes = "*/15 * * * *"
	CadenceEvery30Minutes = "*/30 * * * *"
	CadenceHourly         = "0 * * * *"
	CadenceEvery6Hours    = "0 */6 * * *"
	CadenceEvery12Hours   = "0 */12 * * *"
	CadenceDaily          = "0 0 * * *"
	CadenceWeekly         = "0 0 * * 0"
)

// namedCadences maps human-readable cadence names to cron expressions so
// job configuration can say "hourly" instead of "0 * * * *".
var namedCadences = map[string]string{
	"every_minute":     CadenceEveryMinute,
	"every_5_minutes":  CadenceEvery5Minutes,
	"every_15_minutes": CadenceEvery15Minutes,
	"every_30_minutes": CadenceEvery30Minutes,
	"hourly":           CadenceHourly,
	"every_6_hours":    CadenceEvery6Hours,
	"every_12_hours":   CadenceEvery12Hours,
	"daily":            CadenceDaily,
	"weekly":           CadenceWeekly,
}

// CadenceExpression resolves a named cadence to its cron expression. An
// unknown name is returned unchanged on the assumption it is already a cron
// expression.
func CadenceExpression(name string) string {
	if expr, ok := namedCadences[name]; ok {
		return expr
	}
	return name
}

// Schedule is a job's recurrence descriptor: a cron cadence, a fixed
// interval in minutes, or a one-shot marker.
type Schedule struct {
	Kind            ScheduleKind `json:"kind"`
	Expression      string       `json:"expression,omitempty"`
	IntervalMinutes int          `json:"interval_minutes,omitempty"`
}

// OnceSchedule returns the one-shot descriptor.
func OnceSchedule() Schedule {
	return Schedule{Kind: ScheduleOnce}
}

// IntervalSchedule returns a fixed-interval descriptor.
func IntervalSchedule(minutes int) Schedule {
	return Schedule{Kind: ScheduleInterval, IntervalMinutes: minutes}
}

// CronSchedule returns a cadence descriptor. The expression may be a named
// cadence ("hourly", "daily", ...) or a raw cron expression.
func CronSchedule(expr string) Schedule {
	return Schedule{Kind: ScheduleCron, Expression: expr}
}

// IsOnce reports whether this is a one-shot schedule.
func (s Schedule) IsOnce() bool {
	return s.Kind == ScheduleOnce
}

// NextRun computes when the job is next due after a successful run that
// finished at the given instant. One-shot schedules return nil: the job is
// deactivated instead of rescheduled.
func (s Schedule) NextRun(from time.Time) (*time.Time, error) {
	switch s.Kind {
	case ScheduleOnce:
		return nil, nil
	case ScheduleInterval:
		if s.IntervalMinutes <= 0 {
			return nil, fmt.Errorf("interval schedule requires interval_minutes > 0, got %d", s.IntervalMinutes)
		}
		next := from.Add(time.Duration(s.IntervalMinutes) * time.Minute)
		return &next, nil
	case ScheduleCron:
		spec, err := cron.ParseStandard(CadenceExpression(s.Expression))
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", s.Expression, err)
		}
		next := spec.Next(from)
		return &next, nil
	default:
		return nil, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// Validate checks the descriptor is well-formed.
func (s Schedule) Validate() []FieldError {
	var errs []FieldError

	switch s.Kind {
	case ScheduleOnce:
	case ScheduleInterval:
		if s.IntervalMinutes <= 0 {
			errs = append(errs, FieldError{Field: "schedule.interval_minutes", Message: "interval_minutes must be > 0"})
		}
	case ScheduleCron:
		if s.Expression == "" {
			errs = append(errs, FieldError{Field: "schedule.expression", Message: "cron schedule requires an expression"})
		} else if _, err := cron.ParseStandard(CadenceExpression(s.Expression)); err != nil {
			errs = append(errs, FieldError{Field: "schedule.expression", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	default:
		errs = append(errs, FieldError{Field: "schedule.kind", Message: fmt.Sprintf("unknown schedule kind %q", s.Kind)})
	}

	return errs
}
