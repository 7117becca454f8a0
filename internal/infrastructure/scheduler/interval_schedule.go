package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Schedule defines when the sync cycle should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	// The zero time means the schedule never fires again.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// MinInterval is the shortest accepted "@every" interval.
const MinInterval = time.Minute

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

var descriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// ParseSchedule parses a stored schedule value. It accepts a 5-field cron
// expression, one of the @daily-style descriptors, or "@every <duration>"
// with a duration of at least MinInterval.
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)

	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d < MinInterval {
			return nil, fmt.Errorf("interval %s is shorter than %s", d, MinInterval)
		}
		return NewIntervalSchedule(d), nil
	}

	if cron, ok := descriptors[expr]; ok {
		return ParseCronExpression(cron)
	}
	if strings.HasPrefix(expr, "@") {
		return nil, fmt.Errorf("unknown schedule descriptor %q", expr)
	}

	return ParseCronExpression(expr)
}
