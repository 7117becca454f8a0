package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression represents a parsed cron expression.
// Supports standard 5-field format: minute hour day-of-month month day-of-week
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 2 * * *"    - every day at 02:00
//   - "30 18 * * 1-5" - weekdays at 18:30
//   - "0 0 * * 0"    - every Sunday at midnight
//
// When both day-of-month and day-of-week are restricted, a time matches if
// either one matches, as in classic cron.
type CronExpression struct {
	raw      string
	minutes  bitset // 0-59
	hours    bitset // 0-23
	days     bitset // 1-31
	months   bitset // 1-12
	weekdays bitset // 0-6 (0 = Sunday, 7 is accepted as Sunday)

	daysStar     bool
	weekdaysStar bool
}

// bitset holds the allowed values of one field.
type bitset uint64

func (b bitset) has(v int) bool { return b&(1<<uint(v)) != 0 }

func (b *bitset) set(v int) { *b |= 1 << uint(v) }

type fieldSpec struct {
	name     string
	min, max int
}

var (
	minuteField  = fieldSpec{"minute", 0, 59}
	hourField    = fieldSpec{"hour", 0, 23}
	dayField     = fieldSpec{"day-of-month", 1, 31}
	monthField   = fieldSpec{"month", 1, 12}
	weekdayField = fieldSpec{"day-of-week", 0, 7}
)

// fieldNames maps three-letter names to values, starting at the field minimum.
var fieldNames = map[string][]string{
	monthField.name:   {"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"},
	weekdayField.name: {"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"},
}

// ParseCronExpression parses a cron expression string.
// Format: minute hour day-of-month month day-of-week
// Supports: *, */n, n, n-m, n-m/s, n/s and comma-separated lists of those.
// Month and day-of-week also accept names (JAN-DEC, SUN-SAT, any case).
// Every value must be inside its field's range; nothing is silently dropped.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{
		raw:          strings.Join(fields, " "),
		daysStar:     fields[2] == "*",
		weekdaysStar: fields[4] == "*",
	}

	specs := []struct {
		spec fieldSpec
		dst  *bitset
	}{
		{minuteField, &ce.minutes},
		{hourField, &ce.hours},
		{dayField, &ce.days},
		{monthField, &ce.months},
		{weekdayField, &ce.weekdays},
	}
	for i, s := range specs {
		b, err := parseField(fields[i], s.spec)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", s.spec.name, err)
		}
		*s.dst = b
	}

	// 7 is an alias for Sunday.
	if ce.weekdays.has(7) {
		ce.weekdays.set(0)
	}

	return ce, nil
}

// parseField parses a single cron field: a comma-separated list of parts.
func parseField(field string, spec fieldSpec) (bitset, error) {
	var result bitset
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty list element in %q", field)
		}
		if err := parsePart(part, spec, &result); err != nil {
			return 0, err
		}
	}
	return result, nil
}

func parsePart(part string, spec fieldSpec, result *bitset) error {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")

	step := 1
	if hasStep {
		s, err := strconv.Atoi(stepPart)
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step value: %q", stepPart)
		}
		step = s
	}

	var start, end int
	switch {
	case rangePart == "*":
		start, end = spec.min, spec.max
		if spec == weekdayField {
			end = 6
		}
	case strings.Contains(rangePart, "-"):
		lo, hi, _ := strings.Cut(rangePart, "-")
		var err error
		if start, err = parseValue(lo, spec); err != nil {
			return err
		}
		if end, err = parseValue(hi, spec); err != nil {
			return err
		}
		if start > end {
			return fmt.Errorf("invalid range %q: start after end", rangePart)
		}
	default:
		v, err := parseValue(rangePart, spec)
		if err != nil {
			return err
		}
		start, end = v, v
		if hasStep {
			end = spec.max
		}
	}

	for i := start; i <= end; i += step {
		result.set(i)
	}
	return nil
}

func parseValue(s string, spec fieldSpec) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		i := indexOfName(fieldNames[spec.name], s)
		if i < 0 {
			return 0, fmt.Errorf("invalid value: %q", s)
		}
		return spec.min + i, nil
	}
	if v < spec.min || v > spec.max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", spec.min, spec.max, v)
	}
	return v, nil
}

func indexOfName(names []string, s string) int {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i
		}
	}
	return -1
}

// String returns the normalized cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next calculates the next time the cron expression matches strictly after
// the given time, in the location of after. Returns the zero time when
// nothing matches within five years (e.g. "0 0 30 2 *").
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !ce.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !ce.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := ce.days.has(t.Day())
	dow := ce.weekdays.has(int(t.Weekday()))
	switch {
	case ce.daysStar && ce.weekdaysStar:
		return true
	case ce.daysStar:
		return dow
	case ce.weekdaysStar:
		return dom
	default:
		return dom || dow
	}
}

// Common cron expression presets.
const (
	EveryMinute      = "* * * * *"
	Every15Minutes   = "*/15 * * * *"
	EveryHour        = "0 * * * *"
	EveryDayMidnight = "0 0 * * *"
	EverySunday      = "0 0 * * 0"
)

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}
