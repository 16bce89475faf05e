// Package schedule computes deliverable run times. It is pure: every function
// takes the current time as an argument so callers control the clock.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequencies.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Cron    = "cron"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Spec describes when a deliverable should run.
type Spec struct {
	Frequency string // daily, weekly, monthly, cron
	Day       string // weekday name (weekly) or day-of-month (monthly)
	TimeOfDay string // "HH:MM", defaults to 09:00
	Timezone  string // IANA name, defaults to UTC
	CronExpr  string // 5-field expression, used when Frequency is "cron"
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Next returns the first run time strictly after now for the given spec.
func Next(s Spec, now time.Time) (time.Time, error) {
	loc, err := location(s.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	if s.Frequency == Cron {
		sched, err := cronParser.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule: parse cron %q: %w", s.CronExpr, err)
		}
		return sched.Next(local), nil
	}

	hour, minute, err := parseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	switch s.Frequency {
	case Daily:
		at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil

	case Weekly:
		wd, ok := weekdays[strings.ToLower(s.Day)]
		if !ok {
			return time.Time{}, fmt.Errorf("schedule: unknown weekday %q", s.Day)
		}
		at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		days := (int(wd) - int(at.Weekday()) + 7) % 7
		at = at.AddDate(0, 0, days)
		if !at.After(local) {
			at = at.AddDate(0, 0, 7)
		}
		return at, nil

	case Monthly:
		dom, err := strconv.Atoi(s.Day)
		if err != nil || dom < 1 || dom > 31 {
			return time.Time{}, fmt.Errorf("schedule: invalid day of month %q", s.Day)
		}
		at := monthlyAt(local.Year(), local.Month(), dom, hour, minute, loc)
		if !at.After(local) {
			at = monthlyAt(local.Year(), local.Month()+1, dom, hour, minute, loc)
		}
		return at, nil

	default:
		return time.Time{}, fmt.Errorf("schedule: unknown frequency %q", s.Frequency)
	}
}

// monthlyAt builds the run time for a given month, clamping the day of month
// to the month's length (day 31 in April runs on the 30th).
func monthlyAt(year int, month time.Month, dom, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if dom > lastDay {
		dom = lastDay
	}
	return time.Date(year, month, dom, hour, minute, 0, 0, loc)
}

// parseTimeOfDay parses "HH:MM", defaulting to 09:00 when empty.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		return 9, 0, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: invalid time of day %q", s)
	}
	return hour, minute, nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("schedule: load timezone %q: %w", name, err)
	}
	return loc, nil
}
