package schedule

import "time"

// InQuietHours reports whether now falls inside the [start, end) quiet-hours
// window in the given timezone. Windows may wrap midnight ("22:00"–"07:00").
// An empty start or end means no quiet hours.
func InQuietHours(start, end, timezone string, now time.Time) bool {
	if start == "" || end == "" {
		return false
	}
	sh, sm, err := parseTimeOfDay(start)
	if err != nil {
		return false
	}
	eh, em, err := parseTimeOfDay(end)
	if err != nil {
		return false
	}
	loc, err := location(timezone)
	if err != nil {
		loc = time.UTC
	}

	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()
	s := sh*60 + sm
	e := eh*60 + em

	if s == e {
		return false
	}
	if s < e {
		return cur >= s && cur < e
	}
	// Wraps midnight.
	return cur >= s || cur < e
}
