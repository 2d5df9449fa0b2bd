package mutation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format of date inputs.
const DateLayout = "2006-01-02"

// ParseDate reads a date input as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// ParseClock reads an "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return hour, minute, nil
}

// ComposeLocal sets the hour and minute of day's calendar date in day's
// own location. Seconds and below are zero.
func ComposeLocal(day time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, day.Location()), nil
}

// Span composes a start and end on the same date and requires end > start.
func Span(day time.Time, startClock, endClock string) (start, end time.Time, err error) {
	start, err = ComposeLocal(day, startClock)
	if err != nil {
		return time.Time{}, time.Time{}, Invalid("start_time", "Start and end time are required")
	}
	end, err = ComposeLocal(day, endClock)
	if err != nil {
		return time.Time{}, time.Time{}, Invalid("end_time", "Start and end time are required")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, Invalid("end_time", "End time must be after start time")
	}
	return start, end, nil
}

// LoadZone resolves a browser zone name, falling back to def.
func LoadZone(name string, def *time.Location) *time.Location {
	if def == nil {
		def = time.UTC
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return def
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return def
	}
	return loc
}
