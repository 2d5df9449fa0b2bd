package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"committeeDashboard/internal/viewmodel"
)

// DescriptionLimit is the card description length.
const DescriptionLimit = 120

// Date and time layouts used on cards.
const (
	LayoutDateTime  = "Jan 2, 2006 3:04 PM"
	LayoutClock     = "3:04 PM"
	LayoutDate      = "Jan 2, 2006"
	LayoutShortDate = "Jan 2"
	LayoutLongDate  = "January 2, 2006"
	LayoutDayTitle  = "Monday, January 2"
)

// TimeRange formats a meeting as "Jan 2, 2006 3:04 PM - 4:04 PM" in loc.
func TimeRange(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).Format(LayoutDateTime) + " - " + end.In(loc).Format(LayoutClock)
}

// ClockRange formats "3:04 PM - 4:04 PM" in loc.
func ClockRange(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).Format(LayoutClock) + " - " + end.In(loc).Format(LayoutClock)
}

// LocationText is the link or "Virtual Meeting" for virtual meetings and
// the location or "Not specified" otherwise.
func LocationText(m viewmodel.MeetingRecord) string {
	if m.IsVirtual {
		if m.MeetingLink != "" {
			return m.MeetingLink
		}
		return "Virtual Meeting"
	}
	if m.Location != "" {
		return m.Location
	}
	return "Not specified"
}

// Description returns s, or the placeholder for an empty one.
func Description(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No description provided"
	}
	return s
}

// Truncate shortens s to at most limit runes, ending in "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// AttendeesText is "N attendees".
func AttendeesText(n int) string {
	return fmt.Sprintf("%d attendees", n)
}

// DueText formats an optional due date.
func DueText(due *time.Time, loc *time.Location) string {
	if due == nil {
		return "No due date"
	}
	if loc == nil {
		loc = time.UTC
	}
	return "Due " + due.In(loc).Format(LayoutDate)
}
