package render

import (
	"math"
	"strconv"
	"time"

	"committeeDashboard/internal/viewmodel"
)

// Day is one column of the week calendar.
type Day struct {
	Date     time.Time
	Weekday  string
	Number   int
	Title    string
	IsToday  bool
	Meetings []viewmodel.MeetingRecord
}

// WeekStart is midnight of the Monday on or before t, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// Week groups meetings into the seven days of now's week, Monday first.
// Each meeting lands on the local date it starts.
func Week(meetings []viewmodel.MeetingRecord, now time.Time, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	start := WeekStart(now)
	days := make([]Day, 7)
	for i := range days {
		date := start.AddDate(0, 0, i)
		today := sameDay(date, now)
		title := date.Format(LayoutDayTitle)
		if today {
			title = "Today"
		}
		days[i] = Day{
			Date:     date,
			Weekday:  date.Format("Mon"),
			Number:   date.Day(),
			Title:    title,
			IsToday:  today,
			Meetings: []viewmodel.MeetingRecord{},
		}
	}
	for _, m := range meetings {
		local := m.StartTime.In(loc)
		for i := range days {
			if sameDay(days[i].Date, local) {
				days[i].Meetings = append(days[i].Meetings, m)
				break
			}
		}
	}
	return days
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CompletionRate is the rounded percentage of completed items, 0 for none.
func CompletionRate(items []viewmodel.ActionItemRecord) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, it := range items {
		if it.Status == "completed" {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(items)) * 100))
}

// Stats are the dashboard counters.
type Stats struct {
	UpcomingThisWeek int
	PendingActions   int
	MeetingHours     float64
	Documents        int
}

// HoursLabel formats MeetingHours with one decimal at most.
func (s Stats) HoursLabel() string {
	return strconv.FormatFloat(s.MeetingHours, 'f', -1, 64)
}

// ComputeStats summarizes the week around now. Meetings are those of the
// current week; upcoming ones start at or after now.
func ComputeStats(week []viewmodel.MeetingRecord, items []viewmodel.ActionItemRecord, documents int, now time.Time) Stats {
	s := Stats{Documents: documents}
	var total time.Duration
	for _, m := range week {
		if m.Status == "cancelled" {
			continue
		}
		if !m.StartTime.Before(now) {
			s.UpcomingThisWeek++
		}
		total += m.Duration()
	}
	s.MeetingHours = math.Round(total.Hours()*10) / 10
	for _, it := range items {
		if it.Status == "pending" {
			s.PendingActions++
		}
	}
	return s
}
