package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/viewmodel"
)

func TestMeetingBadges(t *testing.T) {
	want := map[string]string{
		"scheduled":   "bg-blue-100 text-blue-800 hover:bg-blue-200",
		"in_progress": "bg-green-100 text-green-800 hover:bg-green-200",
		"completed":   "bg-gray-100 text-gray-800 hover:bg-gray-200",
		"cancelled":   "bg-red-100 text-red-800 hover:bg-red-200",
	}
	for status, class := range want {
		assert.Equal(t, class, MeetingBadges.Class(status), status)
	}
	assert.Equal(t, DefaultBadgeClass, MeetingBadges.Class("postponed"))
	assert.Equal(t, DefaultBadgeClass, MeetingBadges.Class(""))
}

func TestStatusBadge(t *testing.T) {
	assert.Equal(t, Badge{Label: "in progress", Class: ActionItemBadges["in_progress"]}, StatusBadge("action", "in_progress"))
	assert.Equal(t, Badge{Label: "tentative", Class: AttendanceBadges["tentative"]}, StatusBadge("attendance", "tentative"))
	assert.Equal(t, DefaultBadgeClass, StatusBadge("nope", "scheduled").Class)
	assert.Equal(t, "a b_c", StatusLabel("a_b_c"))
}

func TestAvatarInitial(t *testing.T) {
	assert.Equal(t, "A", AvatarInitial("ada Lovelace"))
	assert.Equal(t, "É", AvatarInitial(" élodie"))
	assert.Equal(t, "?", AvatarInitial(""))
	assert.Nil(t, AvatarFor(nil))
	assert.Equal(t, &Avatar{Name: "bob", Src: "x.png", Initial: "B"}, AvatarFor(&viewmodel.PersonRef{Name: "bob", Avatar: "x.png"}))
}

func TestStack(t *testing.T) {
	people := make([]viewmodel.PersonRef, 7)
	for i := range people {
		people[i] = viewmodel.PersonRef{Name: string(rune('a' + i))}
	}
	s := Stack(people, 5)
	assert.Len(t, s.Avatars, 5)
	assert.Equal(t, "+2", s.MoreLabel())

	s = Stack(people[:3], 5)
	assert.Len(t, s.Avatars, 3)
	assert.Equal(t, "", s.MoreLabel())
}

func TestNewListLoadingDoesNotExposeRecords(t *testing.T) {
	snap := viewmodel.Snapshot{Status: viewmodel.Loading, Records: []string{"stale"}, Count: 1}
	for kind, n := range map[Kind]int{KindMeetings: 3, KindDocuments: 6, KindActionItems: 5, KindCommittees: 3} {
		l := NewList(kind, snap)
		assert.True(t, l.Loading())
		assert.Len(t, l.Skeletons, n, kind)
		assert.Nil(t, l.Records)
		assert.Zero(t, l.Count)
	}
}

func TestNewListEmptyAndLoaded(t *testing.T) {
	l := NewList(KindMeetings, viewmodel.Snapshot{Status: viewmodel.Loaded, Records: []viewmodel.MeetingRecord{}})
	assert.True(t, l.IsEmpty())
	assert.Empty(t, l.Error)
	assert.Equal(t, "No meetings found", l.Empty.Title)
	assert.Equal(t, "Schedule Meeting", l.Empty.Action)

	l = NewList(KindDocuments, viewmodel.Snapshot{Status: viewmodel.Failed})
	assert.True(t, l.IsEmpty())
	assert.NotEmpty(t, l.Error)

	records := []viewmodel.DocumentRecord{{ID: "d1"}}
	l = NewList(KindDocuments, viewmodel.Snapshot{Status: viewmodel.Failed, Records: records, Count: 1})
	assert.Equal(t, StateLoaded, l.State)
	assert.Equal(t, records, l.Records)
	assert.NotEmpty(t, l.Error)
}

func TestFormats(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	zone := time.FixedZone("UTC-5", -5*3600)
	assert.Equal(t, "Mar 2, 2026 9:00 AM - 10:30 AM", TimeRange(start, start.Add(90*time.Minute), zone))

	assert.Equal(t, "Virtual Meeting", LocationText(viewmodel.MeetingRecord{IsVirtual: true}))
	assert.Equal(t, "https://x", LocationText(viewmodel.MeetingRecord{IsVirtual: true, MeetingLink: "https://x"}))
	assert.Equal(t, "Not specified", LocationText(viewmodel.MeetingRecord{}))
	assert.Equal(t, "Room 1", LocationText(viewmodel.MeetingRecord{Location: "Room 1"}))

	assert.Equal(t, "No description provided", Description(" "))
	long := strings.Repeat("é", 130)
	out := Truncate(long, DescriptionLimit)
	assert.Equal(t, 120, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, "short", Truncate("short", DescriptionLimit))

	assert.Equal(t, "0 attendees", AttendeesText(0))
	assert.Equal(t, "No due date", DueText(nil, nil))
}

func TestWeekStartsMonday(t *testing.T) {
	// Thursday
	now := time.Date(2026, 10, 15, 11, 0, 0, 0, time.UTC)
	meetings := []viewmodel.MeetingRecord{
		{ID: "mon", StartTime: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)},
		{ID: "thu", StartTime: time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC)},
		{ID: "next", StartTime: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
	}
	days := Week(meetings, now, time.UTC)
	require.Len(t, days, 7)
	assert.Equal(t, time.Monday, days[0].Date.Weekday())
	assert.Equal(t, 12, days[0].Number)
	assert.Equal(t, "mon", days[0].Meetings[0].ID)
	assert.True(t, days[3].IsToday)
	assert.Equal(t, "Today", days[3].Title)
	assert.Equal(t, "Friday, October 16", days[4].Title)
	assert.Equal(t, "thu", days[3].Meetings[0].ID)
	for _, d := range days {
		for _, m := range d.Meetings {
			assert.NotEqual(t, "next", m.ID)
		}
	}

	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, WeekStart(sunday).Day())
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 10, 15, 11, 0, 0, 0, time.UTC)
	week := []viewmodel.MeetingRecord{
		{StartTime: now.Add(-48 * time.Hour), EndTime: now.Add(-47 * time.Hour), Status: "completed"},
		{StartTime: now.Add(time.Hour), EndTime: now.Add(90 * time.Minute), Status: "scheduled"},
		{StartTime: now.Add(2 * time.Hour), EndTime: now.Add(3 * time.Hour), Status: "cancelled"},
	}
	items := []viewmodel.ActionItemRecord{{Status: "pending"}, {Status: "completed"}, {Status: "in_progress"}}

	s := ComputeStats(week, items, 4, now)
	assert.Equal(t, Stats{UpcomingThisWeek: 1, PendingActions: 1, MeetingHours: 1.5, Documents: 4}, s)
	assert.Equal(t, "1.5", s.HoursLabel())

	assert.Equal(t, 33, CompletionRate(items))
	assert.Equal(t, 0, CompletionRate(nil))
}
