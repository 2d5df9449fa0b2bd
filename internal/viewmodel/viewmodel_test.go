package viewmodel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/dataservice/sqlstore"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:vm_%s?mode=memory&cache=shared&_foreign_keys=on", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlstore.NewSQL(db, sqlstore.SQLite, nil)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func insert(t *testing.T, s dataservice.Service, entity string, row dataservice.Row) string {
	t.Helper()
	stored, err := s.Insert(context.Background(), entity, row)
	require.NoError(t, err)
	id, _ := stored["id"].(string)
	return id
}

func TestFlattenShapes(t *testing.T) {
	exps := []Expansion{
		toOne("organizer", "profiles", "organizer_id"),
		count("attendee_count", "meeting_attendees", "meeting_id"),
		joinedPeople("assignees", "action_item_assignees", "action_item_id"),
	}

	row := dataservice.Row{
		"id":             "m1",
		"organizer":      nil,
		"attendee_count": []dataservice.Row{},
		"assignees": []dataservice.Row{
			{"profile_id": "p1", "profile": dataservice.Row{"id": "p1", "name": "Ada"}},
			{"profile_id": "p2", "profile": nil},
		},
	}
	flat := Flatten(row, exps)

	assert.Nil(t, flat["organizer"])
	assert.Equal(t, 0, flat["attendee_count"])
	assert.Equal(t, []dataservice.Row{{"id": "p1", "name": "Ada"}}, flat["assignees"])
	assert.IsType(t, []dataservice.Row{}, row["attendee_count"], "input row is not modified")

	flat = Flatten(dataservice.Row{"attendee_count": []dataservice.Row{{"count": int64(4)}}}, exps)
	assert.Equal(t, 4, flat["attendee_count"])
	assert.Equal(t, []dataservice.Row{}, flat["assignees"])
}

func TestSpecEntitiesAndCacheKey(t *testing.T) {
	spec := ActionItemsSpec(5)
	assert.Equal(t, []string{"action_item_assignees", "action_items", "meetings", "profiles"}, spec.Entities())
	assert.Equal(t, "qc:action_items|actionItems|u1", spec.CacheKey("u1"))
}

func TestMeetingsFetcherIsIdempotent(t *testing.T) {
	s := newStore(t)
	ada := insert(t, s, "profiles", dataservice.Row{"name": "Ada", "email": "ada@example.org"})
	bob := insert(t, s, "profiles", dataservice.Row{"name": "Bob", "email": "bob@example.org"})
	committee := insert(t, s, "committees", dataservice.Row{"name": "Finance"})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := insert(t, s, "meetings", dataservice.Row{
		"title": "Budget", "start_time": start, "end_time": start.Add(time.Hour),
		"organizer_id": ada, "committee_id": committee,
	})
	insert(t, s, "meetings", dataservice.Row{"title": "Later", "start_time": start.Add(48 * time.Hour), "end_time": start.Add(49 * time.Hour)})
	insert(t, s, "meeting_attendees", dataservice.Row{"meeting_id": first, "profile_id": ada, "status": "accepted"})
	insert(t, s, "meeting_attendees", dataservice.Row{"meeting_id": first, "profile_id": bob, "status": "pending"})

	f := NewFetcher(s, MeetingsSpec(), DecodeMeeting)
	got, err := f.Fetch(context.Background())
	require.NoError(t, err)
	again, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, again)

	require.Len(t, got, 2)
	assert.Equal(t, "Budget", got[0].Title)
	require.NotNil(t, got[0].Organizer)
	assert.Equal(t, "Ada", got[0].Organizer.Name)
	assert.Equal(t, "Finance", got[0].CommitteeName)
	assert.Equal(t, 2, got[0].AttendeeCount)
	assert.Equal(t, time.Hour, got[0].Duration())

	assert.Equal(t, "Later", got[1].Title)
	assert.Nil(t, got[1].Organizer)
	assert.Equal(t, 0, got[1].AttendeeCount)
}

func TestMeetingDetailAndCommittees(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ada := insert(t, s, "profiles", dataservice.Row{"name": "Ada", "email": "ada@example.org"})
	bob := insert(t, s, "profiles", dataservice.Row{"name": "Bob", "email": "bob@example.org"})
	committee := insert(t, s, "committees", dataservice.Row{"name": "Finance", "chair_id": ada})
	insert(t, s, "committee_members", dataservice.Row{"committee_id": committee, "profile_id": ada})
	insert(t, s, "committee_members", dataservice.Row{"committee_id": committee, "profile_id": bob})
	insert(t, s, "committees", dataservice.Row{"name": "Audit"})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	meeting := insert(t, s, "meetings", dataservice.Row{"title": "Budget", "start_time": start, "end_time": start.Add(time.Hour)})
	insert(t, s, "meeting_attendees", dataservice.Row{"meeting_id": meeting, "profile_id": bob, "status": "declined"})
	insert(t, s, "agenda_items", dataservice.Row{"meeting_id": meeting, "title": "Second", "order_index": 2})
	insert(t, s, "agenda_items", dataservice.Row{"meeting_id": meeting, "title": "First", "order_index": 1})

	detail, err := FetchOne[MeetingDetailRecord](ctx, NewFetcher(s, MeetingDetailSpec(meeting), DecodeMeetingDetail))
	require.NoError(t, err)
	require.Len(t, detail.Attendees, 1)
	assert.Equal(t, "Bob", detail.Attendees[0].Person.Name)
	assert.Equal(t, "declined", detail.Attendees[0].Status)
	require.Len(t, detail.Agenda, 2)
	assert.Equal(t, "First", detail.Agenda[0].Title)
	assert.Empty(t, detail.Documents)

	_, err = FetchOne[MeetingDetailRecord](ctx, NewFetcher(s, MeetingDetailSpec("missing"), DecodeMeetingDetail))
	assert.True(t, dataservice.IsNotFound(err))

	committees, err := NewFetcher(s, CommitteesSpec(), DecodeCommittee).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, committees, 2)
	assert.Equal(t, "Audit", committees[0].Name)
	assert.Nil(t, committees[0].Chair)
	assert.Equal(t, 0, committees[0].MemberCount)
	assert.Equal(t, []PersonRef{}, committees[0].Members)
	assert.Equal(t, "Finance", committees[1].Name)
	assert.Equal(t, 2, committees[1].MemberCount)
	assert.Len(t, committees[1].Members, 2)
}

type stubFetcher struct {
	calls   atomic.Int32
	records []string
	err     error
}

func (f *stubFetcher) Fetch(context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.records, f.err
}

func TestViewDiscardsStaleResponses(t *testing.T) {
	v := NewView[string]("meetings", &stubFetcher{}, nil)

	older := v.Begin()
	newer := v.Begin()
	assert.Equal(t, Loading, v.State().Status)

	assert.True(t, v.Apply(newer, []string{"new"}, nil))
	assert.False(t, v.Apply(older, []string{"old"}, nil))

	st := v.State()
	assert.Equal(t, Loaded, st.Status)
	assert.Equal(t, newer, st.RequestID)
	assert.Equal(t, []string{"new"}, st.Records)
}

func TestViewFailureKeepsRecords(t *testing.T) {
	f := &stubFetcher{records: []string{"a", "b"}}
	v := NewView[string]("documents", f, nil)

	st, applied := v.Refetch(context.Background())
	require.True(t, applied)
	assert.Equal(t, []string{"a", "b"}, st.Records)

	f.err = errors.New("connection refused")
	st, applied = v.Refetch(context.Background())
	require.True(t, applied)
	assert.Equal(t, Failed, st.Status)
	assert.Equal(t, []string{"a", "b"}, st.Records)

	snap := v.Snapshot()
	assert.Equal(t, "error", snap.State)
	assert.Equal(t, "connection refused", snap.Error)
	assert.Equal(t, 2, snap.Count)
}

func TestViewIgnoresResponsesAfterClose(t *testing.T) {
	v := NewView[string]("committees", &stubFetcher{}, nil)
	id := v.Begin()
	v.Close()

	assert.False(t, v.Apply(id, []string{"late"}, nil))
	assert.Empty(t, v.State().Records)

	snap := v.Snapshot()
	assert.True(t, snap.Loading())
	assert.Equal(t, []string{}, snap.Records)
}

func TestViewEntitiesFromSpec(t *testing.T) {
	s := newStore(t)
	v := NewView[DocumentRecord]("documents", NewFetcher(s, DocumentsSpec(0), DecodeDocument), nil)
	assert.Equal(t, []string{"documents", "meetings", "profiles"}, v.Entities())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	v := NewView[string]("meetings", &stubFetcher{}, nil)

	token := r.Mount("u1", v)
	got, ok := r.Lookup(token, "u1")
	require.True(t, ok)
	assert.Equal(t, "meetings", got.Name())

	_, ok = r.Lookup(token, "u2")
	assert.False(t, ok, "other users cannot reach the view")

	r.Unmount(token, "u1")
	_, ok = r.Lookup(token, "u1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	id := v.Begin()
	assert.False(t, v.Apply(id, []string{"x"}, nil), "unmounted view is closed")
}

func TestRegistryUnmountOwner(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	r.Mount("u1", NewView[string]("a", &stubFetcher{}, nil))
	r.Mount("u1", NewView[string]("b", &stubFetcher{}, nil))
	keep := r.Mount("u2", NewView[string]("c", &stubFetcher{}, nil))

	assert.Equal(t, 2, r.UnmountOwner("u1"))
	assert.Equal(t, 1, r.Count())
	_, ok := r.Lookup(keep, "u2")
	assert.True(t, ok)
}

func TestLocalCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute)

	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k1", []byte("one"), 0, []string{"meetings", "profiles"}))
	require.NoError(t, c.Set(ctx, "k2", []byte("two"), 0, []string{"documents"}))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, c.InvalidateEntity(ctx, "profiles"))
	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "k2")
	assert.NoError(t, err)
}

func TestCachedFetcher(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insert(t, s, "meetings", dataservice.Row{"title": "Soon", "start_time": now.Add(time.Hour), "end_time": now.Add(2 * time.Hour)})

	cache := NewLocalCache(time.Minute)
	f := NewCachedFetcher(NewFetcher(s, UpcomingMeetingsSpec(now, 5), DecodeMeeting), cache, "u1", time.Minute, nil)

	first, err := f.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	insert(t, s, "meetings", dataservice.Row{"title": "Also soon", "start_time": now.Add(3 * time.Hour), "end_time": now.Add(4 * time.Hour)})
	cached, err := f.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "served from cache")
	assert.Equal(t, "Soon", cached[0].Title)

	require.NoError(t, cache.InvalidateEntity(ctx, "meetings"))
	fresh, err := f.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestFetcherFuncMovesRelativeBound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	insert(t, s, "meetings", dataservice.Row{"title": "Standup", "start_time": nine, "end_time": nine.Add(30 * time.Minute)})

	now := nine.Add(-time.Hour)
	f := NewFetcherFunc(s, func() Spec { return UpcomingMeetingsSpec(now, 5) }, DecodeMeeting)
	v := NewView("upcomingMeetings", Fetcher[MeetingRecord](f), nil)
	assert.Equal(t, []string{"committees", "meeting_attendees", "meetings", "profiles"}, v.Entities())

	state, ok := v.Refetch(ctx)
	require.True(t, ok)
	require.Len(t, state.Records, 1)

	now = nine.Add(3 * time.Hour)
	state, ok = v.Refetch(ctx)
	require.True(t, ok)
	assert.Empty(t, state.Records, "meeting that already started is no longer upcoming")
}

func TestCacheKeyIncludesFilterValues(t *testing.T) {
	eight := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	noon := eight.Add(4 * time.Hour)

	assert.NotEqual(t, UpcomingMeetingsSpec(eight, 5).CacheKey("u1"), UpcomingMeetingsSpec(noon, 5).CacheKey("u1"))
	assert.Equal(t, UpcomingMeetingsSpec(eight, 5).CacheKey("u1"), UpcomingMeetingsSpec(eight.In(time.FixedZone("X", 3600)), 5).CacheKey("u1"))
	assert.Equal(t,
		"qc:meetings|weekMeetings|u1|start_time.gte=2026-03-02T08:00:00Z|start_time.lt=2026-03-02T12:00:00Z",
		WeekMeetingsSpec(eight, noon).CacheKey("u1"))
}

func TestCachedFetcherFollowsMovingBound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	insert(t, s, "meetings", dataservice.Row{"title": "Standup", "start_time": nine, "end_time": nine.Add(30 * time.Minute)})

	now := nine.Add(-time.Hour)
	cache := NewLocalCache(time.Minute)
	f := NewCachedFetcher(NewFetcherFunc(s, func() Spec { return UpcomingMeetingsSpec(now, 5) }, DecodeMeeting), cache, "u1", time.Minute, nil)

	first, err := f.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	now = nine.Add(3 * time.Hour)
	later, err := f.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, later, "a later bound does not reuse the earlier entry")
}
