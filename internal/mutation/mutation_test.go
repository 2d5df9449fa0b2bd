package mutation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/dataservice/sqlstore"
	"committeeDashboard/internal/invites"
)

type fakeService struct {
	inserts   []string
	updates   []dataservice.Row
	insertErr error
	updateErr error
}

func (s *fakeService) Select(context.Context, dataservice.Query) ([]dataservice.Row, error) {
	return nil, nil
}

func (s *fakeService) Insert(_ context.Context, entity string, row dataservice.Row) (dataservice.Row, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.inserts = append(s.inserts, entity)
	out := dataservice.Row{"id": fmt.Sprintf("%s-%d", entity, len(s.inserts))}
	for k, v := range row {
		out[k] = v
	}
	return out, nil
}

func (s *fakeService) Update(_ context.Context, _ string, _ string, patch dataservice.Row) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, patch)
	return nil
}

type fakeStorage struct {
	objects map[string]string
	err     error
}

func (s *fakeStorage) Upload(_ context.Context, bucket, path string, body io.Reader) error {
	if s.err != nil {
		return s.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string]string{}
	}
	s.objects[bucket+"/"+path] = string(b)
	return nil
}

func (s *fakeStorage) PublicURL(bucket, path string) string {
	return "http://files.test/storage/" + bucket + "/" + path
}

type fakeInviter struct {
	sent []invites.Invitation
}

func (f *fakeInviter) Invite(_ context.Context, inv invites.Invitation) error {
	f.sent = append(f.sent, inv)
	return nil
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:mut_%s?mode=memory&cache=shared&_foreign_keys=on", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlstore.NewSQL(db, sqlstore.SQLite, nil)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func countRows(t *testing.T, s dataservice.Service, entity string) int {
	t.Helper()
	rows, err := s.Select(context.Background(), dataservice.Query{Entity: entity})
	require.NoError(t, err)
	return len(rows)
}

var fixedNow = time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

func newForms(svc dataservice.Service, st dataservice.Storage, inv invites.Inviter) *Forms {
	return NewForms(svc, st, inv, nil).WithClock(func() time.Time { return fixedNow })
}

func TestComposeLocalKeepsCalendarDate(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	day, err := ParseDate("2026-03-02", zone)
	require.NoError(t, err)

	start, end, err := Span(day, "09:00", "10:00")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, end.Sub(start))
	for _, ts := range []time.Time{start, end} {
		y, m, d := ts.In(zone).Date()
		assert.Equal(t, []int{2026, 3, 2}, []int{y, int(m), d})
		assert.Equal(t, 0, ts.Second())
	}
	assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), start.UTC())
}

func TestSpanRejectsEndNotAfterStart(t *testing.T) {
	day, _ := ParseDate("2026-03-02", time.UTC)
	for _, tc := range [][2]string{{"10:00", "10:00"}, {"10:00", "09:59"}} {
		_, _, err := Span(day, tc[0], tc[1])
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "End time must be after start time", ve.Description)
	}

	_, _, err := Span(day, "25:00", "26:00")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 07:05 ")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "7", "07:60", "aa:bb"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestScheduleMeetingBlocksInvertedTimes(t *testing.T) {
	svc := &fakeService{}
	var notes Collector
	calls := 0

	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).ScheduleMeeting(ScheduleMeetingInput{
		Title: "Budget", Date: "2026-03-02", StartTime: "10:00", EndTime: "09:00", OrganizerID: "p1", Zone: time.UTC,
	}), &notes, func() { calls++ })

	assert.False(t, res.Closed)
	assert.Empty(t, svc.inserts)
	assert.Zero(t, calls)
	require.Len(t, notes.Notifications(), 1)
	assert.Equal(t, "End time must be after start time", notes.Notifications()[0].Description)
	assert.Equal(t, VariantDestructive, notes.Notifications()[0].Variant)
}

func TestScheduleMeetingMissingFields(t *testing.T) {
	svc := &fakeService{}
	var notes Collector
	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).ScheduleMeeting(ScheduleMeetingInput{
		Title: "  ", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00",
	}), &notes, nil)

	assert.False(t, res.Closed)
	assert.Empty(t, svc.inserts)
	assert.Equal(t, []Notification{{Title: "Missing information", Description: "Please fill in all required fields", Variant: VariantDestructive}}, notes.Notifications())
}

func TestScheduleMeetingRequiresSignIn(t *testing.T) {
	svc := &fakeService{}
	var notes Collector
	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).ScheduleMeeting(ScheduleMeetingInput{
		Title: "Budget", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00",
	}), &notes, nil)

	assert.False(t, res.Closed)
	assert.Empty(t, svc.inserts)
	assert.Equal(t, "You must be logged in to schedule meetings", notes.Notifications()[0].Description)
}

func TestScheduleMeetingWritesAttendeesAndInvites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	ada, err := store.Insert(ctx, "profiles", dataservice.Row{"name": "Ada", "email": "ada@example.org"})
	require.NoError(t, err)
	organizer, err := store.Insert(ctx, "profiles", dataservice.Row{"name": "Org", "email": "org@example.org"})
	require.NoError(t, err)

	inviter := &fakeInviter{}
	var notes Collector
	calls := 0
	zone := time.FixedZone("UTC+2", 2*3600)

	res := NewPipeline(nil).Submit(ctx, newForms(store, nil, inviter).ScheduleMeeting(ScheduleMeetingInput{
		Title:       "Budget review",
		Date:        "2026-03-02",
		StartTime:   "09:00",
		EndTime:     "10:00",
		Location:    "https://meet.example.org/budget",
		IsVirtual:   true,
		Attendees:   "ADA@example.org, nobody, stranger@example.org",
		Zone:        zone,
		OrganizerID: organizer["id"].(string),
	}), &notes, func() { calls++ })

	require.True(t, res.Closed, "%v", res.Err)
	assert.Equal(t, 1, calls)

	meetings, err := store.Select(ctx, dataservice.Query{Entity: "meetings", Filters: []dataservice.Filter{dataservice.Eq("id", res.Change.ID)}})
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	m := meetings[0]
	assert.Nil(t, m["location"])
	assert.Equal(t, "https://meet.example.org/budget", m["meeting_link"])
	assert.Equal(t, "scheduled", m["status"])
	assert.True(t, m["start_time"].(time.Time).Equal(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)))

	attendees, err := store.Select(ctx, dataservice.Query{Entity: "meeting_attendees", Columns: []string{"profile_id", "status"}})
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, ada["id"], attendees[0]["profile_id"])
	assert.Equal(t, "pending", attendees[0]["status"])

	require.Len(t, inviter.sent, 1)
	assert.Equal(t, []string{"ADA@example.org", "stranger@example.org"}, inviter.sent[0].Emails)

	got := notes.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "Meeting scheduled. Invitations would be sent to 2 attendee(s).", got[0].Description)
	assert.Equal(t, "Meeting scheduled successfully", got[1].Description)
}

func TestEditMeetingValidationOrder(t *testing.T) {
	forms := newForms(&fakeService{}, nil, nil)
	cases := []struct {
		in   EditMeetingInput
		want string
	}{
		{EditMeetingInput{Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00"}, "Meeting title is required"},
		{EditMeetingInput{Title: "x", StartTime: "09:00", EndTime: "10:00"}, "Meeting date is required"},
		{EditMeetingInput{Title: "x", Date: "2026-03-02", StartTime: "09:00"}, "Start and end time are required"},
		{EditMeetingInput{Title: "x", Date: "2026-03-02", StartTime: "11:00", EndTime: "10:00", Status: "scheduled"}, "End time must be after start time"},
	}
	for _, tc := range cases {
		err := forms.EditMeeting(tc.in).Validate()
		require.Error(t, err)
		assert.Equal(t, tc.want, err.Error())
	}
}

func TestEditMeetingPatch(t *testing.T) {
	svc := &fakeService{}
	var notes Collector
	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).EditMeeting(EditMeetingInput{
		ID: "m1", Title: "Budget", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:30",
		Location: "Room 4", Status: "completed", Zone: time.UTC,
	}), &notes, nil)

	require.True(t, res.Closed)
	require.Len(t, svc.updates, 1)
	patch := svc.updates[0]
	assert.Nil(t, patch["description"])
	assert.Equal(t, "Room 4", patch["location"])
	assert.Nil(t, patch["meeting_link"])
	assert.Nil(t, patch["committee_id"])
	assert.Equal(t, "completed", patch["status"])
	assert.Equal(t, "Meeting updated successfully", notes.Notifications()[0].Description)

	res = NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).EditMeeting(EditMeetingInput{
		ID: "m1", Title: "Budget", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:30", Status: "scheduled", Zone: time.UTC,
	}), &Collector{}, nil)
	require.True(t, res.Closed)
	require.Len(t, svc.updates, 2)
	assert.Nil(t, svc.updates[1]["location"], "empty location is stored as null, as on scheduling")
	assert.Nil(t, svc.updates[1]["meeting_link"])

	svc.updateErr = dataservice.Wrap(dataservice.KindNotFound, "no meetings row", nil)
	notes = Collector{}
	res = NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).EditMeeting(EditMeetingInput{
		ID: "gone", Title: "Budget", Date: "2026-03-02", StartTime: "09:00", EndTime: "10:30", Status: "scheduled",
	}), &notes, nil)
	assert.False(t, res.Closed)
	assert.Equal(t, "Meeting not found", notes.Notifications()[0].Description)
}

func TestUploadDocumentSuccess(t *testing.T) {
	svc := &fakeService{}
	st := &fakeStorage{}
	var notes Collector
	calls := 0

	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, st, nil).UploadDocument(UploadDocumentInput{
		Title: "Minutes", FileName: "minutes.final.pdf", File: strings.NewReader("%PDF"), UploaderID: "p1",
	}), &notes, func() { calls++ })

	require.True(t, res.Closed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"documents"}, svc.inserts)
	assert.Equal(t, []Notification{{Title: "Success", Description: "Document uploaded successfully.", Variant: VariantDefault}}, notes.Notifications())

	require.Len(t, st.objects, 1)
	for key, body := range st.objects {
		assert.Regexp(t, regexp.MustCompile(`^documents/documents/[0-9a-z]{1,13}_1775835000000\.pdf$`), key)
		assert.Equal(t, "%PDF", body)
	}
}

func TestUploadDocumentFailedUploadInsertsNothing(t *testing.T) {
	svc := &fakeService{}
	var notes Collector
	calls := 0

	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, &fakeStorage{err: errors.New("bucket offline")}, nil).UploadDocument(UploadDocumentInput{
		Title: "Minutes", FileName: "minutes.pdf", File: strings.NewReader("x"),
	}), &notes, func() { calls++ })

	assert.False(t, res.Closed)
	assert.Zero(t, calls)
	assert.Empty(t, svc.inserts)
	require.Len(t, notes.Notifications(), 1)
	assert.Equal(t, "Upload failed", notes.Notifications()[0].Title)
	assert.Equal(t, "Failed to upload document", notes.Notifications()[0].Description)
}

func TestUploadDocumentInsertFailureLeavesObject(t *testing.T) {
	st := &fakeStorage{}
	var notes Collector
	res := NewPipeline(nil).Submit(context.Background(), newForms(&fakeService{insertErr: errors.New("constraint")}, st, nil).UploadDocument(UploadDocumentInput{
		Title: "Minutes", FileName: "minutes.pdf", File: strings.NewReader("x"),
	}), &notes, nil)

	assert.False(t, res.Closed)
	assert.Len(t, st.objects, 1)
	assert.Equal(t, "Upload failed", notes.Notifications()[0].Title)
}

func TestUploadDocumentValidation(t *testing.T) {
	forms := newForms(&fakeService{}, &fakeStorage{}, nil)

	err := forms.UploadDocument(UploadDocumentInput{Title: "Minutes"}).Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Missing information", ve.Title)
	assert.Equal(t, "Please provide both a title and a file.", ve.Description)

	err = forms.UploadDocument(UploadDocumentInput{Title: "Tool", FileName: "tool.exe", File: strings.NewReader("")}).Validate()
	assert.Error(t, err)
}

func TestStorageKeyWithoutExtension(t *testing.T) {
	key, err := StorageKey("../README", time.UnixMilli(42))
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-z]+_42\.README$`, key)
}

func TestCreateCommitteeIsAtomic(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	chair, err := store.Insert(ctx, "profiles", dataservice.Row{"name": "Ada", "email": "ada@example.org"})
	require.NoError(t, err)
	chairID := chair["id"].(string)

	var notes Collector
	res := NewPipeline(nil).Submit(ctx, newForms(store, nil, nil).CreateCommittee(CreateCommitteeInput{
		Name: "Finance", ChairID: chairID, MemberIDs: []string{chairID, "missing-profile"},
	}), &notes, nil)
	assert.False(t, res.Closed)
	assert.Equal(t, 0, countRows(t, store, "committees"))
	assert.Equal(t, "Failed to create committee", notes.Notifications()[0].Description)

	res = NewPipeline(nil).Submit(ctx, newForms(store, nil, nil).CreateCommittee(CreateCommitteeInput{
		Name: "Finance", ChairID: chairID, MemberIDs: []string{chairID},
	}), &Collector{}, nil)
	require.True(t, res.Closed, "%v", res.Err)
	assert.Equal(t, 1, countRows(t, store, "committee_members"))
}

func TestCreateActionItemAndStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	p, err := store.Insert(ctx, "profiles", dataservice.Row{"name": "Ada", "email": "ada@example.org"})
	require.NoError(t, err)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m, err := store.Insert(ctx, "meetings", dataservice.Row{"title": "Budget", "start_time": start, "end_time": start.Add(time.Hour)})
	require.NoError(t, err)

	forms := newForms(store, nil, nil)
	pipeline := NewPipeline(nil, NewAuditLog(store, nil))

	err = forms.CreateActionItem(CreateActionItemInput{Title: "Draft"}).Validate()
	assert.EqualError(t, err, "Please select the meeting this action item came from")

	res := pipeline.Submit(ctx, forms.CreateActionItem(CreateActionItemInput{
		Title: "Draft report", MeetingID: m["id"].(string), DueDate: "2026-03-09",
		AssigneeIDs: []string{p["id"].(string), p["id"].(string)}, Zone: time.UTC, ActorID: p["id"].(string),
	}), &Collector{}, nil)
	require.True(t, res.Closed, "%v", res.Err)
	assert.Equal(t, 1, countRows(t, store, "action_item_assignees"))

	var notes Collector
	res = pipeline.Submit(ctx, forms.UpdateActionItemStatus(res.Change.ID, "done", ""), &notes, nil)
	assert.False(t, res.Closed)
	assert.Contains(t, notes.Notifications()[0].Description, "Status must be one of")

	res = pipeline.Submit(ctx, forms.UpdateActionItemStatus(res.Change.ID, "completed", ""), &Collector{}, nil)
	assert.False(t, res.Closed, "empty id is rejected")

	items, err := store.Select(ctx, dataservice.Query{Entity: "action_items"})
	require.NoError(t, err)
	id := items[0]["id"].(string)
	res = pipeline.Submit(ctx, forms.UpdateActionItemStatus(id, "completed", ""), &Collector{}, nil)
	require.True(t, res.Closed, "%v", res.Err)

	assert.Equal(t, 2, countRows(t, store, "audit_logs"))
}

func TestUpdateProfile(t *testing.T) {
	svc := &fakeService{}
	err := newForms(svc, nil, nil).UpdateProfile(UpdateProfileInput{ID: "p1", Name: " "}).Validate()
	assert.EqualError(t, err, "Name is required")

	res := NewPipeline(nil).Submit(context.Background(), newForms(svc, nil, nil).UpdateProfile(UpdateProfileInput{ID: "p1", Name: "Ada L."}), &Collector{}, nil)
	require.True(t, res.Closed)
	assert.Equal(t, "Ada L.", svc.updates[0]["name"])
	assert.Nil(t, svc.updates[0]["department"])
}

func TestObserversSeeCommittedChanges(t *testing.T) {
	var seen []Change
	p := NewPipeline(nil, ObserverFunc(func(_ context.Context, c Change) { seen = append(seen, c) }))

	p.Submit(context.Background(), newForms(&fakeService{}, nil, nil).UpdateProfile(UpdateProfileInput{ID: "p1"}), &Collector{}, nil)
	assert.Empty(t, seen)

	p.Submit(context.Background(), newForms(&fakeService{}, nil, nil).UpdateProfile(UpdateProfileInput{ID: "p1", Name: "Ada"}), &Collector{}, nil)
	require.Len(t, seen, 1)
	assert.Equal(t, Change{Entity: "profiles", Action: "update", ID: "p1", ActorID: "p1"}, seen[0])
}

func TestSubmitTagsChangeWithOrigin(t *testing.T) {
	var seen []Change
	p := NewPipeline(nil, ObserverFunc(func(_ context.Context, c Change) { seen = append(seen, c) }))

	refreshed := 0
	ctx := WithOrigin(context.Background(), "tok-1")
	res := p.Submit(ctx, newForms(&fakeService{}, nil, nil).UpdateProfile(UpdateProfileInput{ID: "p1", Name: "Ada"}), &Collector{}, func() { refreshed++ })

	require.True(t, res.Closed)
	assert.Equal(t, 1, refreshed)
	require.Len(t, seen, 1)
	assert.Equal(t, "tok-1", seen[0].Origin)
	assert.Equal(t, "", OriginFrom(WithOrigin(context.Background(), "")))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Email("not-an-email", "email").
		URL("ftp://x", "meeting_link").
		SafeText("a\x00b", "notes")
	require.True(t, v.HasErrors())
	assert.Equal(t, "Email must be a valid email address", v.Err().Error())

	assert.NoError(t, NewValidator().Email("ada@example.org", "email").URL("https://x.org", "link").Err())
	assert.Equal(t, "a b", Sanitize("  a\x00 b\x07 "))
}
