package viewmodel

import (
	"fmt"
	"time"

	"committeeDashboard/internal/dataservice"
)

// PersonRef is a profile as embedded in another record.
type PersonRef struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// MeetingRecord is a meeting card.
type MeetingRecord struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Location      string     `json:"location,omitempty"`
	IsVirtual     bool       `json:"is_virtual"`
	MeetingLink   string     `json:"meeting_link,omitempty"`
	Status        string     `json:"status"`
	IsAdHoc       bool       `json:"is_ad_hoc"`
	OrganizerID   string     `json:"organizer_id,omitempty"`
	CommitteeID   string     `json:"committee_id,omitempty"`
	Organizer     *PersonRef `json:"organizer"`
	CommitteeName string     `json:"committee_name,omitempty"`
	AttendeeCount int        `json:"attendee_count"`
}

// Duration is the scheduled length of the meeting.
func (m MeetingRecord) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

// AttendeeRecord is an invited person with their response.
type AttendeeRecord struct {
	Person PersonRef `json:"profile"`
	Status string    `json:"status"`
}

// DocumentRef is a document linked from a meeting.
type DocumentRef struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AgendaItemRecord is one agenda entry of a meeting.
type AgendaItemRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"`
	OrderIndex  int    `json:"order_index"`
	Status      string `json:"status"`
}

// MeetingDetailRecord is the meeting details page.
type MeetingDetailRecord struct {
	MeetingRecord
	Attendees []AttendeeRecord   `json:"attendees"`
	Documents []DocumentRef      `json:"documents"`
	Agenda    []AgendaItemRecord `json:"agenda_items"`
}

// DocumentRecord is a document card.
type DocumentRecord struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	IsMinutes    bool       `json:"is_minutes"`
	Uploader     *PersonRef `json:"uploader"`
	MeetingID    string     `json:"meeting_id,omitempty"`
	MeetingTitle string     `json:"meeting_title,omitempty"`
}

// ActionItemRecord is an action item row.
type ActionItemRecord struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	DueDate      *time.Time  `json:"due_date"`
	Status       string      `json:"status"`
	MeetingID    string      `json:"meeting_id"`
	MeetingTitle string      `json:"meeting_title,omitempty"`
	Assignees    []PersonRef `json:"assignees"`
}

// CommitteeRecord is a committee card.
type CommitteeRecord struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Chair       *PersonRef  `json:"chair"`
	MemberCount int         `json:"member_count"`
	Members     []PersonRef `json:"members"`
}

// Option is an id/label pair for select inputs.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProfileRecord is a person as shown in settings and pickers.
type ProfileRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Avatar     string `json:"avatar,omitempty"`
	Department string `json:"department,omitempty"`
}

// DecodeMeeting builds a MeetingRecord from a flattened row.
func DecodeMeeting(row dataservice.Row) (MeetingRecord, error) {
	id, err := requireID(row)
	if err != nil {
		return MeetingRecord{}, err
	}
	start, err := timestamp(row, "start_time")
	if err != nil {
		return MeetingRecord{}, fmt.Errorf("meeting %s: %w", id, err)
	}
	end, err := timestamp(row, "end_time")
	if err != nil {
		return MeetingRecord{}, fmt.Errorf("meeting %s: %w", id, err)
	}
	rec := MeetingRecord{
		ID:            id,
		Title:         str(row, "title"),
		Description:   str(row, "description"),
		StartTime:     start,
		EndTime:       end,
		Location:      str(row, "location"),
		IsVirtual:     boolean(row, "is_virtual"),
		MeetingLink:   str(row, "meeting_link"),
		Status:        str(row, "status"),
		IsAdHoc:       boolean(row, "is_ad_hoc"),
		OrganizerID:   str(row, "organizer_id"),
		CommitteeID:   str(row, "committee_id"),
		Organizer:     person(row["organizer"]),
		AttendeeCount: integer(row, "attendee_count"),
	}
	if c := asRow(row["committee"]); c != nil {
		rec.CommitteeName = str(c, "name")
	}
	return rec, nil
}

// DecodeMeetingDetail builds a MeetingDetailRecord from a flattened row.
func DecodeMeetingDetail(row dataservice.Row) (MeetingDetailRecord, error) {
	base, err := DecodeMeeting(row)
	if err != nil {
		return MeetingDetailRecord{}, err
	}
	rec := MeetingDetailRecord{
		MeetingRecord: base,
		Attendees:     []AttendeeRecord{},
		Documents:     []DocumentRef{},
		Agenda:        []AgendaItemRecord{},
	}
	for _, a := range asRows(row["attendees"]) {
		p := person(a["profile"])
		if p == nil {
			continue
		}
		rec.Attendees = append(rec.Attendees, AttendeeRecord{Person: *p, Status: str(a, "status")})
	}
	for _, d := range asRows(row["documents"]) {
		uploaded, _ := parseTime(d["uploaded_at"])
		rec.Documents = append(rec.Documents, DocumentRef{ID: str(d, "id"), Title: str(d, "title"), URL: str(d, "url"), UploadedAt: uploaded})
	}
	for _, a := range asRows(row["agenda_items"]) {
		rec.Agenda = append(rec.Agenda, AgendaItemRecord{
			ID:          str(a, "id"),
			Title:       str(a, "title"),
			Description: str(a, "description"),
			Duration:    integer(a, "duration"),
			OrderIndex:  integer(a, "order_index"),
			Status:      str(a, "status"),
		})
	}
	return rec, nil
}

// DecodeDocument builds a DocumentRecord from a flattened row.
func DecodeDocument(row dataservice.Row) (DocumentRecord, error) {
	id, err := requireID(row)
	if err != nil {
		return DocumentRecord{}, err
	}
	uploaded, err := timestamp(row, "uploaded_at")
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("document %s: %w", id, err)
	}
	rec := DocumentRecord{
		ID:         id,
		Title:      str(row, "title"),
		URL:        str(row, "url"),
		UploadedAt: uploaded,
		IsMinutes:  boolean(row, "is_minutes"),
		Uploader:   person(row["uploader"]),
		MeetingID:  str(row, "meeting_id"),
	}
	if m := asRow(row["meeting"]); m != nil {
		rec.MeetingTitle = str(m, "title")
	}
	return rec, nil
}

// DecodeActionItem builds an ActionItemRecord from a flattened row.
func DecodeActionItem(row dataservice.Row) (ActionItemRecord, error) {
	id, err := requireID(row)
	if err != nil {
		return ActionItemRecord{}, err
	}
	rec := ActionItemRecord{
		ID:          id,
		Title:       str(row, "title"),
		Description: str(row, "description"),
		DueDate:     optTimestamp(row, "due_date"),
		Status:      str(row, "status"),
		MeetingID:   str(row, "meeting_id"),
		Assignees:   people(row["assignees"]),
	}
	if m := asRow(row["meeting"]); m != nil {
		rec.MeetingTitle = str(m, "title")
	}
	return rec, nil
}

// DecodeCommittee builds a CommitteeRecord from a flattened row.
func DecodeCommittee(row dataservice.Row) (CommitteeRecord, error) {
	id, err := requireID(row)
	if err != nil {
		return CommitteeRecord{}, err
	}
	return CommitteeRecord{
		ID:          id,
		Name:        str(row, "name"),
		Description: str(row, "description"),
		Chair:       person(row["chair"]),
		MemberCount: integer(row, "member_count"),
		Members:     people(row["members"]),
	}, nil
}

// DecodeOption builds an Option from an id/name row.
func DecodeOption(row dataservice.Row) (Option, error) {
	id, err := requireID(row)
	if err != nil {
		return Option{}, err
	}
	name := str(row, "name")
	if name == "" {
		name = str(row, "title")
	}
	return Option{ID: id, Name: name}, nil
}

// DecodeProfile builds a ProfileRecord.
func DecodeProfile(row dataservice.Row) (ProfileRecord, error) {
	id, err := requireID(row)
	if err != nil {
		return ProfileRecord{}, err
	}
	return ProfileRecord{
		ID:         id,
		Name:       str(row, "name"),
		Email:      str(row, "email"),
		Role:       str(row, "role"),
		Avatar:     str(row, "avatar"),
		Department: str(row, "department"),
	}, nil
}
