package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/invites"
)

// Meeting statuses.
var MeetingStatuses = []string{"scheduled", "in_progress", "completed", "cancelled"}

// ScheduleMeetingInput is the schedule dialog form.
type ScheduleMeetingInput struct {
	Title       string
	Description string
	Date        string
	StartTime   string
	EndTime     string
	Location    string
	IsVirtual   bool
	Attendees   string
	CommitteeID string
	Zone        *time.Location
	OrganizerID string
}

// AttendeeEmails splits the attendee field, keeping entries with an '@'.
func AttendeeEmails(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "@") {
			out = append(out, part)
		}
	}
	return out
}

type scheduleMeeting struct {
	f          *Forms
	in         ScheduleMeetingInput
	start, end time.Time
	emails     []string
}

// ScheduleMeeting creates an ad hoc meeting and invites its attendees.
func (f *Forms) ScheduleMeeting(in ScheduleMeetingInput) Mutation {
	in.Title = Sanitize(in.Title)
	in.Description = Sanitize(in.Description)
	in.Location = Sanitize(in.Location)
	return &scheduleMeeting{f: f, in: in}
}

func (m *scheduleMeeting) Validate() error {
	in := m.in
	if in.Title == "" || strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return &ValidationError{Title: "Missing information", Description: "Please fill in all required fields"}
	}
	if err := NewValidator().Length(in.Title, "title", 200).Err(); err != nil {
		return err
	}
	day, err := ParseDate(in.Date, in.Zone)
	if err != nil {
		return Invalid("date", "Meeting date is required")
	}
	m.start, m.end, err = Span(day, in.StartTime, in.EndTime)
	if err != nil {
		return err
	}
	m.emails = AttendeeEmails(in.Attendees)
	return nil
}

func (m *scheduleMeeting) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "meetings", Action: "create", ActorID: m.in.OrganizerID}
	if m.in.OrganizerID == "" {
		return change, &UserError{Message: "You must be logged in to schedule meetings"}
	}

	row := dataservice.Row{
		"title":        m.in.Title,
		"description":  nullable(m.in.Description),
		"start_time":   m.start,
		"end_time":     m.end,
		"is_virtual":   m.in.IsVirtual,
		"organizer_id": m.in.OrganizerID,
		"committee_id": nullable(m.in.CommitteeID),
		"is_ad_hoc":    true,
		"status":       "scheduled",
	}
	if m.in.IsVirtual {
		row["location"] = nil
		row["meeting_link"] = nullable(m.in.Location)
	} else {
		row["location"] = nullable(m.in.Location)
		row["meeting_link"] = nil
	}

	var profileIDs []string
	err := dataservice.InTransaction(ctx, m.f.svc, func(tx dataservice.Service) error {
		stored, err := tx.Insert(ctx, "meetings", row)
		if err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}
		change.ID, _ = stored["id"].(string)

		if len(m.emails) == 0 {
			return nil
		}
		emails := make([]any, len(m.emails))
		for i, e := range m.emails {
			emails[i] = strings.ToLower(e)
		}
		known, err := tx.Select(ctx, dataservice.Query{
			Entity:  "profiles",
			Columns: []string{"id"},
			Filters: []dataservice.Filter{dataservice.In("email", emails...)},
		})
		if err != nil {
			return fmt.Errorf("look up attendees: %w", err)
		}
		for _, p := range known {
			id, _ := p["id"].(string)
			if _, err := tx.Insert(ctx, "meeting_attendees", dataservice.Row{
				"meeting_id": change.ID,
				"profile_id": id,
				"status":     "pending",
			}); err != nil {
				return fmt.Errorf("insert attendee: %w", err)
			}
			profileIDs = append(profileIDs, id)
		}
		return nil
	})
	if err != nil {
		return change, err
	}

	change.Details = map[string]any{"title": m.in.Title, "attendees": len(m.emails)}
	if len(m.emails) > 0 && m.f.inviter != nil {
		inv := invites.Invitation{
			MeetingID:   change.ID,
			Title:       m.in.Title,
			StartTime:   m.start,
			OrganizerID: m.in.OrganizerID,
			ProfileIDs:  profileIDs,
			Emails:      m.emails,
		}
		if err := m.f.inviter.Invite(ctx, inv); err != nil {
			m.f.logger.With("error", err).Warn("invitation dispatch failed", "meeting_id", change.ID)
		}
	}
	return change, nil
}

func (m *scheduleMeeting) Succeeded() []Notification {
	var out []Notification
	if n := len(m.emails); n > 0 {
		out = append(out, Notification{
			Title:       "Invitations",
			Description: fmt.Sprintf("Meeting scheduled. Invitations would be sent to %d attendee(s).", n),
			Variant:     VariantDefault,
		})
	}
	return append(out, success("Meeting scheduled successfully"))
}

func (m *scheduleMeeting) Failed(err error) Notification {
	return failure("Error", "Failed to schedule meeting", err)
}

// EditMeetingInput is the edit dialog form.
type EditMeetingInput struct {
	ID          string
	Title       string
	Description string
	Date        string
	StartTime   string
	EndTime     string
	IsVirtual   bool
	Location    string
	MeetingLink string
	Status      string
	IsAdHoc     bool
	CommitteeID string
	Zone        *time.Location
	ActorID     string
}

type editMeeting struct {
	f          *Forms
	in         EditMeetingInput
	start, end time.Time
}

// EditMeeting updates every editable field of a meeting.
func (f *Forms) EditMeeting(in EditMeetingInput) Mutation {
	in.Title = Sanitize(in.Title)
	in.Description = Sanitize(in.Description)
	in.Location = Sanitize(in.Location)
	in.MeetingLink = strings.TrimSpace(in.MeetingLink)
	return &editMeeting{f: f, in: in}
}

func (m *editMeeting) Validate() error {
	in := m.in
	v := NewValidator().
		Required(in.Title, "title", "Meeting title is required").
		Required(in.Date, "date", "Meeting date is required")
	if strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		v.Add("start_time", "Start and end time are required")
	}
	if err := v.Err(); err != nil {
		return err
	}
	day, err := ParseDate(in.Date, in.Zone)
	if err != nil {
		return Invalid("date", "Meeting date is required")
	}
	if m.start, m.end, err = Span(day, in.StartTime, in.EndTime); err != nil {
		return err
	}
	return NewValidator().
		OneOf(in.Status, "status", MeetingStatuses...).
		Length(in.Title, "title", 200).
		Err()
}

func (m *editMeeting) Write(ctx context.Context) (Change, error) {
	in := m.in
	change := Change{Entity: "meetings", Action: "update", ID: in.ID, ActorID: in.ActorID}
	patch := dataservice.Row{
		"title":        in.Title,
		"description":  nullable(in.Description),
		"start_time":   m.start,
		"end_time":     m.end,
		"is_virtual":   in.IsVirtual,
		"location":     nil,
		"meeting_link": nil,
		"status":       in.Status,
		"is_ad_hoc":    in.IsAdHoc,
		"committee_id": nullable(in.CommitteeID),
		"updated_at":   m.f.now(),
	}
	if in.IsVirtual {
		patch["meeting_link"] = nullable(in.MeetingLink)
	} else {
		patch["location"] = nullable(in.Location)
	}
	if err := m.f.svc.Update(ctx, "meetings", in.ID, patch); err != nil {
		if dataservice.IsNotFound(err) {
			return change, &UserError{Message: "Meeting not found"}
		}
		return change, err
	}
	change.Details = map[string]any{"status": in.Status}
	return change, nil
}

func (m *editMeeting) Succeeded() []Notification {
	return []Notification{success("Meeting updated successfully")}
}

func (m *editMeeting) Failed(err error) Notification {
	return failure("Error", "Failed to update meeting", err)
}
