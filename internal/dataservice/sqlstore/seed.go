package sqlstore

import (
	"context"
	"fmt"
	"time"

	"committeeDashboard/internal/dataservice"
)

// DemoAdminEmail is the sign-in email of the seeded administrator.
const DemoAdminEmail = "admin@example.org"

// SeedDemo fills an empty database with a small organization: four people,
// two committees, a handful of meetings, documents and action items.
// It does nothing when profiles already exist.
func SeedDemo(ctx context.Context, svc dataservice.Service, now time.Time, adminPasswordHash string) error {
	existing, err := svc.Select(ctx, dataservice.Query{Entity: "profiles", Columns: []string{"id"}, Limit: 1})
	if err != nil {
		return fmt.Errorf("seed: check profiles: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	return dataservice.InTransaction(ctx, svc, func(tx dataservice.Service) error {
		insert := func(entity string, row dataservice.Row) (string, error) {
			stored, err := tx.Insert(ctx, entity, row)
			if err != nil {
				return "", fmt.Errorf("seed %s: %w", entity, err)
			}
			id, _ := stored["id"].(string)
			return id, nil
		}

		people := []dataservice.Row{
			{"name": "Avery Morgan", "email": DemoAdminEmail, "role": "admin", "department": "Operations"},
			{"name": "Jordan Lee", "email": "jordan@example.org", "role": "member", "department": "Finance"},
			{"name": "Sam Patel", "email": "sam@example.org", "role": "member", "department": "Legal"},
			{"name": "Riley Chen", "email": "riley@example.org", "role": "guest"},
		}
		ids := make([]string, len(people))
		for i, p := range people {
			id, err := insert("profiles", p)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		admin, jordan, sam, riley := ids[0], ids[1], ids[2], ids[3]

		if _, err := tx.Insert(ctx, "credentials", dataservice.Row{"profile_id": admin, "password_hash": adminPasswordHash}); err != nil {
			return fmt.Errorf("seed credentials: %w", err)
		}

		finance, err := insert("committees", dataservice.Row{"name": "Finance Committee", "description": "Budget review and financial oversight", "chair_id": jordan})
		if err != nil {
			return err
		}
		governance, err := insert("committees", dataservice.Row{"name": "Governance Committee", "description": "Bylaws, policy and board nominations", "chair_id": sam})
		if err != nil {
			return err
		}
		for _, m := range [][2]string{{finance, jordan}, {finance, admin}, {finance, riley}, {governance, sam}, {governance, admin}} {
			if _, err := tx.Insert(ctx, "committee_members", dataservice.Row{"committee_id": m[0], "profile_id": m[1]}); err != nil {
				return fmt.Errorf("seed committee_members: %w", err)
			}
		}

		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		at := func(days, hour int) time.Time { return day.AddDate(0, 0, days).Add(time.Duration(hour) * time.Hour) }

		meetings := []dataservice.Row{
			{"title": "Quarterly Budget Review", "description": "Review Q3 spend against plan", "start_time": at(1, 14), "end_time": at(1, 15),
				"location": "Board Room", "is_virtual": false, "status": "scheduled", "is_ad_hoc": false, "organizer_id": jordan, "committee_id": finance},
			{"title": "Policy Working Session", "start_time": at(2, 10), "end_time": at(2, 11),
				"is_virtual": true, "meeting_link": "https://meet.example.org/policy", "status": "scheduled", "is_ad_hoc": true, "organizer_id": sam, "committee_id": governance},
			{"title": "Board Prep", "description": "Prepare the board packet", "start_time": at(4, 9), "end_time": at(4, 10),
				"location": "Room 2", "is_virtual": false, "status": "scheduled", "is_ad_hoc": false, "organizer_id": admin},
			{"title": "Audit Kickoff", "start_time": at(-3, 13), "end_time": at(-3, 14),
				"location": "Board Room", "is_virtual": false, "status": "completed", "is_ad_hoc": false, "organizer_id": jordan, "committee_id": finance},
		}
		meetingIDs := make([]string, len(meetings))
		for i, m := range meetings {
			id, err := insert("meetings", m)
			if err != nil {
				return err
			}
			meetingIDs[i] = id
		}

		attendees := []dataservice.Row{
			{"meeting_id": meetingIDs[0], "profile_id": admin, "status": "accepted"},
			{"meeting_id": meetingIDs[0], "profile_id": riley, "status": "tentative"},
			{"meeting_id": meetingIDs[1], "profile_id": admin, "status": "pending"},
			{"meeting_id": meetingIDs[3], "profile_id": admin, "status": "accepted"},
			{"meeting_id": meetingIDs[3], "profile_id": sam, "status": "declined"},
		}
		for _, a := range attendees {
			if _, err := tx.Insert(ctx, "meeting_attendees", a); err != nil {
				return fmt.Errorf("seed meeting_attendees: %w", err)
			}
		}

		agenda := []dataservice.Row{
			{"meeting_id": meetingIDs[0], "title": "Variance report", "duration": 20, "order_index": 1, "presenter_id": jordan},
			{"meeting_id": meetingIDs[0], "title": "Reforecast", "duration": 30, "order_index": 2, "presenter_id": admin},
		}
		for _, a := range agenda {
			if _, err := insert("agenda_items", a); err != nil {
				return err
			}
		}

		documents := []dataservice.Row{
			{"title": "Audit Kickoff Minutes", "url": "https://files.example.org/audit-kickoff-minutes.pdf", "uploaded_by": jordan,
				"uploaded_at": at(-2, 9), "meeting_id": meetingIDs[3], "is_minutes": true},
			{"title": "FY Budget Draft", "url": "https://files.example.org/fy-budget-draft.xlsx", "uploaded_by": admin,
				"uploaded_at": at(-1, 16), "is_minutes": false},
		}
		for _, d := range documents {
			if _, err := insert("documents", d); err != nil {
				return err
			}
		}

		items := []struct {
			row       dataservice.Row
			assignees []string
		}{
			{dataservice.Row{"title": "Circulate audit engagement letter", "due_date": at(2, 17), "status": "in_progress", "meeting_id": meetingIDs[3]}, []string{jordan}},
			{dataservice.Row{"title": "Collect department budgets", "description": "All departments by end of week", "due_date": at(5, 17), "status": "pending", "meeting_id": meetingIDs[3]}, []string{admin, riley}},
			{dataservice.Row{"title": "Book auditor site visit", "due_date": at(-1, 17), "status": "completed", "meeting_id": meetingIDs[3]}, []string{sam}},
		}
		for _, it := range items {
			id, err := insert("action_items", it.row)
			if err != nil {
				return err
			}
			for _, p := range it.assignees {
				if _, err := tx.Insert(ctx, "action_item_assignees", dataservice.Row{"action_item_id": id, "profile_id": p}); err != nil {
					return fmt.Errorf("seed action_item_assignees: %w", err)
				}
			}
		}
		return nil
	})
}
