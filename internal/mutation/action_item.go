package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
)

// ActionItemStatuses are the action item states.
var ActionItemStatuses = []string{"pending", "in_progress", "completed"}

// CreateActionItemInput is the new action item dialog form.
type CreateActionItemInput struct {
	Title       string
	Description string
	MeetingID   string
	DueDate     string
	AssigneeIDs []string
	Zone        *time.Location
	ActorID     string
}

type createActionItem struct {
	f   *Forms
	in  CreateActionItemInput
	due *time.Time
}

// CreateActionItem inserts an action item and its assignees in one
// transaction.
func (f *Forms) CreateActionItem(in CreateActionItemInput) Mutation {
	in.Title = Sanitize(in.Title)
	in.Description = Sanitize(in.Description)
	return &createActionItem{f: f, in: in}
}

func (m *createActionItem) Validate() error {
	if err := NewValidator().
		Required(m.in.Title, "title", "Action item title is required").
		Required(m.in.MeetingID, "meeting_id", "Please select the meeting this action item came from").
		Length(m.in.Title, "title", 200).
		Err(); err != nil {
		return err
	}
	if strings.TrimSpace(m.in.DueDate) != "" {
		d, err := ParseDate(m.in.DueDate, m.in.Zone)
		if err != nil {
			return Invalid("due_date", "Due date is invalid")
		}
		m.due = &d
	}
	return nil
}

func (m *createActionItem) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "action_items", Action: "create", ActorID: m.in.ActorID}
	assignees := uniqueIDs(m.in.AssigneeIDs)

	row := dataservice.Row{
		"title":       m.in.Title,
		"description": nullable(m.in.Description),
		"meeting_id":  m.in.MeetingID,
		"status":      "pending",
	}
	if m.due != nil {
		row["due_date"] = *m.due
	}

	err := dataservice.InTransaction(ctx, m.f.svc, func(tx dataservice.Service) error {
		stored, err := tx.Insert(ctx, "action_items", row)
		if err != nil {
			return fmt.Errorf("insert action item: %w", err)
		}
		change.ID, _ = stored["id"].(string)
		for _, id := range assignees {
			if _, err := tx.Insert(ctx, "action_item_assignees", dataservice.Row{"action_item_id": change.ID, "profile_id": id}); err != nil {
				return fmt.Errorf("insert assignee %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return change, err
	}
	change.Details = map[string]any{"title": m.in.Title, "assignees": len(assignees)}
	return change, nil
}

func (m *createActionItem) Succeeded() []Notification {
	return []Notification{success("Action item created successfully")}
}

func (m *createActionItem) Failed(err error) Notification {
	return failure("Error", "Failed to create action item", err)
}

type updateActionItemStatus struct {
	f       *Forms
	id      string
	status  string
	actorID string
}

// UpdateActionItemStatus moves an action item to status.
func (f *Forms) UpdateActionItemStatus(id, status, actorID string) Mutation {
	return &updateActionItemStatus{f: f, id: id, status: strings.TrimSpace(status), actorID: actorID}
}

func (m *updateActionItemStatus) Validate() error {
	return NewValidator().
		Required(m.id, "id", "Action item is required").
		OneOf(m.status, "status", ActionItemStatuses...).
		Err()
}

func (m *updateActionItemStatus) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "action_items", Action: "update", ID: m.id, ActorID: m.actorID}
	err := m.f.svc.Update(ctx, "action_items", m.id, dataservice.Row{"status": m.status, "updated_at": m.f.now()})
	if dataservice.IsNotFound(err) {
		return change, &UserError{Message: "Action item not found"}
	}
	if err != nil {
		return change, err
	}
	change.Details = map[string]any{"status": m.status}
	return change, nil
}

func (m *updateActionItemStatus) Succeeded() []Notification {
	return []Notification{success("Action item updated")}
}

func (m *updateActionItemStatus) Failed(err error) Notification {
	return failure("Error", "Failed to update action item", err)
}
