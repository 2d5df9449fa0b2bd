// Package invites dispatches meeting invitations to attendees.
package invites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
)

// TaskInvite is the queue task type for meeting invitations.
const TaskInvite = "meeting:invite"

// Invitation asks the attendees of a newly scheduled meeting to respond.
// ProfileIDs are the attendees with a profile; Emails lists every address
// the organizer entered.
type Invitation struct {
	MeetingID   string    `json:"meeting_id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	OrganizerID string    `json:"organizer_id"`
	ProfileIDs  []string  `json:"profile_ids"`
	Emails      []string  `json:"emails"`
}

// Inviter hands an invitation off for delivery.
type Inviter interface {
	Invite(ctx context.Context, inv Invitation) error
}

// Worker delivers invitations. Delivery is recorded in audit_logs, one row
// per address, so organizers can see who was asked.
type Worker struct {
	svc    dataservice.Service
	logger *slog.Logger
}

// NewWorker creates a worker writing through svc.
func NewWorker(svc dataservice.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{svc: svc, logger: logger}
}

// Deliver records the invitation for each address.
func (w *Worker) Deliver(ctx context.Context, inv Invitation) error {
	if inv.MeetingID == "" {
		return fmt.Errorf("invitation: meeting id is required")
	}
	for _, email := range inv.Emails {
		details, err := json.Marshal(map[string]any{
			"email":      strings.ToLower(email),
			"title":      inv.Title,
			"start_time": inv.StartTime.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("invitation: encode details: %w", err)
		}
		row := dataservice.Row{
			"action":      "invitation_sent",
			"entity_type": "meetings",
			"entity_id":   inv.MeetingID,
			"details":     string(details),
		}
		if inv.OrganizerID != "" {
			row["profile_id"] = inv.OrganizerID
		}
		if _, err := w.svc.Insert(ctx, "audit_logs", row); err != nil {
			return fmt.Errorf("invitation: record %s: %w", email, err)
		}
	}
	w.logger.Info("invitations delivered", "meeting_id", inv.MeetingID, "count", len(inv.Emails))
	return nil
}

// Inline delivers invitations synchronously.
type Inline struct {
	worker *Worker
}

var _ Inviter = (*Inline)(nil)

// NewInline wraps w.
func NewInline(w *Worker) *Inline {
	return &Inline{worker: w}
}

func (i *Inline) Invite(ctx context.Context, inv Invitation) error {
	return i.worker.Deliver(ctx, inv)
}
