package mutation

import (
	"context"
	"fmt"

	"committeeDashboard/internal/dataservice"
)

// CreateCommitteeInput is the new committee dialog form.
type CreateCommitteeInput struct {
	Name        string
	Description string
	ChairID     string
	MemberIDs   []string
	ActorID     string
}

type createCommittee struct {
	f  *Forms
	in CreateCommitteeInput
}

// CreateCommittee inserts a committee and its members in one transaction.
// The chair is always a member.
func (f *Forms) CreateCommittee(in CreateCommitteeInput) Mutation {
	in.Name = Sanitize(in.Name)
	in.Description = Sanitize(in.Description)
	return &createCommittee{f: f, in: in}
}

func (m *createCommittee) Validate() error {
	return NewValidator().
		Required(m.in.Name, "name", "Committee name is required").
		Length(m.in.Name, "name", 120).
		Err()
}

func (m *createCommittee) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "committees", Action: "create", ActorID: m.in.ActorID}
	members := uniqueIDs(append([]string{m.in.ChairID}, m.in.MemberIDs...))

	err := dataservice.InTransaction(ctx, m.f.svc, func(tx dataservice.Service) error {
		stored, err := tx.Insert(ctx, "committees", dataservice.Row{
			"name":        m.in.Name,
			"description": nullable(m.in.Description),
			"chair_id":    nullable(m.in.ChairID),
		})
		if err != nil {
			return fmt.Errorf("insert committee: %w", err)
		}
		change.ID, _ = stored["id"].(string)
		for _, id := range members {
			if _, err := tx.Insert(ctx, "committee_members", dataservice.Row{"committee_id": change.ID, "profile_id": id}); err != nil {
				return fmt.Errorf("insert member %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return change, err
	}
	change.Details = map[string]any{"name": m.in.Name, "members": len(members)}
	return change, nil
}

func (m *createCommittee) Succeeded() []Notification {
	return []Notification{success("Committee created successfully")}
}

func (m *createCommittee) Failed(err error) Notification {
	return failure("Error", "Failed to create committee", err)
}

// uniqueIDs drops blanks and duplicates, keeping order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
