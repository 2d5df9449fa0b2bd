package mutation

import (
	"context"

	"committeeDashboard/internal/dataservice"
)

// UpdateProfileInput is the settings profile form.
type UpdateProfileInput struct {
	ID         string
	Name       string
	Department string
	Avatar     string
}

type updateProfile struct {
	f  *Forms
	in UpdateProfileInput
}

// UpdateProfile changes the signed-in user's own profile.
func (f *Forms) UpdateProfile(in UpdateProfileInput) Mutation {
	in.Name = Sanitize(in.Name)
	in.Department = Sanitize(in.Department)
	return &updateProfile{f: f, in: in}
}

func (m *updateProfile) Validate() error {
	return NewValidator().
		Required(m.in.ID, "id", "You must be logged in to update your profile").
		Required(m.in.Name, "name", "Name is required").
		Length(m.in.Name, "name", 120).
		Length(m.in.Department, "department", 120).
		URL(m.in.Avatar, "avatar").
		Err()
}

func (m *updateProfile) Write(ctx context.Context) (Change, error) {
	change := Change{Entity: "profiles", Action: "update", ID: m.in.ID, ActorID: m.in.ID}
	patch := dataservice.Row{
		"name":       m.in.Name,
		"department": nullable(m.in.Department),
		"avatar":     nullable(m.in.Avatar),
	}
	if err := m.f.svc.Update(ctx, "profiles", m.in.ID, patch); err != nil {
		return change, err
	}
	return change, nil
}

func (m *updateProfile) Succeeded() []Notification {
	return []Notification{success("Profile updated")}
}

func (m *updateProfile) Failed(err error) Notification {
	return failure("Error", "Failed to update profile", err)
}
