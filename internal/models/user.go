package models

import "time"

// Profile is a person who can sign in to the dashboard
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Avatar     string    `json:"avatar,omitempty"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Role constants
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

// Roles lists every valid role
var Roles = []string{RoleAdmin, RoleMember, RoleGuest}

// IsAdmin reports whether the profile administers the organization
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// SessionData represents session information
type SessionData struct {
	UserID        string    `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Avatar        string    `json:"avatar,omitempty"`
	CSRFToken     string    `json:"csrf_token"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewSessionData starts a session for p lasting maxAge seconds
func NewSessionData(p *Profile, csrfToken string, now time.Time, maxAge int) *SessionData {
	return &SessionData{
		UserID:        p.ID,
		UserEmail:     p.Email,
		Name:          p.Name,
		Role:          p.Role,
		Avatar:        p.Avatar,
		CSRFToken:     csrfToken,
		Authenticated: true,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(maxAge) * time.Second),
	}
}

// IsExpired checks if the session has expired
func (s *SessionData) IsExpired(maxAge int) bool {
	return time.Since(s.CreatedAt) > time.Duration(maxAge)*time.Second
}

// IsValid checks if the session is valid
func (s *SessionData) IsValid() bool {
	return s.Authenticated && s.UserID != "" && !s.ExpiresAt.Before(time.Now())
}

// IsAdmin reports whether the signed-in user is an admin
func (s *SessionData) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
