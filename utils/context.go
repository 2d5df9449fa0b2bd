package utils

import (
	"context"
	"net/http"

	"committeeDashboard/internal/models"
)

// Context keys set by the auth gate
type contextKey string

const (
	UserIDKey        contextKey = "user_id"
	UserEmailKey     contextKey = "user_email"
	UserRoleKey      contextKey = "user_role"
	CSRFTokenKey     contextKey = "csrf_token"
	AuthenticatedKey contextKey = "authenticated"
	SessionKey       contextKey = "session"
)

// WithSession stores the signed-in user in ctx
func WithSession(ctx context.Context, sd *models.SessionData) context.Context {
	ctx = context.WithValue(ctx, SessionKey, sd)
	ctx = context.WithValue(ctx, UserIDKey, sd.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, sd.UserEmail)
	ctx = context.WithValue(ctx, UserRoleKey, sd.Role)
	ctx = context.WithValue(ctx, CSRFTokenKey, sd.CSRFToken)
	return context.WithValue(ctx, AuthenticatedKey, true)
}

// GetSession returns the session stored by the auth gate
func GetSession(r *http.Request) (*models.SessionData, bool) {
	sd, ok := r.Context().Value(SessionKey).(*models.SessionData)
	return sd, ok && sd != nil
}

// GetUserID extracts the profile id from request context
func GetUserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(UserIDKey).(string)
	return id, ok && id != ""
}

// GetUserEmail extracts user email from request context
func GetUserEmail(r *http.Request) (string, bool) {
	userEmail, ok := r.Context().Value(UserEmailKey).(string)
	return userEmail, ok && userEmail != ""
}

// GetCSRFToken extracts CSRF token from request context
func GetCSRFToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(CSRFTokenKey).(string)
	return token, ok && token != ""
}

// IsAuthenticated checks if user is authenticated
func IsAuthenticated(r *http.Request) bool {
	authenticated, ok := r.Context().Value(AuthenticatedKey).(bool)
	return ok && authenticated
}

// IsAdmin checks if user is admin from context
func IsAdmin(r *http.Request) bool {
	role, ok := r.Context().Value(UserRoleKey).(string)
	return ok && role == models.RoleAdmin
}
