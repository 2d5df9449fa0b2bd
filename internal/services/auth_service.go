package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/models"
	"committeeDashboard/internal/utils"
)

// PasswordCost is the bcrypt work factor for stored passwords
const PasswordCost = 12

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// Store is the data access the auth service needs
type Store interface {
	dataservice.Service
	dataservice.Upserter
}

// AuthService handles authentication business logic
type AuthService struct {
	store    Store
	profiles *utils.ProfileCache
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service. profiles may be nil.
func NewAuthService(store Store, profiles *utils.ProfileCache, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{store: store, profiles: profiles, logger: logger}
}

// IsAuthenticated checks if a user is authenticated
func (s *AuthService) IsAuthenticated(sessionData *models.SessionData) bool {
	return sessionData != nil && sessionData.IsValid()
}

// ValidateSession validates a session
func (s *AuthService) ValidateSession(sessionData *models.SessionData) error {
	if sessionData == nil || sessionData.UserID == "" {
		return ErrInvalidSession
	}

	if !sessionData.IsValid() {
		return ErrExpiredSession
	}

	return nil
}

// CurrentProfile validates the session and loads the profile it belongs
// to, so role changes and removed people take effect on the next request.
func (s *AuthService) CurrentProfile(ctx context.Context, sessionData *models.SessionData) (*models.Profile, error) {
	if err := s.ValidateSession(sessionData); err != nil {
		return nil, err
	}
	p, err := s.ProfileByID(ctx, sessionData.UserID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrInvalidSession
	}
	return p, err
}

// HashPassword hashes a plain password with bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePasswords compares a plain password with a bcrypt hash
func ComparePasswords(storedHash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
}

// Authenticate checks an email and password pair
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	p, err := s.ProfileByEmail(ctx, email)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Select(ctx, dataservice.Query{
		Entity:  "credentials",
		Columns: []string{"password_hash"},
		Filters: []dataservice.Filter{dataservice.Eq("profile_id", p.ID)},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrInvalidCredentials
	}
	hash, _ := rows[0]["password_hash"].(string)
	if err := ComparePasswords(hash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// SignUp creates a member profile with a password
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*models.Profile, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := s.ProfileByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var created dataservice.Row
	err = dataservice.InTransaction(ctx, s.store, func(tx dataservice.Service) error {
		row, err := tx.Insert(ctx, "profiles", dataservice.Row{"name": name, "email": email, "role": models.RoleMember})
		if err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, "credentials", dataservice.Row{"profile_id": row["id"], "password_hash": hash}); err != nil {
			return err
		}
		created = row
		return nil
	})
	if dataservice.IsConstraint(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.logger.Info("profile signed up", "profile_id", created["id"])
	return profileFromRow(created), nil
}

// SignInWithGoogle creates or refreshes the profile of a Google account.
// The role of an existing profile is kept.
func (s *AuthService) SignInWithGoogle(ctx context.Context, email, name, picture string) (*models.Profile, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	record := dataservice.Row{"email": email, "name": strings.TrimSpace(name)}
	if record["name"] == "" {
		record["name"] = strings.SplitN(email, "@", 2)[0]
	}
	if picture != "" {
		record["avatar"] = picture
	}
	if err := s.store.Upsert(ctx, "profiles", "email", record); err != nil {
		return nil, fmt.Errorf("upsert google profile: %w", err)
	}
	p, err := s.ProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.Forget(p.ID)
	return p, nil
}

// SaveOAuthToken stores the Google token of a profile
func (s *AuthService) SaveOAuthToken(ctx context.Context, profileID string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return s.store.Upsert(ctx, "oauth_tokens", "profile_id", dataservice.Row{
		"profile_id": profileID,
		"token":      string(data),
		"updated_at": time.Now(),
	})
}

// OAuthToken loads the Google token of a profile
func (s *AuthService) OAuthToken(ctx context.Context, profileID string) (*oauth2.Token, error) {
	rows, err := s.store.Select(ctx, dataservice.Query{
		Entity:  "oauth_tokens",
		Columns: []string{"token"},
		Filters: []dataservice.Filter{dataservice.Eq("profile_id", profileID)},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoToken
	}
	raw, _ := rows[0]["token"].(string)
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}

// ProfileByEmail looks a profile up by email, case-insensitively
func (s *AuthService) ProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.findProfile(ctx, dataservice.Eq("email", normalizeEmail(email)))
}

// ProfileByID looks a profile up by id, through the profile cache
func (s *AuthService) ProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := s.profiles.Get(id); ok {
		return p, nil
	}
	p, err := s.findProfile(ctx, dataservice.Eq("id", id))
	if err != nil {
		return nil, err
	}
	s.profiles.Set(p)
	return p, nil
}

// Forget drops a cached profile after it changed
func (s *AuthService) Forget(profileID string) {
	s.profiles.Invalidate(profileID)
}

// ForgetAll drops every cached profile after a bulk change
func (s *AuthService) ForgetAll() {
	s.profiles.Clear()
}

func (s *AuthService) findProfile(ctx context.Context, filter dataservice.Filter) (*models.Profile, error) {
	rows, err := s.store.Select(ctx, dataservice.Query{
		Entity:  "profiles",
		Filters: []dataservice.Filter{filter},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrProfileNotFound
	}
	return profileFromRow(rows[0]), nil
}

func profileFromRow(row dataservice.Row) *models.Profile {
	text := func(k string) string {
		s, _ := row[k].(string)
		return s
	}
	p := &models.Profile{
		ID:         text("id"),
		Name:       text("name"),
		Email:      text("email"),
		Role:       text("role"),
		Avatar:     text("avatar"),
		Department: text("department"),
	}
	if t, ok := row["created_at"].(time.Time); ok {
		p.CreatedAt = t
	}
	if p.Role == "" {
		p.Role = models.RoleMember
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Error definitions
var (
	ErrInvalidSession     = NewError("invalid session")
	ErrExpiredSession     = NewError("session expired")
	ErrInvalidCredentials = NewError("invalid email or password")
	ErrEmailTaken         = NewError("an account with this email already exists")
	ErrWeakPassword       = NewError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	ErrProfileNotFound    = NewError("profile not found")
	ErrNoToken            = NewError("no google authorization stored")
)

// Error represents a service error
type Error struct {
	message string
}

func NewError(message string) *Error {
	return &Error{message: message}
}

func (e *Error) Error() string {
	return e.message
}
