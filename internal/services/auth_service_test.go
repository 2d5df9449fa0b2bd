package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"committeeDashboard/internal/dataservice/sqlstore"
	"committeeDashboard/internal/models"
	"committeeDashboard/internal/utils"
)

func newService(t *testing.T) (*AuthService, *sqlstore.Store) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_foreign_keys=on", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlstore.NewSQL(db, sqlstore.SQLite, nil)
	require.NoError(t, store.Migrate(context.Background()))
	return NewAuthService(store, utils.NewProfileCache(time.Minute), nil), store
}

func TestSignUpAndAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.SignUp(ctx, "Ada", " Ada@Example.org ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", p.Email)
	assert.Equal(t, models.RoleMember, p.Role)

	got, err := svc.Authenticate(ctx, "ADA@example.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.org", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.org", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignUp(ctx, "Ada again", "ada@example.org", "another one")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = svc.SignUp(ctx, "Bob", "bob@example.org", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestSignInWithGoogleKeepsRole(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "profiles", map[string]any{"name": "Admin", "email": "boss@example.org", "role": "admin"})
	require.NoError(t, err)

	p, err := svc.SignInWithGoogle(ctx, "Boss@example.org", "The Boss", "https://img/boss.png")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.Equal(t, "The Boss", p.Name)
	assert.Equal(t, "https://img/boss.png", p.Avatar)

	fresh, err := svc.SignInWithGoogle(ctx, "new@example.org", "", "")
	require.NoError(t, err)
	assert.Equal(t, "new", fresh.Name)
	assert.Equal(t, models.RoleMember, fresh.Role)
}

func TestOAuthTokenRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	p, err := svc.SignInWithGoogle(ctx, "ada@example.org", "Ada", "")
	require.NoError(t, err)

	_, err = svc.OAuthToken(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, svc.SaveOAuthToken(ctx, p.ID, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, svc.SaveOAuthToken(ctx, p.ID, &oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}))
	tok, err := svc.OAuthToken(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
}

func TestCurrentProfile(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.CurrentProfile(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSession)

	p, err := svc.SignInWithGoogle(ctx, "ada@example.org", "Ada", "")
	require.NoError(t, err)
	now := time.Now()
	sd := models.NewSessionData(p, "csrf", now, 3600)

	got, err := svc.CurrentProfile(ctx, sd)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	// served from the cache until forgotten
	require.NoError(t, store.Update(ctx, "profiles", p.ID, map[string]any{"name": "Ada L."}))
	got, err = svc.CurrentProfile(ctx, sd)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	svc.Forget(p.ID)
	got, err = svc.CurrentProfile(ctx, sd)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)

	expired := models.NewSessionData(p, "csrf", now.Add(-2*time.Hour), 3600)
	_, err = svc.CurrentProfile(ctx, expired)
	assert.ErrorIs(t, err, ErrExpiredSession)

	ghost := models.NewSessionData(&models.Profile{ID: "missing"}, "csrf", now, 3600)
	_, err = svc.CurrentProfile(ctx, ghost)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
