package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"committeeDashboard/internal/authgate"
	"committeeDashboard/internal/events"
	"committeeDashboard/internal/models"
	"committeeDashboard/internal/services"
	"committeeDashboard/internal/utils"
	reqctx "committeeDashboard/utils"
)

// AuthPage is the sign-in page data.
type AuthPage struct {
	SignUp bool
	Error  string
	Email  string
}

var authErrors = map[string]string{
	"credentials":     "Invalid email or password.",
	"weak":            services.ErrWeakPassword.Error(),
	"taken":           "An account with this email already exists.",
	"google_disabled": "Google sign-in is not configured.",
	"google":          "Google sign-in failed. Please try again.",
	"session":         "Your session could not be started. Please try again.",
}

func (app *App) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	if state, _ := app.Gate.Resolve(r); state == authgate.Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	page := AuthPage{
		SignUp: q.Get("mode") == "signup",
		Error:  authErrors[q.Get("error")],
		Email:  q.Get("email"),
	}
	app.renderPage(w, "auth", app.BuildTemplateData(r, "Sign in", "auth", page))
}

// authRedirect sends the browser back to the sign-in page with an error code.
func authRedirect(w http.ResponseWriter, r *http.Request, signUp bool, code, email string) {
	q := url.Values{"error": {code}}
	if signUp {
		q.Set("mode", "signup")
	}
	if email != "" {
		q.Set("email", email)
	}
	http.Redirect(w, r, "/auth?"+q.Encode(), http.StatusSeeOther)
}

// signIn starts a session for profile and sends the browser to the dashboard.
func (app *App) signIn(w http.ResponseWriter, r *http.Request, profile *models.Profile, method string) {
	session, err := app.SessionStore.Get(r, sessionName)
	if err != nil {
		// Replace a corrupted cookie
		session, err = app.SessionStore.New(r, sessionName)
		if err != nil {
			AppLogger.WithError(err).Error("Failed to create session")
			authRedirect(w, r, false, "session", "")
			return
		}
	}

	if _, err := app.startSession(w, r, session, profile); err != nil {
		AppLogger.WithError(err).WithField("user_id", profile.ID).Error("Failed to start session")
		authRedirect(w, r, false, "session", "")
		return
	}

	AppLogger.WithFields(map[string]interface{}{
		"user_id": profile.ID,
		"method":  method,
	}).Info("User signed in")
	app.publishSession(r.Context(), events.ActionSignedIn, profile.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *App) handlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	profile, err := app.Auth.Authenticate(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			AppLogger.WithError(err).Error("Password sign-in failed")
		}
		authRedirect(w, r, false, "credentials", email)
		return
	}
	app.signIn(w, r, profile, "password")
}

func (app *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	profile, err := app.Auth.SignUp(r.Context(), r.FormValue("name"), email, r.FormValue("password"))
	switch {
	case errors.Is(err, services.ErrWeakPassword):
		authRedirect(w, r, true, "weak", email)
		return
	case errors.Is(err, services.ErrEmailTaken):
		authRedirect(w, r, true, "taken", email)
		return
	case err != nil:
		AppLogger.WithError(err).Error("Sign-up failed")
		authRedirect(w, r, true, "session", email)
		return
	}
	app.signIn(w, r, profile, "signup")
}

func (app *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if app.OAuthConfig == nil {
		authRedirect(w, r, false, "google_disabled", "")
		return
	}

	state, err := GenerateSecureToken(16)
	if err != nil {
		AppLogger.WithError(err).Error("Failed to generate state")
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	session, err := app.SessionStore.Get(r, sessionName)
	if err != nil {
		// Create a new session if the old one is corrupted
		session, err = app.SessionStore.New(r, sessionName)
		if err != nil {
			AppLogger.WithError(err).Error("Failed to create session")
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
	}

	for k := range session.Values {
		delete(session.Values, k)
	}
	session.Values["state"] = state

	if err := session.Save(r, w); err != nil {
		AppLogger.WithError(err).Error("Failed to save session")
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}

	authURL := app.OAuthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "select_account"))
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (app *App) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if app.OAuthConfig == nil {
		authRedirect(w, r, false, "google_disabled", "")
		return
	}

	session, err := app.SessionStore.Get(r, sessionName)
	if err != nil {
		AppLogger.WithError(err).Warn("Failed to get session in callback")
		authRedirect(w, r, false, "google", "")
		return
	}

	state, ok := session.Values["state"].(string)
	if !ok || state == "" || state != r.URL.Query().Get("state") {
		AppLogger.Warn("OAuth state mismatch")
		authRedirect(w, r, false, "google", "")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		authRedirect(w, r, false, "google", "")
		return
	}

	ctx := r.Context()
	token, err := app.OAuthConfig.Exchange(ctx, code)
	if err != nil {
		AppLogger.WithError(err).Error("Failed to exchange token")
		authRedirect(w, r, false, "google", "")
		return
	}

	oauth2Service, err := oauth2api.NewService(ctx, option.WithHTTPClient(app.OAuthConfig.Client(ctx, token)))
	if err != nil {
		AppLogger.WithError(err).Error("Failed to create OAuth2 service")
		authRedirect(w, r, false, "google", "")
		return
	}

	userInfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		AppLogger.WithError(err).Error("Failed to get user info")
		authRedirect(w, r, false, "google", "")
		return
	}

	profile, err := app.Auth.SignInWithGoogle(ctx, userInfo.Email, userInfo.Name, userInfo.Picture)
	if err != nil {
		AppLogger.WithError(err).Error("Failed to sign in with Google")
		authRedirect(w, r, false, "google", "")
		return
	}

	if err := app.Auth.SaveOAuthToken(ctx, profile.ID, token); err != nil {
		AppLogger.WithError(err).WithField("user_id", profile.ID).Warn("Failed to store Google token")
	}

	app.signIn(w, r, profile, "google")
}

func (app *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, _ := reqctx.GetUserID(r)

	session, err := app.SessionStore.Get(r, sessionName)
	if err != nil {
		AppLogger.WithError(err).Warn("Failed to get session during logout")
	}
	if session != nil {
		for k := range session.Values {
			delete(session.Values, k)
		}
		session.Options = &sessions.Options{Path: "/", MaxAge: -1}
		_ = session.Save(r, w)
	}

	// Also clear the cookie manually in case session handling fails
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.Config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
	})

	if n := app.Views.UnmountOwner(userID); n > 0 {
		AppLogger.WithFields(map[string]interface{}{"user_id": userID, "views": n}).Debug("Unmounted views on logout")
	}
	app.publishSession(r.Context(), events.ActionSignedOut, userID)

	AppLogger.WithField("user_id", userID).Info("User signed out")
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

// SessionStatus is the session signal polled by the page script.
type SessionStatus struct {
	State string              `json:"state"`
	User  *models.SessionData `json:"user,omitempty"`
}

func (app *App) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status := SessionStatus{State: authgate.Unauthenticated.String()}
	if sd, ok := reqctx.GetSession(r); ok {
		status.State = authgate.Authenticated.String()
		user := *sd
		user.CSRFToken = ""
		status.User = &user
	}
	w.Header().Set("Cache-Control", "no-store")
	utils.RespondWithJSON(w, http.StatusOK, status)
}

func (app *App) publishSession(ctx context.Context, action, userID string) {
	e := events.Event{Entity: events.EntitySession, Action: action, ID: userID, ActorID: userID, At: app.Now().UTC()}
	if err := app.Bus.Publish(ctx, e); err != nil {
		AppLogger.WithError(err).WithField("action", action).Warn("Failed to publish session event")
	}
}
