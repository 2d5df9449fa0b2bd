package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"

	"committeeDashboard/internal/authgate"
	"committeeDashboard/internal/models"
	reqctx "committeeDashboard/utils"
)

const sessionName = "auth-session"

func (app *App) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		AppLogger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": duration.Milliseconds(),
			"status_code": wrapper.statusCode,
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
		}).Info("HTTP request completed")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach
// the underlying writer.
func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// readSession decodes the session cookie. A missing or corrupted cookie
// yields authgate.ErrNoSession.
func (app *App) readSession(r *http.Request) (*models.SessionData, error) {
	session, err := app.SessionStore.Get(r, sessionName)
	if err != nil {
		return nil, authgate.ErrNoSession
	}

	sessionDataJSON, ok := session.Values["session_data"].(string)
	if !ok || sessionDataJSON == "" {
		return nil, authgate.ErrNoSession
	}

	var sessionData models.SessionData
	if err := json.Unmarshal([]byte(sessionDataJSON), &sessionData); err != nil {
		return nil, authgate.ErrNoSession
	}
	return &sessionData, nil
}

// checkSession is the auth gate's session check: the cookie must hold a
// valid session whose profile still exists. Name, role and avatar are
// refreshed from the profile.
func (app *App) checkSession(r *http.Request) (*models.SessionData, error) {
	sessionData, err := app.readSession(r)
	if err != nil {
		return nil, err
	}

	profile, err := app.Auth.CurrentProfile(r.Context(), sessionData)
	if err != nil {
		return nil, err
	}

	sessionData.Name = profile.Name
	sessionData.Role = profile.Role
	sessionData.Avatar = profile.Avatar
	sessionData.UserEmail = profile.Email
	return sessionData, nil
}

// startSession stores a fresh session for profile in the cookie.
func (app *App) startSession(w http.ResponseWriter, r *http.Request, session *sessions.Session, profile *models.Profile) (*models.SessionData, error) {
	csrfToken, err := GenerateCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("generate csrf token: %w", err)
	}

	sessionData := models.NewSessionData(profile, csrfToken, app.Now(), app.Config.SessionMaxAge)
	sessionDataJSON, err := json.Marshal(sessionData)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	delete(session.Values, "state")
	session.Values["session_data"] = string(sessionDataJSON)
	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sessionData, nil
}

// CSRFMiddleware requires the session's CSRF token on state-changing
// requests, from the X-CSRF-Token header or the csrf_token form field.
func (app *App) CSRFMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" || r.Method == "PUT" || r.Method == "DELETE" {
			expectedToken, ok := reqctx.GetCSRFToken(r)
			if !ok || expectedToken == "" {
				http.Error(w, "CSRF token not found in session", http.StatusForbidden)
				return
			}

			providedToken := r.Header.Get("X-CSRF-Token")
			if providedToken == "" && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				providedToken = r.FormValue("csrf_token")
			}

			if providedToken != expectedToken {
				AppLogger.WithFields(map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Warn("CSRF token mismatch")
				http.Error(w, "CSRF token mismatch", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	}
}

func (app *App) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				AppLogger.WithFields(map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"panic":       fmt.Sprintf("%v", err),
					"remote_addr": r.RemoteAddr,
				}).Error("Panic recovered in HTTP handler")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
