// Package authgate decides, per request, whether the signed-in user may see
// protected routes.
package authgate

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"committeeDashboard/internal/models"
	"committeeDashboard/internal/utils"
	reqctx "committeeDashboard/utils"
)

// State is the gate state.
type State int

const (
	Checking State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrNoSession is returned by checkers when the request carries no session.
var ErrNoSession = errors.New("authgate: no session")

// Checker resolves the session of a request. Any error means the request
// is unauthenticated.
type Checker interface {
	Check(r *http.Request) (*models.SessionData, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(r *http.Request) (*models.SessionData, error)

func (f CheckerFunc) Check(r *http.Request) (*models.SessionData, error) { return f(r) }

// Machine tracks the gate state of one client across session checks. It
// starts in Checking, and every later check passes through Checking again
// until it resolves.
type Machine struct {
	mu      sync.Mutex
	state   State
	session *models.SessionData
}

// NewMachine returns a machine in the Checking state.
func NewMachine() *Machine {
	return &Machine{state: Checking}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the resolved session, nil unless Authenticated.
func (m *Machine) Session() *models.SessionData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Begin enters Checking for a new session check.
func (m *Machine) Begin() {
	m.mu.Lock()
	m.state = Checking
	m.session = nil
	m.mu.Unlock()
}

// Resolve ends a session check. A nil session or any error resolves to
// Unauthenticated.
func (m *Machine) Resolve(sd *models.SessionData, err error) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil || sd == nil || !sd.Authenticated {
		m.state = Unauthenticated
		m.session = nil
		return m.state
	}
	m.state = Authenticated
	m.session = sd
	return m.state
}

// Gate guards handlers behind a session check.
type Gate struct {
	checker   Checker
	loginPath string
	logger    *slog.Logger
}

// New creates a gate that sends unauthenticated page requests to loginPath.
func New(checker Checker, loginPath string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if loginPath == "" {
		loginPath = "/auth"
	}
	return &Gate{checker: checker, loginPath: loginPath, logger: logger}
}

// LoginPath is where unauthenticated users are sent.
func (g *Gate) LoginPath() string { return g.loginPath }

// Resolve runs the session check for r.
func (g *Gate) Resolve(r *http.Request) (State, *models.SessionData) {
	m := NewMachine()
	sd, err := g.checker.Check(r)
	if err != nil && !errors.Is(err, ErrNoSession) {
		g.logger.With("error", err).Warn("session check failed", "path", r.URL.Path)
	}
	state := m.Resolve(sd, err)
	return state, m.Session()
}

// Require lets authenticated requests through with the session in their
// context. Others are redirected to the login page, or answered with 401
// when the caller is the page script.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, sd := g.Resolve(r)
		if state != Authenticated {
			if WantsJSON(r) {
				utils.AuthenticationError(w)
				return
			}
			http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(reqctx.WithSession(r.Context(), sd)))
	})
}

// Optional attaches the session when there is one and never blocks.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if state, sd := g.Resolve(r); state == Authenticated {
			r = r.WithContext(reqctx.WithSession(r.Context(), sd))
		}
		next.ServeHTTP(w, r)
	})
}

// WantsJSON reports whether r comes from the page script rather than a
// navigation: fragment and API paths, XHR requests and JSON accepts.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/views/") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
