package authgate

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/models"
	reqctx "committeeDashboard/utils"
)

func session() *models.SessionData {
	return models.NewSessionData(&models.Profile{ID: "u1", Email: "ada@example.org", Role: models.RoleAdmin}, "tok", time.Now(), 3600)
}

func TestMachineTransitions(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Checking, m.State())

	assert.Equal(t, Authenticated, m.Resolve(session(), nil))
	assert.Equal(t, "u1", m.Session().UserID)

	m.Begin()
	assert.Equal(t, Checking, m.State())
	assert.Nil(t, m.Session())

	assert.Equal(t, Unauthenticated, m.Resolve(session(), errors.New("backend down")))
	assert.Nil(t, m.Session())
	assert.Equal(t, Unauthenticated, m.Resolve(nil, nil))
	assert.Equal(t, Unauthenticated, m.Resolve(&models.SessionData{UserID: "u1"}, nil))
	assert.Equal(t, "checking", Checking.String())
}

func protected(t *testing.T, checker CheckerFunc) http.Handler {
	t.Helper()
	return New(checker, "/auth", nil).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := reqctx.GetUserID(r)
		token, _ := reqctx.GetCSRFToken(r)
		assert.True(t, reqctx.IsAdmin(r))
		_, _ = w.Write([]byte(id + ":" + token))
	}))
}

func TestRequireAuthenticated(t *testing.T) {
	h := protected(t, func(*http.Request) (*models.SessionData, error) { return session(), nil })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:tok", rec.Body.String())
}

func TestRequireRedirectsPages(t *testing.T) {
	for name, checker := range map[string]CheckerFunc{
		"no session": func(*http.Request) (*models.SessionData, error) { return nil, ErrNoSession },
		"error":      func(*http.Request) (*models.SessionData, error) { return nil, errors.New("boom") },
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			protected(t, checker).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/committees", nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/auth", rec.Header().Get("Location"))
		})
	}
}

func TestRequireAnswersScriptsWith401(t *testing.T) {
	h := protected(t, func(*http.Request) (*models.SessionData, error) { return nil, ErrNoSession })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/views/abc", nil),
		httptest.NewRequest(http.MethodGet, "/api/views/abc", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/meetings", nil)
			r.Header.Set("Accept", "application/json")
			return r
		}(),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, req.URL.Path)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Unauthorized", body["error"])
	}
}

func TestOptionalNeverBlocks(t *testing.T) {
	g := New(CheckerFunc(func(*http.Request) (*models.SessionData, error) { return nil, ErrNoSession }), "", nil)
	assert.Equal(t, "/auth", g.LoginPath())

	rec := httptest.NewRecorder()
	g.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, reqctx.IsAuthenticated(r))
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
