package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"committeeDashboard/internal/viewmodel"
	reqctx "committeeDashboard/utils"
)

// DialogOptions are the select options offered by a page's dialogs.
type DialogOptions struct {
	Committees []viewmodel.Option
	Meetings   []viewmodel.Option
	People     []viewmodel.ProfileRecord
}

func (app *App) people(r *http.Request) []viewmodel.ProfileRecord {
	people, err := viewmodel.NewFetcher(app.Store, viewmodel.ProfilesSpec(), viewmodel.DecodeProfile).Fetch(r.Context())
	if err != nil {
		AppLogger.WithError(err).Warn("Failed to load people")
		return []viewmodel.ProfileRecord{}
	}
	return people
}

func (app *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := reqctx.GetUserID(r)
	data := app.BuildTemplateData(r, "Dashboard", "dashboard", nil)
	app.mountAll(r, data, app.newDashboardViews(userID, data.Zone)...)
	app.renderPage(w, "dashboard", data)
}

func (app *App) handleMeetings(w http.ResponseWriter, r *http.Request) {
	data := app.BuildTemplateData(r, "Meetings", "meetings", DialogOptions{
		Committees: app.options(r.Context(), viewmodel.CommitteeOptionsSpec()),
	})
	app.mountAll(r, data, app.newMeetingsView())
	app.renderPage(w, "meetings", data)
}

func (app *App) handleMeetingDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data := app.BuildTemplateData(r, "Meeting Details", "meetings", map[string]string{"ID": id})
	app.mountAll(r, data, app.newMeetingDetailView(id))
	app.renderPage(w, "meeting", data)
}

func (app *App) handleCommittees(w http.ResponseWriter, r *http.Request) {
	data := app.BuildTemplateData(r, "Committees", "committees", DialogOptions{People: app.people(r)})
	app.mountAll(r, data, app.newCommitteesView("committees"))
	app.renderPage(w, "committees", data)
}

func (app *App) handleDocuments(w http.ResponseWriter, r *http.Request) {
	data := app.BuildTemplateData(r, "Documents", "documents", DialogOptions{
		Meetings: app.options(r.Context(), viewmodel.MeetingOptionsSpec()),
	})
	app.mountAll(r, data, app.newDocumentsView("documents", 0))
	app.renderPage(w, "documents", data)
}

func (app *App) handleActionItems(w http.ResponseWriter, r *http.Request) {
	data := app.BuildTemplateData(r, "Action Items", "action-items", DialogOptions{
		Meetings: app.options(r.Context(), viewmodel.MeetingOptionsSpec()),
		People:   app.people(r),
	})
	app.mountAll(r, data, app.newActionItemsView("actionItems", 0))
	app.renderPage(w, "action_items", data)
}

// SettingsPage is the settings page data.
type SettingsPage struct {
	Profile       *viewmodel.ProfileRecord
	CanImport     bool
	HasGoogleAuth bool
	RosterRange   string
}

func (app *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := reqctx.GetUserID(r)
	page := SettingsPage{RosterRange: app.Config.RosterRange}

	profile, err := app.Auth.ProfileByID(r.Context(), userID)
	if err != nil {
		AppLogger.WithError(err).WithField("user_id", userID).Error("Failed to load profile")
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	page.Profile = &viewmodel.ProfileRecord{
		ID:         profile.ID,
		Name:       profile.Name,
		Email:      profile.Email,
		Role:       profile.Role,
		Avatar:     profile.Avatar,
		Department: profile.Department,
	}

	if app.OAuthConfig != nil && profile.IsAdmin() {
		page.CanImport = true
		if _, err := app.Auth.OAuthToken(r.Context(), userID); err == nil {
			page.HasGoogleAuth = true
		}
	}

	app.renderPage(w, "settings", app.BuildTemplateData(r, "Settings", "settings", page))
}

func (app *App) handleNotFound(w http.ResponseWriter, r *http.Request) {
	data := app.BuildTemplateData(r, "Page not found", "", nil)
	if err := app.Templates.RenderTemplateStatus(w, http.StatusNotFound, "not_found", data); err != nil {
		AppLogger.WithError(err).Error("Failed to render not found page")
		http.Error(w, "Page not found", http.StatusNotFound)
	}
}
