package main

import (
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"committeeDashboard/internal/mutation"
	"committeeDashboard/internal/utils"
	reqctx "committeeDashboard/utils"
)

// formMemory is how much of a multipart form is held in memory; larger
// file parts spill to temporary files.
const formMemory = 8 << 20

// DialogResponse is the answer to a dialog submission. When Closed, the
// dialog closes and Fragment, if set, replaces the view it was opened from.
type DialogResponse struct {
	Closed        bool                    `json:"closed"`
	Notifications []mutation.Notification `json:"notifications"`
	Origin        string                  `json:"origin,omitempty"`
	Fragment      template.HTML           `json:"fragment,omitempty"`
}

// submit runs m through the pipeline. Its success callback refetches the
// view named by the form's origin field; the change event carries that
// token so browsers skip their own refetch of it.
func (app *App) submit(w http.ResponseWriter, r *http.Request, m mutation.Mutation) {
	var notes mutation.Collector
	resp := DialogResponse{Origin: r.FormValue("origin")}

	ctx := mutation.WithOrigin(r.Context(), resp.Origin)
	result := app.Pipeline.Submit(ctx, m, &notes, func() {
		resp.Fragment = app.refreshOrigin(r, resp.Origin)
	})

	resp.Closed = result.Closed
	resp.Notifications = notes.Notifications()

	status := http.StatusOK
	if !result.Closed {
		status = http.StatusUnprocessableEntity
	}
	utils.RespondWithJSON(w, status, resp)
}

// refreshOrigin refetches the mounted view token and renders it. An
// unknown token or a superseded fetch renders nothing.
func (app *App) refreshOrigin(r *http.Request, token string) template.HTML {
	if token == "" {
		return ""
	}
	userID, _ := reqctx.GetUserID(r)
	v, ok := app.Views.Lookup(token, userID)
	if !ok {
		return ""
	}
	snap, fresh := v.Refresh(r.Context())
	if !fresh {
		return ""
	}
	html, err := app.renderView(r, token, v, snap)
	if err != nil {
		AppLogger.WithError(err).WithField("view", v.Name()).Error("Failed to render refreshed view")
		return ""
	}
	return html
}

// parseForm parses url-encoded and multipart bodies alike.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(formMemory)
	}
	return r.ParseForm()
}

func checkbox(r *http.Request, name string) bool {
	switch strings.ToLower(r.FormValue(name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// multi returns the non-empty values of a repeated field.
func multi(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.Form[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// formZone is the zone the dialog's date and time fields are in.
func (app *App) formZone(r *http.Request) *time.Location {
	return mutation.LoadZone(r.FormValue("tz"), app.zoneFor(r))
}

func (app *App) badForm(w http.ResponseWriter, err error) {
	AppLogger.WithError(err).Warn("Failed to parse form")
	utils.BadRequestError(w, "Invalid form data")
}

func (app *App) handleScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.ScheduleMeeting(mutation.ScheduleMeetingInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		StartTime:   r.FormValue("start_time"),
		EndTime:     r.FormValue("end_time"),
		Location:    r.FormValue("location"),
		IsVirtual:   checkbox(r, "is_virtual"),
		Attendees:   r.FormValue("attendees"),
		CommitteeID: r.FormValue("committee_id"),
		Zone:        app.formZone(r),
		OrganizerID: userID,
	}))
}

func (app *App) handleEditMeeting(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.EditMeeting(mutation.EditMeetingInput{
		ID:          mux.Vars(r)["id"],
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		StartTime:   r.FormValue("start_time"),
		EndTime:     r.FormValue("end_time"),
		IsVirtual:   checkbox(r, "is_virtual"),
		Location:    r.FormValue("location"),
		MeetingLink: r.FormValue("meeting_link"),
		Status:      r.FormValue("status"),
		IsAdHoc:     checkbox(r, "is_ad_hoc"),
		CommitteeID: r.FormValue("committee_id"),
		Zone:        app.formZone(r),
		ActorID:     userID,
	}))
}

// limitUpload caps the request body a little above the largest accepted
// file so the form fields still fit.
func (app *App) limitUpload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, app.Config.MaxUploadBytes+1<<20)
		next.ServeHTTP(w, r)
	})
}

func (app *App) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "The file is too large.")
			return
		}
		app.badForm(w, err)
		return
	}

	in := mutation.UploadDocumentInput{
		Title:     r.FormValue("title"),
		MeetingID: r.FormValue("meeting_id"),
		IsMinutes: checkbox(r, "is_minutes"),
	}
	in.UploaderID, _ = reqctx.GetUserID(r)

	var file multipart.File
	if f, header, err := r.FormFile("file"); err == nil {
		file = f
		in.File = f
		in.FileName = header.Filename
	}
	app.submit(w, r, app.Forms.UploadDocument(in))
	if file != nil {
		file.Close()
	}
}

func (app *App) handleCreateCommittee(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.CreateCommittee(mutation.CreateCommitteeInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		ChairID:     r.FormValue("chair_id"),
		MemberIDs:   multi(r, "member_ids"),
		ActorID:     userID,
	}))
}

func (app *App) handleCreateActionItem(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.CreateActionItem(mutation.CreateActionItemInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		MeetingID:   r.FormValue("meeting_id"),
		DueDate:     r.FormValue("due_date"),
		AssigneeIDs: multi(r, "assignee_ids"),
		Zone:        app.formZone(r),
		ActorID:     userID,
	}))
}

func (app *App) handleUpdateActionItemStatus(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.UpdateActionItemStatus(mux.Vars(r)["id"], r.FormValue("status"), userID))
}

func (app *App) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	userID, _ := reqctx.GetUserID(r)
	app.submit(w, r, app.Forms.UpdateProfile(mutation.UpdateProfileInput{
		ID:         userID,
		Name:       r.FormValue("name"),
		Department: r.FormValue("department"),
		Avatar:     r.FormValue("avatar"),
	}))
}
