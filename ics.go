package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gorilla/mux"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/render"
	"committeeDashboard/internal/utils"
	"committeeDashboard/internal/viewmodel"
)

const calendarProductID = "-//Committee Dashboard//Meetings//EN"

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// writeMeetingCalendar encodes m as a single-event calendar.
func writeMeetingCalendar(w io.Writer, m viewmodel.MeetingRecord, host string, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductID)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, m.ID+"@"+host)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, m.StartTime.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, m.EndTime.UTC())
	event.Props.SetText(ical.PropSummary, m.Title)
	if m.Description != "" {
		event.Props.SetText(ical.PropDescription, m.Description)
	}
	if location := render.LocationText(m); location != "" {
		event.Props.SetText(ical.PropLocation, location)
	}
	if m.IsVirtual && m.MeetingLink != "" {
		event.Props.SetText(ical.PropURL, m.MeetingLink)
	}

	status := "CONFIRMED"
	if m.Status == "cancelled" {
		status = "CANCELLED"
	}
	event.Props.SetText(ical.PropStatus, status)

	cal.Children = append(cal.Children, event.Component)
	return ical.NewEncoder(w).Encode(cal)
}

// calendarFileName is a download name derived from the meeting title.
func calendarFileName(title string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if name == "" {
		name = "meeting"
	}
	return name + ".ics"
}

func (app *App) handleMeetingCalendar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fetcher := viewmodel.NewFetcher(app.Store, viewmodel.MeetingDetailSpec(id), viewmodel.DecodeMeetingDetail)

	meeting, err := viewmodel.FetchOne[viewmodel.MeetingDetailRecord](r.Context(), fetcher)
	if dataservice.IsNotFound(err) {
		utils.NotFoundError(w, "Meeting")
		return
	}
	if err != nil {
		AppLogger.WithError(err).WithField("meeting_id", id).Error("Failed to load meeting for calendar export")
		utils.InternalServerError(w, "Failed to load meeting")
		return
	}

	var buf bytes.Buffer
	if err := writeMeetingCalendar(&buf, meeting.MeetingRecord, r.Host, app.Now()); err != nil {
		AppLogger.WithError(err).WithField("meeting_id", id).Error("Failed to encode calendar")
		utils.InternalServerError(w, "Failed to export meeting")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", calendarFileName(meeting.Title)))
	buf.WriteTo(w)
}
