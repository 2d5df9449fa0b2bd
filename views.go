package main

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/render"
	"committeeDashboard/internal/utils"
	"committeeDashboard/internal/viewmodel"
	reqctx "committeeDashboard/utils"
)

// Widget is a mounted view as placed on a page: the token the page script
// refetches it by and its first render, which is the loading skeleton.
type Widget struct {
	Name     string
	Token    string
	Entities string
	HTML     template.HTML
}

// FragmentData is what a view fragment template renders.
type FragmentData struct {
	View      string
	Token     string
	List      render.List
	Snapshot  viewmodel.Snapshot
	Zone      *time.Location
	Now       time.Time
	CSRFToken string
	IsAdmin   bool
	Extra     interface{}
}

// MeetingDetailData is the extra data of the meeting details fragment.
type MeetingDetailData struct {
	Meeting    *viewmodel.MeetingDetailRecord
	Committees []viewmodel.Option
}

var viewKinds = map[string]render.Kind{
	"meetings":            render.KindMeetings,
	"documents":           render.KindDocuments,
	"actionItems":         render.KindActionItems,
	"committees":          render.KindCommittees,
	"upcomingMeetings":    render.KindWidget,
	"recentDocuments":     render.KindWidget,
	"topActionItems":      render.KindWidget,
	"dashboardCommittees": render.KindWidget,
	"weekMeetings":        render.KindWidget,
	"stats":               render.KindWidget,
	"meetingDetail":       render.KindWidget,
}

// mount registers v for the signed-in user and renders its skeleton.
func (app *App) mount(r *http.Request, v viewmodel.Mounted) Widget {
	userID, _ := reqctx.GetUserID(r)
	token := app.Views.Mount(userID, v)

	html, err := app.renderView(r, token, v, v.Snapshot())
	if err != nil {
		AppLogger.WithError(err).WithField("view", v.Name()).Error("Failed to render view skeleton")
	}
	return Widget{
		Name:     v.Name(),
		Token:    token,
		Entities: strings.Join(v.Entities(), ","),
		HTML:     html,
	}
}

// mountAll mounts views into data's widget slots keyed by view name.
func (app *App) mountAll(r *http.Request, data *TemplateData, views ...viewmodel.Mounted) {
	for _, v := range views {
		data.Widgets[v.Name()] = app.mount(r, v)
	}
}

// renderView renders snap with the fragment template of v.
func (app *App) renderView(r *http.Request, token string, v viewmodel.Mounted, snap viewmodel.Snapshot) (template.HTML, error) {
	name := v.Name()
	data := FragmentData{
		View:     name,
		Token:    token,
		List:     render.NewList(viewKinds[name], snap),
		Snapshot: snap,
		Zone:     app.zoneFor(r),
		Now:      app.Now(),
	}
	data.List.Token = token
	if sd, ok := reqctx.GetSession(r); ok {
		data.CSRFToken = sd.CSRFToken
		data.IsAdmin = sd.IsAdmin()
	}
	if !snap.Loading() {
		data.Extra = app.fragmentExtra(r.Context(), name, snap, data.Zone)
	}
	return app.Templates.RenderFragment("view-"+name, data)
}

func (app *App) fragmentExtra(ctx context.Context, name string, snap viewmodel.Snapshot, zone *time.Location) interface{} {
	switch name {
	case "weekMeetings":
		meetings, _ := snap.Records.([]viewmodel.MeetingRecord)
		return render.Week(meetings, app.Now(), zone)
	case "stats":
		if stats, _ := snap.Records.([]render.Stats); len(stats) > 0 {
			return stats[0]
		}
		return render.Stats{}
	case "topActionItems":
		items, _ := snap.Records.([]viewmodel.ActionItemRecord)
		return render.CompletionRate(items)
	case "meetingDetail":
		details, _ := snap.Records.([]viewmodel.MeetingDetailRecord)
		if len(details) == 0 {
			return MeetingDetailData{}
		}
		return MeetingDetailData{
			Meeting:    &details[0],
			Committees: app.options(ctx, viewmodel.CommitteeOptionsSpec()),
		}
	}
	return nil
}

// options loads select options. A failed read leaves the select empty.
func (app *App) options(ctx context.Context, spec viewmodel.Spec) []viewmodel.Option {
	opts, err := viewmodel.NewFetcher(app.Store, spec, viewmodel.DecodeOption).Fetch(ctx)
	if err != nil {
		AppLogger.WithError(err).WithField("spec", spec.Name).Warn("Failed to load options")
		return []viewmodel.Option{}
	}
	return opts
}

func (app *App) lookupView(w http.ResponseWriter, r *http.Request) (string, viewmodel.Mounted, bool) {
	userID, _ := reqctx.GetUserID(r)
	token := mux.Vars(r)["token"]
	v, ok := app.Views.Lookup(token, userID)
	if !ok {
		utils.NotFoundError(w, "View")
		return "", nil, false
	}
	return token, v, true
}

// handleViewFragment refetches a mounted view and returns its fragment.
// 204 means a newer fetch of the same view superseded this one.
func (app *App) handleViewFragment(w http.ResponseWriter, r *http.Request) {
	token, v, ok := app.lookupView(w, r)
	if !ok {
		return
	}

	snap, fresh := v.Refresh(r.Context())
	if !fresh {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	html, err := app.renderView(r, token, v, snap)
	if err != nil {
		AppLogger.WithError(err).WithField("view", v.Name()).Error("Failed to render view")
		utils.InternalServerError(w, "Failed to render view")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-View-Status", snap.State)
	w.Write([]byte(html))
}

// handleViewJSON refetches a mounted view and returns its records.
func (app *App) handleViewJSON(w http.ResponseWriter, r *http.Request) {
	_, v, ok := app.lookupView(w, r)
	if !ok {
		return
	}

	snap, fresh := v.Refresh(r.Context())
	if !fresh {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	utils.RespondWithJSON(w, http.StatusOK, snap)
}

func (app *App) handleUnmountView(w http.ResponseWriter, r *http.Request) {
	userID, _ := reqctx.GetUserID(r)
	app.Views.Unmount(mux.Vars(r)["token"], userID)
	w.WriteHeader(http.StatusNoContent)
}

// statsFetcher computes the dashboard counters from three reads.
type statsFetcher struct {
	week      viewmodel.Fetcher[viewmodel.MeetingRecord]
	items     viewmodel.Fetcher[viewmodel.ActionItemRecord]
	documents viewmodel.Fetcher[viewmodel.DocumentRecord]
	now       func() time.Time
}

func (f *statsFetcher) Entities() []string {
	return []string{"action_items", "documents", "meetings"}
}

func (f *statsFetcher) Fetch(ctx context.Context) ([]render.Stats, error) {
	week, err := f.week.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	items, err := f.items.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := f.documents.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return []render.Stats{render.ComputeStats(week, items, len(docs), f.now())}, nil
}

// upcomingBound is the lower start_time bound of the upcoming widget. It
// moves in whole minutes so cached reads within a minute share a key.
func upcomingBound(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute)
}

// weekBounds is the Monday-to-Monday span holding now in loc.
func weekBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := render.WeekStart(now.In(loc))
	return start, start.AddDate(0, 0, 7)
}

func (app *App) newMeetingsView() viewmodel.Mounted {
	return viewmodel.NewView("meetings", viewmodel.NewFetcher(app.Store, viewmodel.MeetingsSpec(), viewmodel.DecodeMeeting), AppLogger.Slog())
}

func (app *App) newDocumentsView(name string, limit int) viewmodel.Mounted {
	return viewmodel.NewView(name, viewmodel.NewFetcher(app.Store, viewmodel.DocumentsSpec(limit), viewmodel.DecodeDocument), AppLogger.Slog())
}

func (app *App) newActionItemsView(name string, limit int) viewmodel.Mounted {
	return viewmodel.NewView(name, viewmodel.NewFetcher(app.Store, viewmodel.ActionItemsSpec(limit), viewmodel.DecodeActionItem), AppLogger.Slog())
}

func (app *App) newCommitteesView(name string) viewmodel.Mounted {
	return viewmodel.NewView(name, viewmodel.NewFetcher(app.Store, viewmodel.CommitteesSpec(), viewmodel.DecodeCommittee), AppLogger.Slog())
}

func (app *App) newMeetingDetailView(id string) viewmodel.Mounted {
	return viewmodel.NewView("meetingDetail", viewmodel.NewFetcher(app.Store, viewmodel.MeetingDetailSpec(id), viewmodel.DecodeMeetingDetail), AppLogger.Slog())
}

// newDashboardViews builds the dashboard widgets for userID. Upcoming
// meetings are served from the query cache. Time bounds are taken from
// app.Now on every refresh.
func (app *App) newDashboardViews(userID string, zone *time.Location) []viewmodel.Mounted {
	logger := AppLogger.Slog()

	upcoming := viewmodel.NewCachedFetcher(
		viewmodel.NewFetcherFunc(app.Store, func() viewmodel.Spec {
			return viewmodel.UpcomingMeetingsSpec(upcomingBound(app.Now()), 5)
		}, viewmodel.DecodeMeeting),
		app.QueryCache, userID, app.Config.QueryCacheTTL, logger)
	week := viewmodel.NewFetcherFunc(app.Store, func() viewmodel.Spec {
		return viewmodel.WeekMeetingsSpec(weekBounds(app.Now(), zone))
	}, viewmodel.DecodeMeeting)
	stats := &statsFetcher{
		week:      week,
		items:     viewmodel.NewFetcher(app.Store, viewmodel.ActionItemsSpec(0), viewmodel.DecodeActionItem),
		documents: viewmodel.NewFetcher(app.Store, documentIDsSpec(), viewmodel.DecodeDocument),
		now:       app.Now,
	}

	return []viewmodel.Mounted{
		viewmodel.NewView("stats", viewmodel.Fetcher[render.Stats](stats), logger),
		viewmodel.NewView("upcomingMeetings", viewmodel.Fetcher[viewmodel.MeetingRecord](upcoming), logger),
		viewmodel.NewView("weekMeetings", viewmodel.Fetcher[viewmodel.MeetingRecord](week), logger),
		app.newActionItemsView("topActionItems", 5),
		app.newCommitteesView("dashboardCommittees"),
		app.newDocumentsView("recentDocuments", 5),
	}
}

// documentIDsSpec reads just enough of every document to count them.
func documentIDsSpec() viewmodel.Spec {
	return viewmodel.Spec{
		Name:    "documentCount",
		Entity:  "documents",
		Columns: []string{"id", "title", "url", "uploaded_at"},
		Order:   dataservice.Desc("uploaded_at"),
	}
}

func (app *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, _ := reqctx.GetUserID(r)
	app.Hub.Serve(w, r, userID)
}
