package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"committeeDashboard/internal/authgate"
	"committeeDashboard/internal/dataservice/sqlstore"
	"committeeDashboard/internal/dataservice/storage"
	"committeeDashboard/internal/events"
	"committeeDashboard/internal/invites"
	"committeeDashboard/internal/mutation"
	"committeeDashboard/internal/realtime"
	"committeeDashboard/internal/services"
	"committeeDashboard/internal/utils"
	"committeeDashboard/internal/viewmodel"
)

type App struct {
	Config       *Config
	Store        *sqlstore.Store
	Storage      *storage.Disk
	SessionStore *sessions.CookieStore
	OAuthConfig  *oauth2.Config
	Auth         *services.AuthService
	Gate         *authgate.Gate
	Views        *viewmodel.Registry
	QueryCache   viewmodel.QueryCache
	Forms        *mutation.Forms
	Pipeline     *mutation.Pipeline
	Bus          events.Bus
	Hub          *realtime.Hub
	Templates    *TemplateCache
	Zone         *time.Location
	Now          func() time.Time

	readSheet SheetReader
	pingers   map[string]func(context.Context) error
	closers   []func() error
}

// Integrations are the optional backends. Nil fields fall back to
// in-process implementations.
type Integrations struct {
	Bus     events.Bus
	Cache   viewmodel.QueryCache
	Inviter invites.Inviter
	Pingers map[string]func(context.Context) error
	Closers []func() error
}

func NewApp(config *Config, store *sqlstore.Store, disk *storage.Disk, in Integrations) (*App, error) {
	logger := AppLogger.Slog()

	sessionStore := sessions.NewCookieStore(config.SessionSecret)
	sessionStore.MaxAge(config.SessionMaxAge)
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   config.SessionMaxAge,
		HttpOnly: true,
		Secure:   config.Environment == "production",
		SameSite: http.SameSiteLaxMode, // Lax so the Google redirect keeps the cookie
	}

	if in.Bus == nil {
		in.Bus = events.NewLocalBus()
	}
	if in.Cache == nil {
		in.Cache = viewmodel.NewLocalCache(config.QueryCacheTTL)
	}
	if in.Inviter == nil {
		in.Inviter = invites.NewInline(invites.NewWorker(store, logger))
	}

	app := &App{
		Config:       config,
		Store:        store,
		Storage:      disk,
		SessionStore: sessionStore,
		Auth:         services.NewAuthService(store, utils.NewProfileCache(5*time.Minute), logger),
		Views:        viewmodel.NewRegistry(config.ViewIdleTTL, logger),
		QueryCache:   in.Cache,
		Bus:          in.Bus,
		Hub:          realtime.NewHub(logger),
		Templates:    NewTemplateCache("templates"),
		Zone:         config.Location(),
		Now:          time.Now,
		pingers:      in.Pingers,
		closers:      in.Closers,
	}
	app.readSheet = app.fetchSheet
	app.Gate = authgate.New(authgate.CheckerFunc(app.checkSession), "/auth", logger)
	app.Forms = mutation.NewForms(store, disk, in.Inviter, logger)
	app.Pipeline = mutation.NewPipeline(logger, mutation.NewAuditLog(store, logger), events.Observer(in.Bus, logger))

	if config.GoogleEnabled() {
		app.OAuthConfig = &oauth2.Config{
			ClientID:     config.GoogleClientID,
			ClientSecret: config.GoogleClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/spreadsheets.readonly",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}

	for _, h := range []events.Handler{
		events.Invalidator(app.QueryCache, logger),
		app.Hub.HandleEvent,
		app.forgetChangedProfile,
	} {
		unsubscribe, err := app.Bus.Subscribe(h)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { unsubscribe(); return nil })
	}

	return app, nil
}

// forgetChangedProfile drops cached profiles so role and name changes
// reach the session check on the next request. A change without an id
// touched many profiles.
func (app *App) forgetChangedProfile(_ context.Context, e events.Event) {
	if e.Entity != "profiles" {
		return
	}
	if e.ID == "" {
		app.Auth.ForgetAll()
		return
	}
	app.Auth.Forget(e.ID)
}

func (app *App) Routes() http.Handler {
	r := mux.NewRouter()

	r.Use(app.RecoveryMiddleware)
	r.Use(app.LoggingMiddleware)
	r.Use(app.RateLimitMiddleware())

	r.HandleFunc("/livez", app.handleLivez).Methods("GET")
	r.HandleFunc("/readyz", app.handleReadyz).Methods("GET")

	r.HandleFunc("/auth", app.handleAuthPage).Methods("GET")
	r.HandleFunc("/auth/login", app.handlePasswordLogin).Methods("POST")
	r.HandleFunc("/auth/signup", app.handleSignUp).Methods("POST")
	r.HandleFunc("/auth/google", app.handleLogin).Methods("GET")
	r.HandleFunc("/auth/callback", app.handleAuthCallback).Methods("GET")
	r.Handle("/auth/logout", app.Gate.Require(app.CSRFMiddleware(app.handleLogout))).Methods("POST")
	r.Handle("/api/session", app.Gate.Optional(http.HandlerFunc(app.handleSessionStatus))).Methods("GET")

	page := func(h http.HandlerFunc) http.Handler { return app.Gate.Require(h) }
	write := func(h http.HandlerFunc) http.Handler { return app.Gate.Require(app.CSRFMiddleware(h)) }

	r.Handle("/", page(app.handleDashboard)).Methods("GET")
	r.Handle("/meetings", page(app.handleMeetings)).Methods("GET")
	r.Handle("/meetings", write(app.handleScheduleMeeting)).Methods("POST")
	r.Handle("/meetings/{id}", page(app.handleMeetingDetail)).Methods("GET")
	r.Handle("/meetings/{id}", write(app.handleEditMeeting)).Methods("POST")
	r.Handle("/meetings/{id}/calendar.ics", page(app.handleMeetingCalendar)).Methods("GET")
	r.Handle("/committees", page(app.handleCommittees)).Methods("GET")
	r.Handle("/committees", write(app.handleCreateCommittee)).Methods("POST")
	r.Handle("/documents", page(app.handleDocuments)).Methods("GET")
	r.Handle("/documents", app.limitUpload(write(app.handleUploadDocument))).Methods("POST")
	r.Handle("/action-items", page(app.handleActionItems)).Methods("GET")
	r.Handle("/action-items", write(app.handleCreateActionItem)).Methods("POST")
	r.Handle("/action-items/{id}/status", write(app.handleUpdateActionItemStatus)).Methods("POST")
	r.Handle("/actions", http.RedirectHandler("/action-items", http.StatusMovedPermanently)).Methods("GET")
	r.Handle("/settings", page(app.handleSettings)).Methods("GET")
	r.Handle("/settings/profile", write(app.handleUpdateProfile)).Methods("POST")
	r.Handle("/settings/roster", write(app.handleImportRoster)).Methods("POST")
	r.Handle("/api/roster/preview", write(app.handlePreviewSheet)).Methods("POST")

	r.Handle("/views/{token}", page(app.handleViewFragment)).Methods("GET")
	r.Handle("/views/{token}", write(app.handleUnmountView)).Methods("DELETE")
	r.Handle("/api/views/{token}", page(app.handleViewJSON)).Methods("GET")
	r.Handle("/ws", page(app.handleWebSocket)).Methods("GET")

	r.HandleFunc("/404", app.handleNotFound).Methods("GET")
	r.PathPrefix("/storage/").Handler(app.Gate.Require(app.Storage.Handler()))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("./static/"))))

	r.NotFoundHandler = http.RedirectHandler("/404", http.StatusSeeOther)

	return r
}

// Close releases the integrations in reverse order of creation.
func (app *App) Close() {
	app.Hub.Close()
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			AppLogger.WithError(err).Warn("Failed to close integration")
		}
	}
}

// connectIntegrations dials the optional backends named in the config.
// The returned function starts the background workers they need.
func connectIntegrations(ctx context.Context, config *Config, store *sqlstore.Store) (Integrations, func(context.Context), error) {
	logger := AppLogger.Slog()
	in := Integrations{Pingers: map[string]func(context.Context) error{}}
	var workers []func(context.Context)

	if config.RedisURL != "" {
		cache, err := viewmodel.NewRedisCache(ctx, config.RedisURL)
		if err != nil {
			return in, nil, err
		}
		in.Cache = cache
		in.Pingers["redis"] = cache.Ping
		in.Closers = append(in.Closers, cache.Close)

		queue, err := invites.NewQueue(config.RedisURL)
		if err != nil {
			return in, nil, err
		}
		in.Inviter = queue
		in.Closers = append(in.Closers, queue.Close)

		server, err := invites.NewServer(config.RedisURL, config.InviteConcurrency, "", invites.NewWorker(store, logger), logger)
		if err != nil {
			return in, nil, err
		}
		workers = append(workers, func(ctx context.Context) {
			if err := server.Run(ctx); err != nil {
				AppLogger.WithError(err).Error("Invitation worker stopped")
			}
		})
		AppLogger.Info("Redis query cache and invitation queue enabled")
	}

	if config.NATSURL != "" {
		bus, err := events.ConnectNATS(config.NATSURL, logger)
		if err != nil {
			return in, nil, err
		}
		in.Bus = bus
		in.Pingers["nats"] = bus.Ping
		in.Closers = append(in.Closers, bus.Close)
		AppLogger.Info("NATS event bus enabled")
	}

	start := func(ctx context.Context) {
		for _, w := range workers {
			go w(ctx)
		}
	}
	return in, start, nil
}

func main() {
	config, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	InitializeLogger(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, config)
	if err != nil {
		AppLogger.WithError(err).Fatal("Failed to open data store")
	}
	defer store.Close()

	disk, err := storage.NewDisk(config.StorageDir, config.PublicBaseURL, config.MaxUploadBytes)
	if err != nil {
		AppLogger.WithError(err).Fatal("Failed to prepare object storage")
	}

	integrations, startWorkers, err := connectIntegrations(ctx, config, store)
	if err != nil {
		AppLogger.WithError(err).Fatal("Failed to connect integrations")
	}

	app, err := NewApp(config, store, disk, integrations)
	if err != nil {
		AppLogger.WithError(err).Fatal("Failed to build application")
	}
	defer app.Close()
	startWorkers(ctx)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		AppLogger.WithFields(map[string]interface{}{
			"port":        config.Port,
			"environment": config.Environment,
			"google":      config.GoogleEnabled(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			AppLogger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	AppLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.Hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		AppLogger.WithError(err).Error("Graceful shutdown failed")
	}
}
