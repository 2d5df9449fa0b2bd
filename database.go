package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"committeeDashboard/internal/dataservice/sqlstore"
	"committeeDashboard/internal/services"
	"committeeDashboard/internal/utils"
)

// openStore connects the configured data backend and brings its schema up
// to date. With SEED_DEMO the demo organization is created on first start.
func openStore(ctx context.Context, config *Config) (*sqlstore.Store, error) {
	logger := AppLogger.Slog()

	var (
		store *sqlstore.Store
		err   error
	)
	switch config.DataBackend {
	case "postgres":
		store, err = sqlstore.ConnectPostgres(ctx, config.DatabaseURL, logger)
	default:
		store, err = sqlstore.OpenSQLite(ctx, config.DatabasePath, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if config.SeedDemo {
		hash, err := services.HashPassword(config.DemoAdminPassword)
		if err != nil {
			store.Close()
			return nil, err
		}
		if err := sqlstore.SeedDemo(ctx, store, time.Now(), hash); err != nil {
			store.Close()
			return nil, err
		}
		AppLogger.WithField("email", sqlstore.DemoAdminEmail).Info("Demo data ready")
	}

	AppLogger.WithFields(map[string]interface{}{
		"backend": store.Dialect().String(),
	}).Info("Data store ready")
	return store, nil
}

func (app *App) handleLivez(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

// handleReadyz reports ready once the data store and every configured
// integration answer a ping.
func (app *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, ping := range app.readiness() {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		AppLogger.WithField("checks", checks).Warn("Readiness check failed")
	}
	utils.RespondWithJSON(w, code, map[string]interface{}{"ready": healthy, "checks": checks})
}

func (app *App) readiness() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{"store": app.Store.Ping}
	for name, ping := range app.pingers {
		checks[name] = ping
	}
	return checks
}
