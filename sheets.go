package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"committeeDashboard/internal/dataservice"
	"committeeDashboard/internal/models"
	"committeeDashboard/internal/mutation"
	"committeeDashboard/internal/services"
	"committeeDashboard/internal/utils"
	reqctx "committeeDashboard/utils"
)

// SheetData is the first sheet of a spreadsheet within the roster range.
type SheetData struct {
	Title string
	Rows  [][]interface{}
}

// SheetReader reads a spreadsheet with the given token.
type SheetReader func(ctx context.Context, spreadsheetID string, token *oauth2.Token) (*SheetData, error)

// PreviewRequest is the roster preview request body
type PreviewRequest struct {
	SheetURL string `json:"sheet_url"`
}

// PreviewResponse describes a sheet before it is imported
type PreviewResponse struct {
	SheetName string        `json:"sheet_name"`
	Columns   []string      `json:"columns"`
	RowCount  int           `json:"row_count"`
	Entries   []RosterEntry `json:"entries"`
	Skipped   int           `json:"skipped"`
}

// RosterEntry is one person read from a roster sheet.
type RosterEntry struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
}

// rosterColumns is the column order assumed when a sheet has no header row.
var rosterColumns = []string{"name", "email", "department", "role"}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("could not extract spreadsheet ID from URL")
	}
	return matches[1], nil
}

func cellText(cell interface{}) string {
	if cell == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", cell))
}

// parseRoster turns sheet rows into roster entries. A first row holding an
// "email" cell is a header and fixes the column order. Rows without a
// valid email are skipped; unknown roles are dropped so the stored role
// is kept.
func parseRoster(rows [][]interface{}) (entries []RosterEntry, columns []string, skipped int) {
	index := map[string]int{}
	for i, name := range rosterColumns {
		index[name] = i
	}
	columns = rosterColumns

	if len(rows) > 0 {
		header := map[string]int{}
		var names []string
		for i, cell := range rows[0] {
			name := strings.ToLower(cellText(cell))
			names = append(names, name)
			if name != "" {
				header[name] = i
			}
		}
		if _, ok := header["email"]; ok {
			index = header
			columns = names
			rows = rows[1:]
		}
	}

	at := func(row []interface{}, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return cellText(row[i])
	}

	for _, row := range rows {
		email := strings.ToLower(at(row, "email"))
		if email == "" || mutation.NewValidator().Email(email, "email").HasErrors() {
			skipped++
			continue
		}
		entry := RosterEntry{
			Name:       mutation.Sanitize(at(row, "name")),
			Email:      email,
			Department: mutation.Sanitize(at(row, "department")),
		}
		if entry.Name == "" {
			entry.Name = strings.SplitN(email, "@", 2)[0]
		}
		role := strings.ToLower(at(row, "role"))
		for _, known := range models.Roles {
			if role == known {
				entry.Role = role
			}
		}
		entries = append(entries, entry)
	}
	return entries, columns, skipped
}

// fetchSheet reads the roster range of the first sheet with the Sheets API.
func (app *App) fetchSheet(ctx context.Context, spreadsheetID string, token *oauth2.Token) (*SheetData, error) {
	client := app.OAuthConfig.Client(ctx, token)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}

	spreadsheet, err := srv.Spreadsheets.Get(spreadsheetID).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve spreadsheet metadata: %w", err)
	}

	sheetName := "Sheet1"
	if len(spreadsheet.Sheets) > 0 && spreadsheet.Sheets[0].Properties != nil {
		sheetName = spreadsheet.Sheets[0].Properties.Title
	}

	resp, err := srv.Spreadsheets.Values.Get(spreadsheetID, app.Config.RosterRange).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet: %w", err)
	}
	return &SheetData{Title: sheetName, Rows: resp.Values}, nil
}

// googleToken loads the user's stored Google token, refreshing it when
// expired.
func (app *App) googleToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	token, err := app.Auth.OAuthToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return app.refreshTokenIfNeeded(ctx, userID, token)
}

func (app *App) refreshTokenIfNeeded(ctx context.Context, userID string, token *oauth2.Token) (*oauth2.Token, error) {
	if token.Valid() {
		return token, nil
	}

	if token.RefreshToken == "" {
		return nil, services.ErrNoToken
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	newToken, err := app.OAuthConfig.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if err := app.Auth.SaveOAuthToken(ctx, userID, newToken); err != nil {
			AppLogger.WithError(err).WithField("user_id", userID).Warn("Failed to save refreshed token")
		}
	}
	return newToken, nil
}

// readRoster resolves the sheet URL and reads it as the given user.
func (app *App) readRoster(ctx context.Context, userID, sheetURL string) (*SheetData, error) {
	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, err
	}
	token, err := app.googleToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return app.readSheet(ctx, spreadsheetID, token)
}

// rosterImport upserts the people of a roster sheet into profiles.
type rosterImport struct {
	app      *App
	sheetURL string
	actorID  string
	imported int
	skipped  int
}

func (m *rosterImport) Validate() error {
	if strings.TrimSpace(m.sheetURL) == "" {
		return mutation.Invalid("sheet_url", "Sheet URL is required")
	}
	if _, err := extractSpreadsheetID(m.sheetURL); err != nil {
		return mutation.Invalid("sheet_url", "Invalid Google Sheets URL")
	}
	return nil
}

func (m *rosterImport) Write(ctx context.Context) (mutation.Change, error) {
	change := mutation.Change{Entity: "profiles", Action: "import", ActorID: m.actorID}

	sheet, err := m.app.readRoster(ctx, m.actorID, m.sheetURL)
	if errors.Is(err, services.ErrNoToken) {
		return change, &mutation.UserError{Message: "Sign in with Google to import a roster."}
	}
	if err != nil {
		return change, err
	}

	entries, _, skipped := parseRoster(sheet.Rows)
	m.skipped = skipped
	if len(entries) == 0 {
		return change, &mutation.UserError{Message: "No people found in the sheet."}
	}

	for _, e := range entries {
		record := dataservice.Row{"email": e.Email, "name": e.Name}
		if e.Department != "" {
			record["department"] = e.Department
		}
		if e.Role != "" {
			record["role"] = e.Role
		}
		if err := m.app.Store.Upsert(ctx, "profiles", "email", record); err != nil {
			return change, fmt.Errorf("upsert %s: %w", e.Email, err)
		}
		m.imported++
	}

	change.Details = map[string]any{"sheet": sheet.Title, "imported": m.imported, "skipped": m.skipped}
	return change, nil
}

func (m *rosterImport) Succeeded() []mutation.Notification {
	desc := fmt.Sprintf("Imported %d people.", m.imported)
	if m.skipped > 0 {
		desc = fmt.Sprintf("Imported %d people, skipped %d rows without a valid email.", m.imported, m.skipped)
	}
	return []mutation.Notification{{Title: "Success", Description: desc, Variant: mutation.VariantDefault}}
}

func (m *rosterImport) Failed(err error) mutation.Notification {
	desc := "Failed to import roster"
	var ue *mutation.UserError
	if errors.As(err, &ue) {
		desc = ue.Message
	}
	return mutation.Notification{Title: "Import failed", Description: desc, Variant: mutation.VariantDestructive}
}

// requireImporter checks that roster import is available to the caller.
func (app *App) requireImporter(w http.ResponseWriter, r *http.Request) (string, bool) {
	if app.OAuthConfig == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Google integration is not configured")
		return "", false
	}
	if !reqctx.IsAdmin(r) {
		utils.AuthorizationError(w)
		return "", false
	}
	userID, _ := reqctx.GetUserID(r)
	return userID, true
}

func (app *App) handleImportRoster(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireImporter(w, r)
	if !ok {
		return
	}
	if err := parseForm(r); err != nil {
		app.badForm(w, err)
		return
	}
	app.submit(w, r, &rosterImport{app: app, sheetURL: r.FormValue("sheet_url"), actorID: userID})
}

func (app *App) handlePreviewSheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireImporter(w, r)
	if !ok {
		return
	}

	var previewReq PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&previewReq); err != nil {
		utils.BadRequestError(w, "Invalid request body")
		return
	}

	sheet, err := app.readRoster(r.Context(), userID, strings.TrimSpace(previewReq.SheetURL))
	switch {
	case errors.Is(err, services.ErrNoToken):
		utils.BadRequestError(w, "Sign in with Google to import a roster.")
		return
	case err != nil:
		AppLogger.WithError(err).WithField("user_id", userID).Warn("Failed to preview roster")
		utils.BadRequestError(w, "Failed to read the sheet. Check the URL and sharing settings.")
		return
	}

	entries, columns, skipped := parseRoster(sheet.Rows)
	if entries == nil {
		entries = []RosterEntry{}
	}
	utils.RespondWithJSON(w, http.StatusOK, PreviewResponse{
		SheetName: sheet.Title,
		Columns:   columns,
		RowCount:  len(entries) + skipped,
		Entries:   entries,
		Skipped:   skipped,
	})
}
