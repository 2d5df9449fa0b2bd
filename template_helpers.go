package main

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"committeeDashboard/internal/models"
	"committeeDashboard/internal/mutation"
	"committeeDashboard/internal/render"
	"committeeDashboard/internal/viewmodel"
	reqctx "committeeDashboard/utils"
)

const fragmentsFile = "fragments.html"

// TemplateCache holds parsed templates with inheritance support
type TemplateCache struct {
	dir       string
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateCache creates a new template cache reading from dir
func NewTemplateCache(dir string) *TemplateCache {
	return &TemplateCache{
		dir:       dir,
		templates: make(map[string]*template.Template),
	}
}

// GetTemplate returns a cached template or loads it if not cached. Pages
// are parsed with the base layout and the view fragments; the empty name
// loads the fragments alone.
func (tc *TemplateCache) GetTemplate(name string) (*template.Template, error) {
	tc.mutex.RLock()
	tmpl, exists := tc.templates[name]
	tc.mutex.RUnlock()

	if exists {
		return tmpl, nil
	}

	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	// Double-check after acquiring write lock
	if tmpl, exists := tc.templates[name]; exists {
		return tmpl, nil
	}

	files := []string{filepath.Join(tc.dir, fragmentsFile)}
	if name != "" {
		files = append(files, filepath.Join(tc.dir, "base.html"), filepath.Join(tc.dir, name+".html"))
	}

	tmpl, err := template.New("").Funcs(CreateTemplateFuncMap()).ParseFiles(files...)
	if err != nil {
		AppLogger.WithError(err).WithField("template", name).Error("Failed to parse template")
		return nil, err
	}

	tc.templates[name] = tmpl
	return tmpl, nil
}

// RenderTemplate renders a page with the given data. Output is buffered so
// a failing template never sends half a page.
func (tc *TemplateCache) RenderTemplate(w http.ResponseWriter, name string, data interface{}) error {
	return tc.RenderTemplateStatus(w, http.StatusOK, name, data)
}

// RenderTemplateStatus is RenderTemplate with an explicit status code.
func (tc *TemplateCache) RenderTemplateStatus(w http.ResponseWriter, status int, name string, data interface{}) error {
	tmpl, err := tc.GetTemplate(name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// RenderFragment renders the named fragment to HTML.
func (tc *TemplateCache) RenderFragment(name string, data interface{}) (template.HTML, error) {
	tmpl, err := tc.GetTemplate("")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// ClearCache clears the template cache (useful for development)
func (tc *TemplateCache) ClearCache() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.templates = make(map[string]*template.Template)
}

// ConditionalClass adds a CSS class conditionally
func ConditionalClass(baseClass, conditionalClass string, condition bool) string {
	if condition {
		return baseClass + " " + conditionalClass
	}
	return baseClass
}

func inZone(t time.Time, layout string, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// CreateTemplateFuncMap creates a function map for templates
func CreateTemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		"badge":   render.StatusBadge,
		"label":   render.StatusLabel,
		"avatar":  render.AvatarFor,
		"initial": render.AvatarInitial,
		"stack": func(people []viewmodel.PersonRef) render.AvatarStack {
			return render.Stack(people, 5)
		},
		"timeRange":    render.TimeRange,
		"clockRange":   render.ClockRange,
		"locationText": render.LocationText,
		"description":  render.Description,
		"truncate": func(s string) string {
			return render.Truncate(s, render.DescriptionLimit)
		},
		"attendees": render.AttendeesText,
		"due":       render.DueText,
		"date": func(t time.Time, loc *time.Location) string {
			return inZone(t, render.LayoutDate, loc)
		},
		"longDate": func(t time.Time, loc *time.Location) string {
			return inZone(t, render.LayoutLongDate, loc)
		},
		"datetime": func(t time.Time, loc *time.Location) string {
			return inZone(t, render.LayoutDateTime, loc)
		},
		"inputDate": func(t time.Time, loc *time.Location) string {
			return inZone(t, mutation.DateLayout, loc)
		},
		"inputClock": func(t time.Time, loc *time.Location) string {
			return inZone(t, "15:04", loc)
		},
		"meetingStatuses":    func() []string { return mutation.MeetingStatuses },
		"actionItemStatuses": func() []string { return mutation.ActionItemStatuses },
		"roles":              func() []string { return models.Roles },
		"conditionalClass":   ConditionalClass,
		"join":               strings.Join,
	}
}

// TemplateData represents the common data structure for all templates
type TemplateData struct {
	Title  string
	Active string

	// User information
	User            *models.SessionData
	IsAuthenticated bool
	IsAdmin         bool
	UserInitial     string

	// Security
	CSRFToken string

	GoogleEnabled bool
	AssetSuffix   string
	Zone          *time.Location
	Now           time.Time

	// Mounted views by slot
	Widgets map[string]Widget

	// Page-specific data
	PageData interface{}
}

// BuildTemplateData builds common template data from request context
func (app *App) BuildTemplateData(r *http.Request, title, active string, pageData interface{}) *TemplateData {
	data := &TemplateData{
		Title:         title,
		Active:        active,
		GoogleEnabled: app.OAuthConfig != nil,
		AssetSuffix:   app.assetSuffix(),
		Zone:          app.zoneFor(r),
		Now:           app.Now(),
		Widgets:       map[string]Widget{},
		PageData:      pageData,
	}

	if sd, ok := reqctx.GetSession(r); ok {
		data.User = sd
		data.IsAuthenticated = true
		data.IsAdmin = sd.IsAdmin()
		data.UserInitial = render.AvatarInitial(sd.Name)
		data.CSRFToken = sd.CSRFToken
	}

	return data
}

// assetSuffix selects the minified stylesheet and script in production,
// once scripts/minify.go has produced them.
func (app *App) assetSuffix() string {
	if app.Config.Environment != "production" {
		return ""
	}
	if _, err := os.Stat(filepath.Join("static", "app.min.js")); err != nil {
		return ""
	}
	return ".min"
}

// renderPage renders a page, answering 500 when the template fails.
func (app *App) renderPage(w http.ResponseWriter, name string, data *TemplateData) {
	if err := app.Templates.RenderTemplate(w, name, data); err != nil {
		AppLogger.WithError(err).WithField("template", name).Error("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// zoneFor is the browser's zone from the tz cookie or form field, or the
// configured default.
func (app *App) zoneFor(r *http.Request) *time.Location {
	name := r.Header.Get("X-Timezone")
	if name == "" {
		if c, err := r.Cookie("tz"); err == nil {
			name = c.Value
		}
	}
	return mutation.LoadZone(name, app.Zone)
}
