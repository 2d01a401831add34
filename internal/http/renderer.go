package httpx

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed views/*.tmpl
var viewsFS embed.FS

// Page names.
const (
	pageLogin       = "login"
	pageLoading     = "loading"
	pageError       = "error"
	pageUnavailable = "unavailable"
	pageDashboard   = "dashboard"
	pageOnboarding  = "onboarding"
)

var pageNames = []string{pageLogin, pageLoading, pageError, pageUnavailable, pageDashboard, pageOnboarding}

// pageData is the view model shared by every page.
type pageData struct {
	Title      string
	Message    string
	User       *userSnapshot
	Role       string
	Step       string
	ReturnTo   string
	LoginURL   string
	SignupURL  string
	RedirectTo string
	DelaySecs  int
	CSRFToken  string
}

// Pages renders the server-side HTML pages.
type Pages struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewPages parses the layout and every page from fsys. A nil fsys uses the
// embedded views.
func NewPages(fsys fs.FS, logger *slog.Logger) (*Pages, error) {
	if fsys == nil {
		sub, err := fs.Sub(viewsFS, "views")
		if err != nil {
			return nil, fmt.Errorf("views sub fs: %w", err)
		}
		fsys = sub
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pages{pages: make(map[string]*template.Template, len(pageNames)), logger: logger}
	for _, name := range pageNames {
		t, err := template.New("layout.tmpl").ParseFS(fsys, "layout.tmpl", name+".tmpl")
		if err != nil {
			logger.Error("template parsing failed", slog.Any("error", err), slog.String("page", name))
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		p.pages[name] = t
	}
	return p, nil
}

// MustNewPages is NewPages for the embedded views; it panics on error.
func MustNewPages(logger *slog.Logger) *Pages {
	p, err := NewPages(nil, logger)
	if err != nil {
		panic(err)
	}
	return p
}

// renderParams groups Render inputs.
type renderParams struct {
	Status int
	Page   string
	Data   pageData
}

// Render writes a full page. Rendering happens into a buffer so a template
// failure still produces a clean 500.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, rp renderParams) {
	t, ok := p.pages[rp.Page]
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if rp.Data.CSRFToken == "" {
		rp.Data.CSRFToken = CSRFToken(r.Context())
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", rp.Data); err != nil {
		p.logger.ErrorContext(r.Context(), "template render failed", slog.Any("error", err), slog.String("page", rp.Page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	status := rp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
