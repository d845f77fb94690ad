package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"

	emailAdapter "carimport/internal/adapters/email"
	"carimport/internal/adapters/http/middleware"
	"carimport/internal/domain/account"
	"carimport/internal/domain/stock"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// staticHandler serves the embedded stylesheet and script under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

const layoutTemplate = "layout.html"

// pageData is what every page template receives.
type pageData struct {
	Title     string
	Session   *middleware.Session
	CSRFField template.HTML
	CSRFToken string
	Query     url.Values
	Data      any
}

var templateFuncs = template.FuncMap{
	"money": emailAdapter.FormatMoney,
	"km":    func(n int) string { return humanize.Comma(int64(n)) + " km" },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"ago":  func(t time.Time) string { return humanize.Time(t) },
	"fuels": func() []string { return stock.ValidFuels },
	"pct":  func(f float64) string { return strconv.FormatFloat(f*100, 'f', 0, 64) + "%" },
	"isStaff": func(s *middleware.Session) bool {
		return s != nil && (s.Role == account.RoleStaff || s.Role == account.RoleAdmin)
	},
	// pageLink keeps the current filters and swaps the page number.
	"pageLink": func(q url.Values, page int) template.URL {
		c := url.Values{}
		for k, v := range q {
			c[k] = append([]string(nil), v...)
		}
		c.Set("page", strconv.Itoa(page))
		return template.URL("?" + c.Encode())
	},
}

// parsePages parses every page together with the shared layout.
// PRE: templates/layout.html defines the "content" block
// POST: Returns one template per page file name
func parsePages() (map[string]*template.Template, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		base := path.Base(name)
		if base == layoutTemplate {
			continue
		}
		tpl, err := template.New(layoutTemplate).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/"+layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		pages[base] = tpl
	}
	return pages, nil
}

// render writes a full HTML page; nothing is written when the template fails.
func (s *server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tpl, ok := s.pages[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown page %q", name))
		return
	}
	pd := pageData{
		Title:     title,
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
		Query:     r.URL.Query(),
		Data:      data,
	}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		pd.Session = &sess
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, pd); err != nil {
		slog.Error("template_render_failed", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
